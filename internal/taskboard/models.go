// Package taskboard is the reference application built on the library:
// users own projects, projects hold tasks, tasks carry labels. Projects
// are guarded by per-object grants; the project creator receives full
// grants through an AfterSave hook.
package taskboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/gqlcrud/model"
)

// Project permissions. view/change gate reads and writes separately,
// delete is required on top of change to remove a project.
const (
	PermViewProject   = "taskboard.view_project"
	PermChangeProject = "taskboard.change_project"
	PermDeleteProject = "taskboard.delete_project"
)

// PermManageUsers is the global permission required to mutate users.
const PermManageUsers = "taskboard.manage_users"

// User is an account. The password hash never crosses the GraphQL
// boundary; authentication happens over REST.
type User struct {
	ID           uuid.UUID `db:"id"`
	Username     string    `db:"username"      gql:"username,minlen=3,maxlen=64,label=Username"`
	Email        string    `db:"email"         gql:"email,kind=email,label=Email address"`
	Name         string    `db:"name"          gql:"name,maxlen=120"`
	PasswordHash string    `db:"password_hash" gql:"-"`
	IsSuperuser  bool      `db:"is_superuser"  gql:"-"`
	Perms        []string  `db:"perms"         gql:"-"`
	CreatedAt    time.Time `db:"created_at"    gql:"createdAt"`
}

func (User) Table() string { return "users" }

// Project is a board owned by one user. Access to individual projects is
// controlled by object grants.
type Project struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"        gql:"name,maxlen=100,label=Project name"`
	Description *string   `db:"description" gql:"description,kind=text"`
	OwnerID     uuid.UUID `db:"owner_id"    gql:"owner,of=User"`
	CreatedAt   time.Time `db:"created_at"  gql:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at"  gql:"updatedAt"`
}

func (Project) Table() string { return "projects" }

func (Project) Guarded() {}

// Task is one unit of work inside a project.
type Task struct {
	ID        uuid.UUID   `db:"id"`
	ProjectID uuid.UUID   `db:"project_id" gql:"project,of=Project"`
	Title     string      `db:"title"      gql:"title,maxlen=200,label=Title"`
	Notes     *string     `db:"notes"      gql:"notes,kind=text,help=Free-form notes."`
	Status    string      `db:"status"     gql:"status,choices=todo:To do;doing:In progress;done:Done,default=todo"`
	DueDate   *time.Time  `db:"due_date"   gql:"dueDate,kind=date"`
	LabelIDs  []uuid.UUID `db:"-"          gql:"labels,of=Label,join=task_labels:task_id:label_id"`
	CreatedAt time.Time   `db:"created_at" gql:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" gql:"updatedAt"`
}

func (Task) Table() string { return "tasks" }

// Label is a shared tag attachable to any task.
type Label struct {
	ID    uuid.UUID `db:"id"`
	Name  string    `db:"name"  gql:"name,maxlen=50"`
	Color string    `db:"color" gql:"color,maxlen=7,help=Hex color like #ff8800."`
}

func (Label) Table() string { return "labels" }

// grantor is the part of *perm.Store the project hook needs.
type grantor interface {
	Grant(ctx context.Context, userID uuid.UUID, objectType string, objectID uuid.UUID, perms ...string) error
}

// NewRegistry registers the taskboard models.
func NewRegistry(grants grantor) (*model.Registry, error) {
	reg := model.NewRegistry()

	if _, err := reg.Register(User{}, model.Options{
		Name:        "User",
		Permissions: []string{PermManageUsers},
	}); err != nil {
		return nil, err
	}

	if _, err := reg.Register(Project{}, model.Options{
		Name:              "Project",
		ObjectPermissions: []string{PermViewProject, PermChangeProject, PermDeleteProject},
		Hooks: model.Hooks{
			AfterSave: grantOwnerPerms(grants),
		},
	}); err != nil {
		return nil, err
	}

	if _, err := reg.Register(Task{}, model.Options{
		Name: "Task",
	}); err != nil {
		return nil, err
	}

	if _, err := reg.Register(Label{}, model.Options{
		Name: "Label",
	}); err != nil {
		return nil, err
	}

	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// grantOwnerPerms keeps the project owner holding full grants. Granting is
// idempotent, so running on every save is fine; the hook runs inside the
// mutation transaction, so a failed grant rolls the save back.
func grantOwnerPerms(grants grantor) func(ctx context.Context, instance any, input map[string]any) error {
	return func(ctx context.Context, instance any, input map[string]any) error {
		p, ok := instance.(*Project)
		if !ok {
			return fmt.Errorf("unexpected instance type %T", instance)
		}

		return grants.Grant(ctx, p.OwnerID, "Project", p.ID,
			PermViewProject, PermChangeProject, PermDeleteProject)
	}
}

package taskboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/heartmarshall/gqlcrud/domain"
	"github.com/heartmarshall/gqlcrud/perm"
	"github.com/heartmarshall/gqlcrud/postgres"
)

// Seeder creates the initial accounts and optional demo data.
type Seeder struct {
	db     postgres.Querier
	users  *UserStore
	grants *perm.Store
	txm    *postgres.TxManager
	log    *slog.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(db postgres.Querier, logger *slog.Logger) *Seeder {
	return &Seeder{
		db:     db,
		users:  NewUserStore(db),
		grants: perm.NewStore(db),
		txm:    postgres.NewTxManager(db),
		log:    logger,
	}
}

// SeedParams configure one seed run.
type SeedParams struct {
	AdminUsername string
	AdminPassword string
	Demo          bool
}

// Run creates the admin account and, when requested, a demo user with a
// sample project. Already-existing accounts are left untouched.
func (s *Seeder) Run(ctx context.Context, p SeedParams) error {
	return s.txm.RunInTx(ctx, func(ctx context.Context) error {
		admin, err := s.users.Create(ctx, CreateParams{
			Username:  p.AdminUsername,
			Email:     p.AdminUsername + "@taskboard.local",
			Name:      "Administrator",
			Password:  p.AdminPassword,
			Superuser: true,
		})
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			s.log.Info("admin account already exists", slog.String("username", p.AdminUsername))
		case err != nil:
			return fmt.Errorf("create admin: %w", err)
		default:
			s.log.Info("admin account created", slog.String("id", admin.ID.String()))
		}

		if !p.Demo {
			return nil
		}
		return s.seedDemo(ctx)
	})
}

func (s *Seeder) seedDemo(ctx context.Context) error {
	user, err := s.users.Create(ctx, CreateParams{
		Username: "demo",
		Email:    "demo@taskboard.local",
		Name:     "Demo User",
		Password: "demo-password",
		Perms:    []string{PermManageUsers},
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		s.log.Info("demo data already present")
		return nil
	}
	if err != nil {
		return fmt.Errorf("create demo user: %w", err)
	}

	sb := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	q := postgres.QuerierFromCtx(ctx, s.db)

	sql, args, err := sb.Insert("projects").
		Columns("name", "description", "owner_id").
		Values("Getting started", "A sample project to explore the API.", user.ID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert project: %w", err)
	}

	var projectID uuid.UUID
	if err := pgxscan.Get(ctx, q, &projectID, sql, args...); err != nil {
		return fmt.Errorf("insert demo project: %w", err)
	}

	sql, args, err = sb.Insert("tasks").
		Columns("project_id", "title", "status").
		Values(projectID, "Try the playground", "todo").
		Values(projectID, "Create your first label", "todo").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert tasks: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert demo tasks: %w", err)
	}

	sql, args, err = sb.Insert("labels").
		Columns("name", "color").
		Values("urgent", "#d73a4a").
		Values("idea", "#0075ca").
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert labels: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert demo labels: %w", err)
	}

	if err := s.grants.Grant(ctx, user.ID, "Project", projectID,
		PermViewProject, PermChangeProject, PermDeleteProject); err != nil {
		return fmt.Errorf("grant demo project perms: %w", err)
	}

	s.log.Info("demo data created", slog.String("project_id", projectID.String()))
	return nil
}

// Package model implements the model registry: annotated Go structs are
// reflected into field metadata that drives SQL generation, GraphQL type
// and input derivation, permission configuration, and the input-schema
// introspection query.
//
// A model is a struct backed by one table:
//
//	type Task struct {
//		ID        uuid.UUID   `db:"id"`
//		ProjectID uuid.UUID   `db:"project_id" gql:"project,of=Project"`
//		Title     string      `db:"title"      gql:"title,maxlen=200"`
//		Priority  string      `db:"priority"   gql:"priority,choices=low:Low;high:High"`
//		LabelIDs  []uuid.UUID `db:"-"          gql:"labels,of=Label,join=task_labels:task_id:label_id"`
//		CreatedAt time.Time   `db:"created_at" gql:"createdAt"`
//	}
//
//	func (Task) Table() string { return "tasks" }
package model

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// Model is a struct persisted in a single table. The struct must carry an
// `ID uuid.UUID` field.
type Model interface {
	Table() string
}

// Guarded marks models whose rows are protected by per-object grants.
// Models that configure ObjectPermissions without implementing Guarded are
// not filtered, matching the behavior of unguarded types.
type Guarded interface {
	Model
	Guarded()
}

// Hooks let applications run code around saves and deletes of a model.
// Save hooks receive the decoded input (column → value); instance is the
// current row (zero-valued before an insert). Hooks run inside the mutation
// transaction, so returning an error rolls everything back.
type Hooks struct {
	BeforeSave   func(ctx context.Context, instance any, input map[string]any) error
	AfterSave    func(ctx context.Context, instance any, input map[string]any) error
	BeforeDelete func(ctx context.Context, instance any) error
	AfterDelete  func(ctx context.Context, instance any) error
}

// Options configure how a model is exposed through GraphQL.
type Options struct {
	// Name overrides the GraphQL type name (defaults to the struct name).
	Name string
	// PluralName overrides the list query name (defaults to Name + "s").
	PluralName string
	// ReturnFieldName is the payload field holding the mutated object
	// (defaults to the lower-camel Name).
	ReturnFieldName string

	// Public allows unauthenticated callers to query and mutate the model.
	Public bool

	// Permissions are global permissions required to touch the model.
	// By default one matching permission is sufficient.
	Permissions []string
	// PermissionsAll requires every permission instead of any.
	PermissionsAll bool

	// ObjectPermissions are per-object grants required on guarded rows.
	// By default one matching grant is sufficient.
	ObjectPermissions []string
	// ObjectPermissionsAll requires every grant instead of any.
	ObjectPermissionsAll bool
	// ObjectPermissionsNoSuperuser subjects superusers to row filtering
	// too. By default superusers bypass it.
	ObjectPermissionsNoSuperuser bool

	// OnlyFields restricts mutation inputs to the named GraphQL fields.
	OnlyFields []string
	// ExcludeFields removes the named GraphQL fields from mutation inputs.
	ExcludeFields []string
	// RequiredFields marks fields required regardless of derived rules.
	RequiredFields []string

	Hooks Hooks
}

// Op is a mutation operation class.
type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
)

// Registered is a model after registration: reflected metadata plus options.
type Registered struct {
	Opts    Options
	Fields  []Field
	guarded bool
	typ     reflect.Type
	table   string
	idIndex int
}

// Name returns the GraphQL type name.
func (r *Registered) Name() string { return r.Opts.Name }

// PluralName returns the name used by the list query.
func (r *Registered) PluralName() string {
	if r.Opts.PluralName != "" {
		return r.Opts.PluralName
	}
	return r.Opts.Name + "s"
}

// ReturnFieldName returns the payload field holding the mutated object.
func (r *Registered) ReturnFieldName() string {
	if r.Opts.ReturnFieldName != "" {
		return r.Opts.ReturnFieldName
	}
	return lowerCamel(r.Opts.Name)
}

// Table returns the backing table name.
func (r *Registered) Table() string { return r.table }

// IsGuarded reports whether the model implements Guarded AND configures
// object permissions.
func (r *Registered) IsGuarded() bool {
	return r.guarded && len(r.Opts.ObjectPermissions) > 0
}

// Type returns the underlying struct type.
func (r *Registered) Type() reflect.Type { return r.typ }

// New returns a pointer to a zero value of the model struct.
func (r *Registered) New() any {
	return reflect.New(r.typ).Interface()
}

// NewSlice returns a pointer to an empty slice of the model struct,
// suitable for row scanning.
func (r *Registered) NewSlice() any {
	return reflect.New(reflect.SliceOf(r.typ)).Interface()
}

// Elems unpacks a pointer-to-slice produced by NewSlice into a []any of
// pointers to the individual rows.
func (r *Registered) Elems(slicePtr any) []any {
	v := reflect.ValueOf(slicePtr).Elem()
	out := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = v.Index(i).Addr().Interface()
	}
	return out
}

// Field looks up a field by its GraphQL name.
func (r *Registered) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns the database columns of all scalar fields, in declaration
// order. M2M fields have no column and are excluded.
func (r *Registered) Columns() []string {
	cols := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		if f.Column != "" {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

// Value reads the given field from a model instance (pointer or value).
func (r *Registered) Value(instance any, f Field) any {
	v := reflect.ValueOf(instance)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	fv := v.Field(f.Index)
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil
		}
		return fv.Elem().Interface()
	}
	return fv.Interface()
}

// ID returns the primary key of a model instance.
func (r *Registered) ID(instance any) uuid.UUID {
	v := reflect.ValueOf(instance)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	id, _ := v.Field(r.idIndex).Interface().(uuid.UUID)
	return id
}

// SetID overwrites the primary key of a model instance. Used by delete
// mutations to return the original ID on the deleted payload.
func (r *Registered) SetID(instance any, id uuid.UUID) {
	v := reflect.ValueOf(instance).Elem()
	v.Field(r.idIndex).Set(reflect.ValueOf(id))
}

// InputFields returns the fields forming the mutation input for op,
// honoring OnlyFields/ExcludeFields/RequiredFields. Create inputs drop the
// id; update inputs require it and make everything else optional; delete
// inputs are the id alone.
func (r *Registered) InputFields(op Op) []Field {
	if op == OpDelete {
		f, _ := r.Field("id")
		f.Required = true
		f.OfType = r.Opts.Name
		return []Field{f}
	}

	only := toSet(r.Opts.OnlyFields)
	exclude := toSet(r.Opts.ExcludeFields)
	required := toSet(r.Opts.RequiredFields)

	var out []Field
	for _, f := range r.Fields {
		if f.ReadOnly || exclude[f.Name] {
			continue
		}
		if len(only) > 0 && !only[f.Name] && f.Name != "id" {
			continue
		}

		switch {
		case f.Name == "id":
			if op == OpCreate {
				continue
			}
			f.Required = true
			f.OfType = r.Opts.Name
		case required[f.Name]:
			f.Required = true
		case op == OpUpdate:
			// Partial updates: absent fields keep their value.
			f.Required = false
		}

		out = append(out, f)
	}
	return out
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// newRegistered reflects over the model struct and derives field metadata.
func newRegistered(m Model, opts Options) (*Registered, error) {
	t := reflect.TypeOf(m)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model %T is not a struct", m)
	}

	if opts.Name == "" {
		opts.Name = t.Name()
	}

	_, guarded := m.(Guarded)

	r := &Registered{
		Opts:    opts,
		guarded: guarded,
		typ:     t,
		table:   m.Table(),
		idIndex: -1,
	}

	seen := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}

		f, ok, err := parseField(sf, i)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", opts.Name, err)
		}
		if !ok {
			continue
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("model %s: duplicate field name %q", opts.Name, f.Name)
		}
		seen[f.Name] = true

		if f.Name == "id" {
			if sf.Type != uuidType {
				return nil, fmt.Errorf("model %s: id must be uuid.UUID", opts.Name)
			}
			r.idIndex = i
		}

		r.Fields = append(r.Fields, f)
	}

	if r.idIndex < 0 {
		return nil, fmt.Errorf("model %s: missing id field", opts.Name)
	}

	for _, name := range append(append([]string{}, opts.OnlyFields...), opts.ExcludeFields...) {
		if !seen[name] {
			return nil, fmt.Errorf("model %s: only/exclude names unknown field %q", opts.Name, name)
		}
	}

	return r, nil
}

// String implements fmt.Stringer for debug logging.
func (r *Registered) String() string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return fmt.Sprintf("%s(%s)", r.Opts.Name, strings.Join(names, ", "))
}

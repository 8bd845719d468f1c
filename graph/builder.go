// Package graph assembles an executable GraphQL schema from a model
// registry: one object type, node query, list query and create/update/
// delete mutation set per registered model, plus the input-schema
// introspection query. Permission checks run on every operation; relation
// fields resolve through per-request dataloaders.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/graphql-go/graphql"

	"github.com/heartmarshall/gqlcrud/model"
	"github.com/heartmarshall/gqlcrud/perm"
	"github.com/heartmarshall/gqlcrud/pkg/ctxutil"
	"github.com/heartmarshall/gqlcrud/postgres"
)

// Storage defines what the graph layer needs from the storage layer.
// *postgres.Store implements it.
type Storage interface {
	GetByID(ctx context.Context, rm *model.Registered, id uuid.UUID, preds ...squirrel.Sqlizer) (any, error)
	GetByIDs(ctx context.Context, rm *model.Registered, ids []uuid.UUID) ([]any, error)
	List(ctx context.Context, rm *model.Registered, opts postgres.ListOptions) ([]any, error)
	Count(ctx context.Context, rm *model.Registered, preds ...squirrel.Sqlizer) (int, error)
	Insert(ctx context.Context, rm *model.Registered, values map[string]any) (any, error)
	Update(ctx context.Context, rm *model.Registered, id uuid.UUID, values map[string]any, preds ...squirrel.Sqlizer) (any, error)
	Delete(ctx context.Context, rm *model.Registered, id uuid.UUID) error
	ReplaceLinks(ctx context.Context, f model.Field, ownerID uuid.UUID, ids []uuid.UUID) error
	LinksFor(ctx context.Context, f model.Field, ownerIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
}

// GrantStore defines what the graph layer needs from the object-grant
// store. *perm.Store implements it.
type GrantStore interface {
	HasPerm(ctx context.Context, id perm.Identity, objectType string, objectID uuid.UUID, perms []string, anyPerm bool) (bool, error)
}

// TxRunner runs a function inside a database transaction.
// *postgres.TxManager implements it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Options tune schema-wide behavior.
type Options struct {
	// SwallowPermissionDenied reports mutation permission denials in the
	// payload errors list instead of failing the request.
	SwallowPermissionDenied bool
	// MaxListLimit caps the limit argument of list queries (default 100).
	MaxListLimit int
}

// OperationFunc is the body of a custom instance mutation. It runs inside
// the mutation transaction, after the permission gates, with the loaded
// instance.
type OperationFunc func(ctx context.Context, instance any) error

type customOp struct {
	name string
	desc string
	fn   OperationFunc
}

// Builder assembles the schema. Create one per registry and call Schema
// once during startup.
type Builder struct {
	reg    *model.Registry
	store  Storage
	grants GrantStore
	tx     TxRunner
	log    *slog.Logger
	opts   Options

	objects map[string]*graphql.Object
	custom  map[string][]customOp
}

// New creates a schema builder.
func New(reg *model.Registry, store Storage, grants GrantStore, tx TxRunner, log *slog.Logger, opts Options) *Builder {
	if opts.MaxListLimit <= 0 {
		opts.MaxListLimit = 100
	}
	return &Builder{
		reg:     reg,
		store:   store,
		grants:  grants,
		tx:      tx,
		log:     log,
		opts:    opts,
		objects: make(map[string]*graphql.Object),
		custom:  make(map[string][]customOp),
	}
}

// RegisterOperation adds a custom instance mutation for a registered model.
// The field takes the model's delete-style input (id only), runs the same
// permission gates as update, and returns the standard payload with the
// reloaded instance. Call before Schema.
func (b *Builder) RegisterOperation(modelName, name, description string, fn OperationFunc) {
	b.custom[modelName] = append(b.custom[modelName], customOp{name: name, desc: description, fn: fn})
}

// Schema validates the registry and assembles the executable schema.
func (b *Builder) Schema() (graphql.Schema, error) {
	if err := b.reg.Validate(); err != nil {
		return graphql.Schema{}, fmt.Errorf("registry: %w", err)
	}

	// First pass: object shells with scalar fields, so relation fields can
	// reference each other in the second pass.
	for _, rm := range b.reg.All() {
		b.objects[rm.Name()] = b.objectType(rm)
	}
	for _, rm := range b.reg.All() {
		b.addRelationFields(rm)
	}

	queries := graphql.Fields{}
	mutations := graphql.Fields{}

	for _, rm := range b.reg.All() {
		b.addQueries(queries, rm)
		b.addMutations(mutations, rm)
	}
	b.addIntrospection(queries)

	schemaConfig := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queries,
		}),
	}
	if len(mutations) > 0 {
		schemaConfig.Mutation = graphql.NewObject(graphql.ObjectConfig{
			Name:   "Mutation",
			Fields: mutations,
		})
	}

	schema, err := graphql.NewSchema(schemaConfig)
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("assemble schema: %w", err)
	}
	return schema, nil
}

// checkAccess runs the model-level permission gate for the identity.
func (b *Builder) checkAccess(ctx context.Context, rm *model.Registered) bool {
	id := ctxutil.IdentityFromCtx(ctx)
	if !rm.Opts.Public && !perm.CheckAuthenticated(id) {
		return false
	}
	return perm.CheckPerms(id, rm.Opts.Permissions, !rm.Opts.PermissionsAll)
}

// objectPerm checks per-object grants for one row of a guarded model.
// Unguarded models always pass.
func (b *Builder) objectPerm(ctx context.Context, rm *model.Registered, objID uuid.UUID) (bool, error) {
	if !rm.IsGuarded() {
		return true, nil
	}
	id := ctxutil.IdentityFromCtx(ctx)
	if id.Superuser && !rm.Opts.ObjectPermissionsNoSuperuser {
		return true, nil
	}
	return b.grants.HasPerm(ctx, id, rm.Name(), objID, rm.Opts.ObjectPermissions, !rm.Opts.ObjectPermissionsAll)
}

// guardFilter returns the row filter for list queries of guarded models,
// or nil when the model is not filtered.
func (b *Builder) guardFilter(ctx context.Context, rm *model.Registered) squirrel.Sqlizer {
	if !rm.IsGuarded() {
		return nil
	}
	id := ctxutil.IdentityFromCtx(ctx)
	return perm.FilterForUser(
		id,
		rm.Name(),
		rm.Opts.ObjectPermissions,
		!rm.Opts.ObjectPermissionsAll,
		!rm.Opts.ObjectPermissionsNoSuperuser,
		rm.Table()+".id",
	)
}

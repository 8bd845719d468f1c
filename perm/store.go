package perm

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/heartmarshall/gqlcrud/postgres"
)

// GrantsTable is the table holding per-object permission grants.
const GrantsTable = "object_grants"

// Store provides access to per-object permission grants.
type Store struct {
	db postgres.Querier
	sb squirrel.StatementBuilderType
}

// NewStore creates a grant store on top of the given querier.
func NewStore(db postgres.Querier) *Store {
	return &Store{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Grant records a permission for the user on a single object.
// Granting an already-granted permission is a no-op.
func (s *Store) Grant(ctx context.Context, userID uuid.UUID, objectType string, objectID uuid.UUID, perms ...string) error {
	if len(perms) == 0 {
		return nil
	}

	q := s.sb.Insert(GrantsTable).
		Columns("user_id", "object_type", "object_id", "perm")
	for _, p := range perms {
		q = q.Values(userID, objectType, objectID, p)
	}
	q = q.Suffix("ON CONFLICT (user_id, object_type, object_id, perm) DO NOTHING")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build grant query: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, s.db).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("grant %v on %s %s: %w", perms, objectType, objectID, err)
	}
	return nil
}

// Revoke removes the given permissions for the user on a single object.
// Revoking an absent grant is a no-op.
func (s *Store) Revoke(ctx context.Context, userID uuid.UUID, objectType string, objectID uuid.UUID, perms ...string) error {
	if len(perms) == 0 {
		return nil
	}

	q := s.sb.Delete(GrantsTable).Where(squirrel.Eq{
		"user_id":     userID,
		"object_type": objectType,
		"object_id":   objectID,
		"perm":        perms,
	})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build revoke query: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, s.db).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("revoke %v on %s %s: %w", perms, objectType, objectID, err)
	}
	return nil
}

// HasPerm checks the identity's grants on a single object. With anyPerm one
// matching grant is enough, otherwise every permission must be granted.
// Superusers pass without a query. An empty permission list always passes.
func (s *Store) HasPerm(ctx context.Context, id Identity, objectType string, objectID uuid.UUID, perms []string, anyPerm bool) (bool, error) {
	if len(perms) == 0 || id.Superuser {
		return true, nil
	}
	if !id.Authenticated {
		return false, nil
	}

	q := s.sb.Select("COUNT(DISTINCT perm)").
		From(GrantsTable).
		Where(squirrel.Eq{
			"user_id":     id.UserID,
			"object_type": objectType,
			"object_id":   objectID,
			"perm":        perms,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build has-perm query: %w", err)
	}

	var n int
	row := postgres.QuerierFromCtx(ctx, s.db).QueryRow(ctx, sql, args...)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("check grants on %s %s: %w", objectType, objectID, err)
	}

	if anyPerm {
		return n > 0, nil
	}
	return n == len(perms), nil
}

// FilterForUser returns a predicate restricting rows of a guarded model to
// those the identity holds grants on. idColumn is the qualified primary key
// column of the outer query, e.g. "projects.id".
//
// Superusers get an always-true predicate when withSuperuser is set;
// unauthenticated callers get an always-false one.
func FilterForUser(id Identity, objectType string, perms []string, anyPerm bool, withSuperuser bool, idColumn string) squirrel.Sqlizer {
	if len(perms) == 0 || (id.Superuser && withSuperuser) {
		return squirrel.Expr("TRUE")
	}
	if !id.Authenticated {
		return squirrel.Expr("FALSE")
	}

	if anyPerm {
		return squirrel.Expr(
			"EXISTS (SELECT 1 FROM "+GrantsTable+
				" g WHERE g.user_id = ? AND g.object_type = ? AND g.perm = ANY(?) AND g.object_id = "+idColumn+")",
			id.UserID, objectType, perms,
		)
	}

	return squirrel.Expr(
		"(SELECT COUNT(DISTINCT g.perm) FROM "+GrantsTable+
			" g WHERE g.user_id = ? AND g.object_type = ? AND g.perm = ANY(?) AND g.object_id = "+idColumn+") = ?",
		id.UserID, objectType, perms, len(perms),
	)
}

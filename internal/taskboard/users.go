package taskboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/heartmarshall/gqlcrud/domain"
	"github.com/heartmarshall/gqlcrud/perm"
	"github.com/heartmarshall/gqlcrud/postgres"
)

// UserStore handles account creation and password authentication. The
// GraphQL layer reads users through the generic store; this one exists for
// the parts that must never go through GraphQL.
type UserStore struct {
	db postgres.Querier
	sb squirrel.StatementBuilderType
}

// NewUserStore creates a UserStore.
func NewUserStore(db postgres.Querier) *UserStore {
	return &UserStore{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateParams describe a new account.
type CreateParams struct {
	Username  string
	Email     string
	Name      string
	Password  string
	Superuser bool
	Perms     []string
}

// Create inserts a user with a bcrypt password hash.
func (s *UserStore) Create(ctx context.Context, p CreateParams) (*User, error) {
	if len(p.Password) < 8 {
		return nil, domain.NewValidationError("password", "must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	q := s.sb.Insert("users").
		Columns("username", "email", "name", "password_hash", "is_superuser", "perms").
		Values(p.Username, p.Email, p.Name, string(hash), p.Superuser, p.Perms).
		Suffix("RETURNING id, username, email, name, password_hash, is_superuser, perms, created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert user query: %w", err)
	}

	var u User
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, s.db), &u, sql, args...); err != nil {
		return nil, fmt.Errorf("insert user %s: %w", p.Username, postgres.MapError(err, "user", p.Username))
	}
	return &u, nil
}

// Authenticate verifies credentials and returns the identity carried into
// access tokens. Unknown usernames and wrong passwords both come back as
// ErrUnauthorized so callers can't probe for accounts.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (perm.Identity, error) {
	q := s.sb.Select("id", "username", "email", "name", "password_hash", "is_superuser", "perms", "created_at").
		From("users").
		Where(squirrel.Eq{"username": username})

	sql, args, err := q.ToSql()
	if err != nil {
		return perm.Identity{}, fmt.Errorf("build select user query: %w", err)
	}

	var u User
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, s.db), &u, sql, args...); err != nil {
		if errors.Is(postgres.MapError(err, "user", username), domain.ErrNotFound) {
			return perm.Identity{}, domain.ErrUnauthorized
		}
		return perm.Identity{}, fmt.Errorf("select user %s: %w", username, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return perm.Identity{}, domain.ErrUnauthorized
	}

	return perm.Identity{
		UserID:        u.ID,
		Authenticated: true,
		Superuser:     u.IsSuperuser,
		Perms:         u.Perms,
	}, nil
}

// GetByID loads one user. Used by seed tooling.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	q := s.sb.Select("id", "username", "email", "name", "password_hash", "is_superuser", "perms", "created_at").
		From("users").
		Where(squirrel.Eq{"id": id})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user query: %w", err)
	}

	var u User
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, s.db), &u, sql, args...); err != nil {
		return nil, fmt.Errorf("select user %s: %w", id, postgres.MapError(err, "user", id))
	}
	return &u, nil
}

package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/heartmarshall/gqlcrud/domain"
	"github.com/heartmarshall/gqlcrud/model"
)

// Store executes CRUD statements for registered models. SQL is built with
// squirrel from the model's field metadata; rows are scanned into the
// model's struct type with scany.
//
// All methods join an ambient transaction via QuerierFromCtx.
type Store struct {
	db Querier
	sb squirrel.StatementBuilderType
}

// NewStore creates a Store on top of the given querier.
func NewStore(db Querier) *Store {
	return &Store{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ListOptions restrict and page a List call.
type ListOptions struct {
	Where   []squirrel.Sqlizer
	OrderBy string // defaults to "id"
	Limit   uint64
	Offset  uint64
}

// GetByID fetches one row by primary key. Extra predicates (e.g. a grant
// filter) are ANDed in. Returns domain.ErrNotFound when no row matches.
func (s *Store) GetByID(ctx context.Context, rm *model.Registered, id uuid.UUID, preds ...squirrel.Sqlizer) (any, error) {
	q := s.sb.Select(rm.Columns()...).
		From(rm.Table()).
		Where(squirrel.Eq{"id": id})
	for _, p := range preds {
		q = q.Where(p)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	dest := rm.New()
	if err := pgxscan.Get(ctx, QuerierFromCtx(ctx, s.db), dest, sql, args...); err != nil {
		return nil, MapError(err, rm.Table(), id)
	}
	return dest, nil
}

// GetByIDs fetches rows for a batch of primary keys in one query. Missing
// IDs are silently absent from the result; order is not guaranteed.
func (s *Store) GetByIDs(ctx context.Context, rm *model.Registered, ids []uuid.UUID) ([]any, error) {
	if len(ids) == 0 {
		return []any{}, nil
	}

	q := s.sb.Select(rm.Columns()...).
		From(rm.Table()).
		Where(squirrel.Eq{"id": ids})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	dest := rm.NewSlice()
	if err := pgxscan.Select(ctx, QuerierFromCtx(ctx, s.db), dest, sql, args...); err != nil {
		return nil, MapError(err, rm.Table(), ids)
	}
	return rm.Elems(dest), nil
}

// List returns matching rows. The result is never nil.
func (s *Store) List(ctx context.Context, rm *model.Registered, opts ListOptions) ([]any, error) {
	order := opts.OrderBy
	if order == "" {
		order = "id"
	}

	q := s.sb.Select(rm.Columns()...).
		From(rm.Table()).
		OrderBy(order)
	for _, p := range opts.Where {
		q = q.Where(p)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	dest := rm.NewSlice()
	if err := pgxscan.Select(ctx, QuerierFromCtx(ctx, s.db), dest, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", rm.Table(), err)
	}
	return rm.Elems(dest), nil
}

// Count returns the number of rows matching the predicates.
func (s *Store) Count(ctx context.Context, rm *model.Registered, preds ...squirrel.Sqlizer) (int, error) {
	q := s.sb.Select("COUNT(*)").From(rm.Table())
	for _, p := range preds {
		q = q.Where(p)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int
	row := QuerierFromCtx(ctx, s.db).QueryRow(ctx, sql, args...)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", rm.Table(), err)
	}
	return n, nil
}

// Insert creates a row from decoded input values (column → value) and
// returns the stored row. Columns absent from values fall back to their
// database defaults (generated id, timestamps).
func (s *Store) Insert(ctx context.Context, rm *model.Registered, values map[string]any) (any, error) {
	cols, vals := sortedValues(values)

	q := s.sb.Insert(rm.Table()).
		Columns(cols...).
		Values(vals...).
		Suffix("RETURNING " + joinColumns(rm.Columns()))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	dest := rm.New()
	if err := pgxscan.Get(ctx, QuerierFromCtx(ctx, s.db), dest, sql, args...); err != nil {
		return nil, MapError(err, rm.Table(), "new")
	}
	return dest, nil
}

// Update applies decoded input values to a row and returns the stored row.
// An updated_at column, when the model has one, is always bumped. Extra
// predicates are ANDed in; a vanished row surfaces as domain.ErrNotFound.
func (s *Store) Update(ctx context.Context, rm *model.Registered, id uuid.UUID, values map[string]any, preds ...squirrel.Sqlizer) (any, error) {
	if len(values) == 0 {
		return s.GetByID(ctx, rm, id, preds...)
	}

	q := s.sb.Update(rm.Table()).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns(rm.Columns()))

	cols, vals := sortedValues(values)
	for i, c := range cols {
		q = q.Set(c, vals[i])
	}
	if hasColumn(rm, "updated_at") {
		q = q.Set("updated_at", squirrel.Expr("now()"))
	}
	for _, p := range preds {
		q = q.Where(p)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	dest := rm.New()
	if err := pgxscan.Get(ctx, QuerierFromCtx(ctx, s.db), dest, sql, args...); err != nil {
		return nil, MapError(err, rm.Table(), id)
	}
	return dest, nil
}

// Delete removes a row by primary key.
// Returns domain.ErrNotFound when the row does not exist.
func (s *Store) Delete(ctx context.Context, rm *model.Registered, id uuid.UUID) error {
	q := s.sb.Delete(rm.Table()).Where(squirrel.Eq{"id": id})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := QuerierFromCtx(ctx, s.db).Exec(ctx, sql, args...)
	if err != nil {
		return MapError(err, rm.Table(), id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %v: %w", rm.Table(), id, domain.ErrNotFound)
	}
	return nil
}

// ReplaceLinks rewrites the M2M links of one owner row: existing links are
// dropped and the given related IDs inserted. Call inside a transaction.
func (s *Store) ReplaceLinks(ctx context.Context, f model.Field, ownerID uuid.UUID, ids []uuid.UUID) error {
	db := QuerierFromCtx(ctx, s.db)

	del := s.sb.Delete(f.Join.Table).Where(squirrel.Eq{f.Join.Local: ownerID})
	sql, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("build link delete: %w", err)
	}
	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return MapError(err, f.Join.Table, ownerID)
	}

	if len(ids) == 0 {
		return nil
	}

	ins := s.sb.Insert(f.Join.Table).Columns(f.Join.Local, f.Join.Remote)
	for _, id := range ids {
		ins = ins.Values(ownerID, id)
	}
	sql, args, err = ins.ToSql()
	if err != nil {
		return fmt.Errorf("build link insert: %w", err)
	}
	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return MapError(err, f.Join.Table, ownerID)
	}
	return nil
}

// LinksFor returns the related IDs of a batch of owner rows, keyed by
// owner. Owners without links are absent from the map.
func (s *Store) LinksFor(ctx context.Context, f model.Field, ownerIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	if len(ownerIDs) == 0 {
		return map[uuid.UUID][]uuid.UUID{}, nil
	}

	q := s.sb.Select(f.Join.Local, f.Join.Remote).
		From(f.Join.Table).
		Where(squirrel.Eq{f.Join.Local: ownerIDs}).
		OrderBy(f.Join.Local, f.Join.Remote)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build link select: %w", err)
	}

	rows, err := QuerierFromCtx(ctx, s.db).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s links: %w", f.Join.Table, err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var owner, related uuid.UUID
		if err := rows.Scan(&owner, &related); err != nil {
			return nil, fmt.Errorf("scan %s link: %w", f.Join.Table, err)
		}
		out[owner] = append(out[owner], related)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s links: %w", f.Join.Table, err)
	}
	return out, nil
}

// sortedValues flattens an input map into deterministic column/value lists.
func sortedValues(values map[string]any) ([]string, []any) {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = values[c]
	}
	return cols, vals
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

func hasColumn(rm *model.Registered, col string) bool {
	for _, c := range rm.Columns() {
		if c == col {
			return true
		}
	}
	return false
}

package graph

import (
	"context"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader/v7"

	"github.com/heartmarshall/gqlcrud/model"
)

type loadersCtxKey struct{}

// loaders hold the per-request batch loaders: one per model for row
// fetches, one per M2M field for link fetches. Nested relation fields
// inside one query collapse into single batched SELECTs.
type loaders struct {
	rows  map[string]*dataloader.Loader[uuid.UUID, any]
	links map[string]*dataloader.Loader[uuid.UUID, []uuid.UUID]
}

// WithLoaders attaches fresh dataloaders to the context. The server calls
// this once per request; resolvers fall back to direct store reads when the
// context carries no loaders (unit tests, background jobs).
func (b *Builder) WithLoaders(ctx context.Context) context.Context {
	l := &loaders{
		rows:  make(map[string]*dataloader.Loader[uuid.UUID, any]),
		links: make(map[string]*dataloader.Loader[uuid.UUID, []uuid.UUID]),
	}

	for _, rm := range b.reg.All() {
		rm := rm
		l.rows[rm.Name()] = dataloader.NewBatchedLoader(b.rowBatchFn(rm))

		for _, f := range rm.Fields {
			if !f.IsM2M() {
				continue
			}
			f := f
			l.links[linkKey(f)] = dataloader.NewBatchedLoader(b.linkBatchFn(f))
		}
	}

	return context.WithValue(ctx, loadersCtxKey{}, l)
}

func loadersFromCtx(ctx context.Context) *loaders {
	l, _ := ctx.Value(loadersCtxKey{}).(*loaders)
	return l
}

func linkKey(f model.Field) string {
	return f.Join.Table + "." + f.Join.Local
}

// rowBatchFn batches primary-key lookups of one model.
func (b *Builder) rowBatchFn(rm *model.Registered) dataloader.BatchFunc[uuid.UUID, any] {
	return func(ctx context.Context, keys []uuid.UUID) []*dataloader.Result[any] {
		results := make([]*dataloader.Result[any], len(keys))

		rows, err := b.store.GetByIDs(ctx, rm, keys)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result[any]{Error: err}
			}
			return results
		}

		byID := make(map[uuid.UUID]any, len(rows))
		for _, row := range rows {
			byID[rm.ID(row)] = row
		}
		for i, key := range keys {
			results[i] = &dataloader.Result[any]{Data: byID[key]}
		}
		return results
	}
}

// linkBatchFn batches M2M link lookups of one field.
func (b *Builder) linkBatchFn(f model.Field) dataloader.BatchFunc[uuid.UUID, []uuid.UUID] {
	return func(ctx context.Context, keys []uuid.UUID) []*dataloader.Result[[]uuid.UUID] {
		results := make([]*dataloader.Result[[]uuid.UUID], len(keys))

		byOwner, err := b.store.LinksFor(ctx, f, keys)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result[[]uuid.UUID]{Error: err}
			}
			return results
		}

		for i, key := range keys {
			results[i] = &dataloader.Result[[]uuid.UUID]{Data: byOwner[key]}
		}
		return results
	}
}

// fetchRow loads one row of a model by primary key, through the request
// loader when present. Returns nil when the row does not exist.
func (b *Builder) fetchRow(ctx context.Context, rm *model.Registered, id uuid.UUID) (any, error) {
	if l := loadersFromCtx(ctx); l != nil {
		if loader, ok := l.rows[rm.Name()]; ok {
			return loader.Load(ctx, id)()
		}
	}

	rows, err := b.store.GetByIDs(ctx, rm, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// fetchLinks loads the related IDs of an M2M field for one owner row.
func (b *Builder) fetchLinks(ctx context.Context, f model.Field, ownerID uuid.UUID) ([]uuid.UUID, error) {
	if l := loadersFromCtx(ctx); l != nil {
		if loader, ok := l.links[linkKey(f)]; ok {
			return loader.Load(ctx, ownerID)()
		}
	}

	byOwner, err := b.store.LinksFor(ctx, f, []uuid.UUID{ownerID})
	if err != nil {
		return nil, err
	}
	return byOwner[ownerID], nil
}

// resolveRelated resolves a FK field: the related type's permission gate
// applies, and denied or missing rows resolve to null rather than erroring.
func (b *Builder) resolveRelated(ctx context.Context, relatedRm *model.Registered, id uuid.UUID) (any, error) {
	if !b.checkAccess(ctx, relatedRm) {
		return nil, nil
	}

	row, err := b.fetchRow(ctx, relatedRm, id)
	if err != nil {
		return nil, presentError(ctx, b.log, err)
	}
	if row == nil {
		return nil, nil
	}

	ok, err := b.objectPerm(ctx, relatedRm, id)
	if err != nil {
		return nil, presentError(ctx, b.log, err)
	}
	if !ok {
		return nil, nil
	}
	return row, nil
}

// resolveM2M resolves an M2M field: links load batched, then related rows
// load batched, and rows the caller may not see are dropped from the list.
func (b *Builder) resolveM2M(ctx context.Context, rm, relatedRm *model.Registered, f model.Field, ownerID uuid.UUID) (any, error) {
	if !b.checkAccess(ctx, relatedRm) {
		return []any{}, nil
	}

	ids, err := b.fetchLinks(ctx, f, ownerID)
	if err != nil {
		return nil, presentError(ctx, b.log, err)
	}

	out := make([]any, 0, len(ids))
	for _, id := range ids {
		row, err := b.resolveRelated(ctx, relatedRm, id)
		if err != nil {
			return nil, err
		}
		if row != nil {
			out = append(out, row)
		}
	}
	return out, nil
}

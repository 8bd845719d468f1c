package graph

import (
	"errors"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/graphql-go/graphql"

	"github.com/heartmarshall/gqlcrud/domain"
	"github.com/heartmarshall/gqlcrud/model"
	"github.com/heartmarshall/gqlcrud/postgres"
)

// addQueries registers the node and list queries of one model:
// `task(id: ID!): Task` and `allTasks(limit, offset): TaskList!`.
func (b *Builder) addQueries(fields graphql.Fields, rm *model.Registered) {
	fields[lowerFirst(rm.Name())] = &graphql.Field{
		Type:        b.objects[rm.Name()],
		Description: "Fetch a single " + rm.Name() + " by its global ID.",
		Args: graphql.FieldConfigArgument{
			"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
		},
		Resolve: b.nodeResolver(rm),
	}

	listType := graphql.NewObject(graphql.ObjectConfig{
		Name: rm.Name() + "List",
		Fields: graphql.Fields{
			"items": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(b.objects[rm.Name()]))),
			},
			"totalCount": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Int),
				Description: "Total number of matching objects, ignoring pagination.",
			},
		},
	})

	fields["all"+rm.PluralName()] = &graphql.Field{
		Type:        graphql.NewNonNull(listType),
		Description: "List " + rm.PluralName() + " visible to the caller.",
		Args: graphql.FieldConfigArgument{
			"limit":  &graphql.ArgumentConfig{Type: graphql.Int},
			"offset": &graphql.ArgumentConfig{Type: graphql.Int},
		},
		Resolve: b.listResolver(rm),
	}
}

// nodeResolver fetches one row by global ID. Queries degrade instead of
// erroring: missing rows, denied types and denied rows all resolve to null.
func (b *Builder) nodeResolver(rm *model.Registered) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		gid, _ := p.Args["id"].(string)
		id, err := decodeTypedGID(gid, rm.Name())
		if err != nil {
			return nil, presentError(p.Context, b.log, err)
		}

		if !b.checkAccess(p.Context, rm) {
			return nil, nil
		}

		var preds []squirrel.Sqlizer
		if filter := b.guardFilter(p.Context, rm); filter != nil {
			preds = append(preds, filter)
		}

		row, err := b.store.GetByID(p.Context, rm, id, preds...)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, nil
			}
			return nil, presentError(p.Context, b.log, err)
		}
		return row, nil
	}
}

// listResolver lists rows visible to the caller with limit/offset paging.
func (b *Builder) listResolver(rm *model.Registered) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		empty := map[string]any{"items": []any{}, "totalCount": 0}

		if !b.checkAccess(p.Context, rm) {
			return empty, nil
		}

		limit := b.opts.MaxListLimit
		if v, ok := p.Args["limit"].(int); ok && v > 0 && v < limit {
			limit = v
		}
		offset := 0
		if v, ok := p.Args["offset"].(int); ok && v > 0 {
			offset = v
		}

		var preds []squirrel.Sqlizer
		if filter := b.guardFilter(p.Context, rm); filter != nil {
			preds = append(preds, filter)
		}

		items, err := b.store.List(p.Context, rm, postgres.ListOptions{
			Where:  preds,
			Limit:  uint64(limit),
			Offset: uint64(offset),
		})
		if err != nil {
			return nil, presentError(p.Context, b.log, err)
		}

		total, err := b.store.Count(p.Context, rm, preds...)
		if err != nil {
			return nil, presentError(p.Context, b.log, err)
		}

		return map[string]any{"items": items, "totalCount": total}, nil
	}
}

// lowerFirst lowercases the first rune of a type name for query naming.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

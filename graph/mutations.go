package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/graphql-go/graphql"

	"github.com/heartmarshall/gqlcrud/domain"
	"github.com/heartmarshall/gqlcrud/model"
	"github.com/heartmarshall/gqlcrud/perm"
	"github.com/heartmarshall/gqlcrud/pkg/ctxutil"
)

// mutationError is a payload errors entry. Field is nil for errors not
// tied to a particular input field.
type mutationError struct {
	Field   *string `json:"field"`
	Message string  `json:"message"`
}

// addMutations registers createX/updateX/deleteX for one model.
func (b *Builder) addMutations(fields graphql.Fields, rm *model.Registered) {
	payload := b.payloadType(rm)

	fields["create"+rm.Name()] = &graphql.Field{
		Type:        graphql.NewNonNull(payload),
		Description: "Create a new " + rm.Name() + ".",
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(b.inputType(rm, model.OpCreate))},
		},
		Resolve: b.saveResolver(rm, model.OpCreate),
	}

	fields["update"+rm.Name()] = &graphql.Field{
		Type:        graphql.NewNonNull(payload),
		Description: "Update an existing " + rm.Name() + ". Absent input fields keep their value.",
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(b.inputType(rm, model.OpUpdate))},
		},
		Resolve: b.saveResolver(rm, model.OpUpdate),
	}

	idInput := b.inputType(rm, model.OpDelete)

	fields["delete"+rm.Name()] = &graphql.Field{
		Type:        graphql.NewNonNull(payload),
		Description: "Delete a " + rm.Name() + " by its global ID.",
		Args: graphql.FieldConfigArgument{
			"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(idInput)},
		},
		Resolve: b.deleteResolver(rm),
	}

	for _, op := range b.custom[rm.Name()] {
		fields[op.name] = &graphql.Field{
			Type:        graphql.NewNonNull(payload),
			Description: op.desc,
			Args: graphql.FieldConfigArgument{
				"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(idInput)},
			},
			Resolve: b.operationResolver(rm, op),
		}
	}
}

// operationResolver implements custom instance mutations. The pipeline
// matches update: gate → resolve instance → object permission → run the
// operation in a transaction → payload with the reloaded row.
func (b *Builder) operationResolver(rm *model.Registered, op customOp) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		ctx := p.Context
		if err := b.mutationGate(ctx, rm); err != nil {
			return b.denied(rm, err)
		}

		input, _ := p.Args["input"].(map[string]any)
		gid, _ := input["id"].(string)

		instance, objID, ferr := b.getInstance(ctx, rm, gid)
		if ferr != nil {
			return payloadErrs(rm, []domain.FieldError{*ferr}), nil
		}

		ok, err := b.objectPerm(ctx, rm, objID)
		if err != nil {
			return nil, presentError(ctx, b.log, err)
		}
		if !ok {
			return b.denied(rm, errPermissionDenied())
		}

		txErr := b.tx.RunInTx(ctx, func(ctx context.Context) error {
			return op.fn(ctx, instance)
		})
		if txErr != nil {
			return b.mutationFailure(ctx, rm, txErr)
		}

		fresh, err := b.store.GetByID(ctx, rm, objID)
		if err != nil {
			return nil, presentError(ctx, b.log, err)
		}
		return payloadOK(rm, fresh), nil
	}
}

// payloadOK builds a success payload.
func payloadOK(rm *model.Registered, instance any) map[string]any {
	return map[string]any{
		rm.ReturnFieldName(): instance,
		"errors":             []mutationError{},
	}
}

// payloadErrs builds a failure payload from field errors.
func payloadErrs(rm *model.Registered, ferrs []domain.FieldError) map[string]any {
	out := make([]mutationError, len(ferrs))
	for i, fe := range ferrs {
		me := mutationError{Message: fe.Message}
		if fe.Field != "" {
			f := fe.Field
			me.Field = &f
		}
		out[i] = me
	}
	return map[string]any{
		rm.ReturnFieldName(): nil,
		"errors":             out,
	}
}

// mutationGate runs the model-level permission check for mutations.
func (b *Builder) mutationGate(ctx context.Context, rm *model.Registered) error {
	id := ctxutil.IdentityFromCtx(ctx)
	if !rm.Opts.Public && !perm.CheckAuthenticated(id) {
		return errUnauthenticated()
	}
	if !perm.CheckPerms(id, rm.Opts.Permissions, !rm.Opts.PermissionsAll) {
		return errPermissionDenied()
	}
	return nil
}

// denied converts a permission failure into either a payload or a GraphQL
// error, depending on SwallowPermissionDenied.
func (b *Builder) denied(rm *model.Registered, gateErr error) (any, error) {
	if b.opts.SwallowPermissionDenied {
		return payloadErrs(rm, []domain.FieldError{{Message: "permission denied"}}), nil
	}
	return nil, gateErr
}

// saveResolver implements create and update mutations. Both run the same
// pipeline: gate → resolve instance → clean input → save inside a
// transaction with hooks → payload.
func (b *Builder) saveResolver(rm *model.Registered, op model.Op) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		ctx := p.Context
		if err := b.mutationGate(ctx, rm); err != nil {
			return b.denied(rm, err)
		}

		input, _ := p.Args["input"].(map[string]any)

		var (
			instance any
			objID    uuid.UUID
		)
		if op == model.OpUpdate {
			gid, _ := input["id"].(string)
			var ferr *domain.FieldError
			instance, objID, ferr = b.getInstance(ctx, rm, gid)
			if ferr != nil {
				return payloadErrs(rm, []domain.FieldError{*ferr}), nil
			}
			ok, err := b.objectPerm(ctx, rm, objID)
			if err != nil {
				return nil, presentError(ctx, b.log, err)
			}
			if !ok {
				return b.denied(rm, errPermissionDenied())
			}
		} else {
			instance = rm.New()
		}

		values, links, ferrs, err := b.cleanInput(ctx, rm, input, op)
		if err != nil {
			return nil, presentError(ctx, b.log, err)
		}
		if len(ferrs) > 0 {
			return payloadErrs(rm, ferrs), nil
		}

		var saved any
		txErr := b.tx.RunInTx(ctx, func(ctx context.Context) error {
			if hook := rm.Opts.Hooks.BeforeSave; hook != nil {
				if err := hook(ctx, instance, values); err != nil {
					return err
				}
			}

			var err error
			if op == model.OpCreate {
				saved, err = b.store.Insert(ctx, rm, values)
			} else {
				saved, err = b.store.Update(ctx, rm, objID, values)
			}
			if err != nil {
				return err
			}

			for _, link := range links {
				if err := b.store.ReplaceLinks(ctx, link.field, rm.ID(saved), link.ids); err != nil {
					return err
				}
			}

			if hook := rm.Opts.Hooks.AfterSave; hook != nil {
				if err := hook(ctx, saved, values); err != nil {
					return err
				}
			}

			// Creates could not check object permissions up front; the
			// grants may depend on related objects or hook side effects,
			// so check now and roll back on denial.
			if op == model.OpCreate {
				ok, err := b.objectPerm(ctx, rm, rm.ID(saved))
				if err != nil {
					return err
				}
				if !ok {
					return domain.ErrForbidden
				}
			}
			return nil
		})
		if txErr != nil {
			return b.mutationFailure(ctx, rm, txErr)
		}

		return payloadOK(rm, saved), nil
	}
}

// deleteResolver implements delete mutations.
func (b *Builder) deleteResolver(rm *model.Registered) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		ctx := p.Context
		if err := b.mutationGate(ctx, rm); err != nil {
			return b.denied(rm, err)
		}

		input, _ := p.Args["input"].(map[string]any)
		gid, _ := input["id"].(string)

		instance, objID, ferr := b.getInstance(ctx, rm, gid)
		if ferr != nil {
			return payloadErrs(rm, []domain.FieldError{*ferr}), nil
		}

		ok, err := b.objectPerm(ctx, rm, objID)
		if err != nil {
			return nil, presentError(ctx, b.log, err)
		}
		if !ok {
			return b.denied(rm, errPermissionDenied())
		}

		txErr := b.tx.RunInTx(ctx, func(ctx context.Context) error {
			if hook := rm.Opts.Hooks.BeforeDelete; hook != nil {
				if err := hook(ctx, instance); err != nil {
					return err
				}
			}
			if err := b.store.Delete(ctx, rm, objID); err != nil {
				return err
			}
			if hook := rm.Opts.Hooks.AfterDelete; hook != nil {
				if err := hook(ctx, instance); err != nil {
					return err
				}
			}
			return nil
		})
		if txErr != nil {
			return b.mutationFailure(ctx, rm, txErr)
		}

		// The payload reports the object as it was, with its original ID.
		rm.SetID(instance, objID)
		return payloadOK(rm, instance), nil
	}
}

// getInstance resolves a mutation's target row from its global ID. Errors
// surface as field errors on "id", matching how unresolved nodes are
// reported to clients.
func (b *Builder) getInstance(ctx context.Context, rm *model.Registered, gid string) (any, uuid.UUID, *domain.FieldError) {
	id, err := decodeTypedGID(gid, rm.Name())
	if err != nil {
		return nil, uuid.Nil, &domain.FieldError{Field: "id", Message: err.Error()}
	}

	instance, err := b.store.GetByID(ctx, rm, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, uuid.Nil, &domain.FieldError{
				Field:   "id",
				Message: fmt.Sprintf("couldn't resolve to a %s: %s", rm.Name(), gid),
			}
		}
		return nil, uuid.Nil, &domain.FieldError{Field: "id", Message: "could not load object"}
	}

	return instance, id, nil
}

// mutationFailure converts a transaction error into a payload or GraphQL
// error: validation problems and (optionally) permission denials belong in
// the payload, everything else is a request error.
func (b *Builder) mutationFailure(ctx context.Context, rm *model.Registered, err error) (any, error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return payloadErrs(rm, ve.Errors), nil
	}
	if errors.Is(err, domain.ErrValidation) {
		return payloadErrs(rm, []domain.FieldError{{Message: err.Error()}}), nil
	}
	if errors.Is(err, domain.ErrForbidden) {
		return b.denied(rm, errPermissionDenied())
	}
	return nil, presentError(ctx, b.log, err)
}

// m2mLink pairs an M2M field with the decoded related IDs from the input.
type m2mLink struct {
	field model.Field
	ids   []uuid.UUID
}

// cleanInput decodes and validates mutation input: relations resolve to
// primary keys (the referenced rows must exist and be visible), scalars
// run field validation. Returns column values, M2M link sets, and any
// field errors. The id field is handled by the callers and skipped here.
func (b *Builder) cleanInput(ctx context.Context, rm *model.Registered, input map[string]any, op model.Op) (map[string]any, []m2mLink, []domain.FieldError, error) {
	values := make(map[string]any)
	var links []m2mLink
	var ferrs []domain.FieldError

	for _, f := range rm.InputFields(op) {
		if f.Name == "id" {
			continue
		}
		raw, present := input[f.Name]
		if !present {
			continue
		}

		if raw == nil {
			if f.Required {
				ferrs = append(ferrs, domain.FieldError{Field: f.Name, Message: "this field is required"})
			} else if f.IsM2M() {
				links = append(links, m2mLink{field: f})
			} else {
				values[f.Column] = nil
			}
			continue
		}

		switch {
		case f.IsM2M():
			rawList, _ := raw.([]any)
			ids, ferr, err := b.resolveIDList(ctx, f, rawList)
			if err != nil {
				return nil, nil, nil, err
			}
			if ferr != nil {
				ferrs = append(ferrs, *ferr)
				continue
			}
			links = append(links, m2mLink{field: f, ids: ids})

		case f.IsRelation():
			gid, _ := raw.(string)
			id, ferr, err := b.resolveID(ctx, f, gid)
			if err != nil {
				return nil, nil, nil, err
			}
			if ferr != nil {
				ferrs = append(ferrs, *ferr)
				continue
			}
			values[f.Column] = id

		default:
			if ferr := f.Validate(raw); ferr != nil {
				ferrs = append(ferrs, *ferr)
				continue
			}
			values[f.Column] = raw
		}
	}

	return values, links, ferrs, nil
}

// resolveID resolves one relation input value: decode the global ID and
// require the referenced row to exist and be visible to the caller.
func (b *Builder) resolveID(ctx context.Context, f model.Field, gid string) (uuid.UUID, *domain.FieldError, error) {
	id, err := decodeTypedGID(gid, f.OfType)
	if err != nil {
		return uuid.Nil, &domain.FieldError{Field: f.Name, Message: err.Error()}, nil
	}

	relatedRm, ok := b.reg.Get(f.OfType)
	if !ok {
		return uuid.Nil, nil, fmt.Errorf("unregistered relation target %s", f.OfType)
	}

	row, err := b.resolveRelated(ctx, relatedRm, id)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if row == nil {
		return uuid.Nil, &domain.FieldError{
			Field:   f.Name,
			Message: fmt.Sprintf("couldn't resolve to a %s: %s", f.OfType, gid),
		}, nil
	}
	return id, nil, nil
}

func (b *Builder) resolveIDList(ctx context.Context, f model.Field, raw []any) ([]uuid.UUID, *domain.FieldError, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, item := range raw {
		gid, _ := item.(string)
		id, ferr, err := b.resolveID(ctx, f, gid)
		if err != nil || ferr != nil {
			return nil, ferr, err
		}
		ids = append(ids, id)
	}
	return ids, nil, nil
}

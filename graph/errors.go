package graph

import (
	"context"
	"errors"
	"log/slog"

	"github.com/heartmarshall/gqlcrud/domain"
	"github.com/heartmarshall/gqlcrud/pkg/ctxutil"
)

// codedError is an error carrying GraphQL error extensions. The engine's
// formatter detects the Extensions method and copies the map into the
// response, so clients get a stable machine-readable code.
type codedError struct {
	msg string
	ext map[string]any
}

func (e *codedError) Error() string { return e.msg }

// Extensions implements gqlerrors.ExtendedError.
func (e *codedError) Extensions() map[string]any { return e.ext }

// errPermissionDenied is the canonical denial returned by mutation and
// query gates.
func errPermissionDenied() error {
	return &codedError{msg: "permission denied", ext: map[string]any{"code": "FORBIDDEN"}}
}

func errUnauthenticated() error {
	return &codedError{msg: "authentication required", ext: map[string]any{"code": "UNAUTHENTICATED"}}
}

// presentError maps domain errors to GraphQL error codes, logging anything
// unexpected and hiding its message from the client.
func presentError(ctx context.Context, log *slog.Logger, err error) error {
	var coded *codedError
	if errors.As(err, &coded) {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &codedError{msg: err.Error(), ext: map[string]any{"code": "NOT_FOUND"}}

	case errors.Is(err, domain.ErrAlreadyExists):
		return &codedError{msg: err.Error(), ext: map[string]any{"code": "ALREADY_EXISTS"}}

	case errors.Is(err, domain.ErrValidation):
		ext := map[string]any{"code": "VALIDATION"}
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			ext["fields"] = ve.Errors
		}
		return &codedError{msg: err.Error(), ext: ext}

	case errors.Is(err, domain.ErrUnauthorized):
		return &codedError{msg: err.Error(), ext: map[string]any{"code": "UNAUTHENTICATED"}}

	case errors.Is(err, domain.ErrForbidden):
		return &codedError{msg: err.Error(), ext: map[string]any{"code": "FORBIDDEN"}}

	case errors.Is(err, domain.ErrConflict):
		return &codedError{msg: err.Error(), ext: map[string]any{"code": "CONFLICT"}}

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err

	default:
		log.ErrorContext(ctx, "unexpected GraphQL error",
			slog.String("error", err.Error()),
			slog.String("request_id", ctxutil.RequestIDFromCtx(ctx)),
		)
		return &codedError{msg: "internal error", ext: map[string]any{"code": "INTERNAL"}}
	}
}

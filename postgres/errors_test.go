package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/gqlcrud/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, domain.ErrAlreadyExists},
		{"fk violation", &pgconn.PgError{Code: "23503"}, domain.ErrNotFound},
		{"check violation", &pgconn.PgError{Code: "23514"}, domain.ErrValidation},
		{"deadline passes through", context.DeadlineExceeded, context.DeadlineExceeded},
		{"cancel passes through", context.Canceled, context.Canceled},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MapError(tc.in, "widgets", "x")
			if !errors.Is(got, tc.want) {
				t.Errorf("MapError(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	if got := MapError(nil, "widgets", "x"); got != nil {
		t.Errorf("MapError(nil) = %v", got)
	}
}

func TestMapError_Unknown(t *testing.T) {
	in := errors.New("boom")
	got := MapError(in, "widgets", "x")
	if !errors.Is(got, in) {
		t.Errorf("MapError should wrap unknown errors, got %v", got)
	}
	if errors.Is(got, domain.ErrNotFound) {
		t.Error("unknown error must not map to ErrNotFound")
	}
}

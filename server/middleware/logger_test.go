package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/heartmarshall/gqlcrud/perm"
	"github.com/heartmarshall/gqlcrud/pkg/ctxutil"
)

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	wrapped := Logger(logger)(handler)

	userID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	ctx := ctxutil.WithRequestID(req.Context(), "req-123")
	ctx = ctxutil.WithIdentity(ctx, perm.Identity{UserID: userID, Authenticated: true})
	req = req.WithContext(ctx)

	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	logOutput := buf.String()
	for _, want := range []string{
		"http.request",
		"method=POST",
		"path=/graphql",
		"status=404",
		"request_id=req-123",
		"user_id=" + userID.String(),
	} {
		if !strings.Contains(logOutput, want) {
			t.Errorf("expected log to contain %q, got %q", want, logOutput)
		}
	}
}

func TestLogger_AnonymousOmitsUserID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	wrapped := Logger(logger)(handler)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	logOutput := buf.String()
	if strings.Contains(logOutput, "user_id") {
		t.Errorf("expected no user_id for anonymous request, got %q", logOutput)
	}
	if !strings.Contains(logOutput, "status=200") {
		t.Errorf("expected default status 200, got %q", logOutput)
	}
}

func TestLogger_ServerErrorLogsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	// Only error-level records pass the handler.
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	wrapped := Logger(logger)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	logOutput := buf.String()
	if !strings.Contains(logOutput, "status=500") {
		t.Errorf("expected 500 logged at error level, got %q", logOutput)
	}
}

func TestStatusWriter_KeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	sw.WriteHeader(http.StatusBadRequest)
	sw.WriteHeader(http.StatusOK)

	if sw.status != http.StatusBadRequest {
		t.Errorf("expected recorded status %d, got %d", http.StatusBadRequest, sw.status)
	}
}

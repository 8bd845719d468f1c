package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/heartmarshall/gqlcrud/domain"
	"github.com/heartmarshall/gqlcrud/perm"
)

// Authenticator resolves a username/password pair to an identity.
// The application supplies the implementation (user storage is not part
// of this library).
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (perm.Identity, error)
}

// tokenIssuer issues signed access tokens for an identity.
// *auth.JWTManager implements it.
type tokenIssuer interface {
	GenerateAccessToken(id perm.Identity) (string, error)
}

// TokenHandler serves POST /auth/token.
type TokenHandler struct {
	users  Authenticator
	tokens tokenIssuer
	ttl    time.Duration
	log    *slog.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(users Authenticator, tokens tokenIssuer, ttl time.Duration, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{users: users, tokens: tokens, ttl: ttl, log: logger.With("handler", "token")}
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
}

// Issue handles POST /auth/token.
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	identity, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			h.log.ErrorContext(r.Context(), "authenticate failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	token, err := h.tokens.GenerateAccessToken(identity)
	if err != nil {
		h.log.ErrorContext(r.Context(), "token generation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.ttl.Seconds()),
	})
}

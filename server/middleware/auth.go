package middleware

import (
	"net/http"
	"strings"

	"github.com/heartmarshall/gqlcrud/perm"
	"github.com/heartmarshall/gqlcrud/pkg/ctxutil"
)

type tokenValidator interface {
	ValidateAccessToken(token string) (perm.Identity, error)
}

// Auth returns middleware that resolves the caller identity from a bearer
// token. Requests without a token proceed anonymously; invalid tokens are
// rejected.
func Auth(validator tokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r) // Anonymous
				return
			}
			identity, err := validator.ValidateAccessToken(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := ctxutil.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// Package auth issues and validates the HS256 access tokens carrying the
// caller identity: user ID as subject plus superuser flag and global
// permission strings as custom claims.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/heartmarshall/gqlcrud/perm"
)

// JWTManager handles access token generation and validation.
type JWTManager struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
}

// NewJWTManager creates a new JWT manager.
// secret must be at least 32 characters for HS256 security.
func NewJWTManager(secret string, issuer string, accessTTL time.Duration) *JWTManager {
	return &JWTManager{
		secret:    []byte(secret),
		issuer:    issuer,
		accessTTL: accessTTL,
	}
}

// accessClaims extends standard JWT claims with the identity's permissions.
type accessClaims struct {
	jwt.RegisteredClaims
	Superuser bool     `json:"su,omitempty"`
	Perms     []string `json:"perms,omitempty"`
}

// GenerateAccessToken creates a signed HS256 JWT for the identity.
func (m *JWTManager) GenerateAccessToken(id perm.Identity) (string, error) {
	now := time.Now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Superuser: id.Superuser,
		Perms:     id.Perms,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ValidateAccessToken parses and validates an access token and returns the
// authenticated identity it carries.
func (m *JWTManager) ValidateAccessToken(tokenString string) (perm.Identity, error) {
	if tokenString == "" {
		return perm.Anonymous(), fmt.Errorf("token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &accessClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return perm.Anonymous(), fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return perm.Anonymous(), fmt.Errorf("invalid token claims")
	}

	if claims.Issuer != m.issuer {
		return perm.Anonymous(), fmt.Errorf("invalid issuer: expected %s, got %s", m.issuer, claims.Issuer)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return perm.Anonymous(), fmt.Errorf("invalid subject UUID: %w", err)
	}

	return perm.Identity{
		UserID:        userID,
		Authenticated: true,
		Superuser:     claims.Superuser,
		Perms:         claims.Perms,
	}, nil
}

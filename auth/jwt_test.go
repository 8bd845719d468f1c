package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/gqlcrud/perm"
)

const testSecret = "test-secret-key-at-least-32-chars!!"

func TestJWT_Roundtrip(t *testing.T) {
	m := NewJWTManager(testSecret, "gqlcrud-test", time.Minute)

	want := perm.Identity{
		UserID:        uuid.New(),
		Authenticated: true,
		Superuser:     true,
		Perms:         []string{"taskboard.view_project", "users.manage"},
	}

	token, err := m.GenerateAccessToken(want)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	got, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if got.UserID != want.UserID {
		t.Errorf("UserID = %s, want %s", got.UserID, want.UserID)
	}
	if !got.Authenticated {
		t.Error("identity should be authenticated")
	}
	if !got.Superuser {
		t.Error("superuser flag lost")
	}
	if len(got.Perms) != 2 || got.Perms[0] != "taskboard.view_project" {
		t.Errorf("Perms = %v", got.Perms)
	}
}

func TestJWT_Invalid(t *testing.T) {
	m := NewJWTManager(testSecret, "gqlcrud-test", time.Minute)
	id := perm.Identity{UserID: uuid.New(), Authenticated: true}

	t.Run("empty token", func(t *testing.T) {
		if _, err := m.ValidateAccessToken(""); err == nil {
			t.Error("want error")
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		if _, err := m.ValidateAccessToken("not.a.jwt"); err == nil {
			t.Error("want error")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTManager("another-secret-key-also-32-chars!!!", "gqlcrud-test", time.Minute)
		token, err := other.GenerateAccessToken(id)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.ValidateAccessToken(token); err == nil {
			t.Error("token signed with another secret must not validate")
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTManager(testSecret, "someone-else", time.Minute)
		token, err := other.GenerateAccessToken(id)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.ValidateAccessToken(token); err == nil {
			t.Error("token from another issuer must not validate")
		}
	})

	t.Run("expired", func(t *testing.T) {
		short := NewJWTManager(testSecret, "gqlcrud-test", -time.Minute)
		token, err := short.GenerateAccessToken(id)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.ValidateAccessToken(token); err == nil {
			t.Error("expired token must not validate")
		}
	})
}

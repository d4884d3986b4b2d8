package gateway

import (
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/bazario/pushgate/tools/errs"
	"github.com/bazario/pushgate/tools/security"
)

var testSecret = []byte("test-secret")

func mustToken(t *testing.T, user string) string {
	t.Helper()
	tok, _, err := security.Generate(security.DefaultOptions(testSecret), user)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func expiredToken(t *testing.T, user string) string {
	t.Helper()
	now := time.Now().Add(-time.Hour)
	claims := jwtlib.MapClaims{
		"sub": user,
		"iat": now.Unix(),
		"exp": now.Add(time.Minute).Unix(),
	}
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	return tok
}

func TestResolveValidToken(t *testing.T) {
	r := NewJWTResolver(testSecret)
	user, err := r.Resolve(mustToken(t, "alice"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if user != "alice" {
		t.Errorf("user = %q, want alice", user)
	}
}

func TestResolveRejections(t *testing.T) {
	r := NewJWTResolver(testSecret)
	wrongKey := NewJWTResolver([]byte("other-secret"))

	cases := []struct {
		name     string
		resolver *JWTResolver
		token    string
	}{
		{"missing token", r, ""},
		{"whitespace token", r, "   "},
		{"garbage token", r, "not.a.jwt"},
		{"expired token", r, expiredToken(t, "alice")},
		{"wrong signing key", wrongKey, mustToken(t, "alice")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user, err := tc.resolver.Resolve(tc.token)
			if err == nil {
				t.Fatalf("resolved to %q, want rejection", user)
			}
			if !errors.Is(err, errs.ErrAuthRejected) {
				t.Errorf("err = %v, want auth rejected category", err)
			}
		})
	}
}

package gateway

import (
	"net/http"
	"strings"

	"github.com/bazario/pushgate/tools/errs"
	"github.com/bazario/pushgate/tools/security"
)

// Resolver validates a raw credential and returns the user identity behind
// it. It runs once per connection, before any group join; failures are always
// ErrAuthRejected-coded so the gateway can close with the right code.
type Resolver interface {
	Resolve(token string) (string, error)
}

type JWTResolver struct {
	opts security.Options
}

func NewJWTResolver(secret []byte) *JWTResolver {
	return &JWTResolver{opts: security.DefaultOptions(secret)}
}

func (r *JWTResolver) Resolve(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errs.ErrAuthRejected.WithDetail("missing token")
	}
	user, err := security.Verify(r.opts, token)
	if err != nil {
		return "", errs.ErrAuthRejected.WithDetail(err.Error())
	}
	return user, nil
}

// TokenFromRequest pulls the credential from the ?token= query parameter,
// falling back to an Authorization bearer header.
func TokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

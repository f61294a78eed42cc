// Package auth resolves the user behind each API request. With a secret
// configured it expects an HS256 bearer token whose subject is the user id;
// without one it trusts the X-User-ID header, which is only suitable behind
// an authenticating proxy or in development. Header identities are
// collaborators unless WithHeaderRoles is set.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"horas/internal/core"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   core.Role
}

// CanActFor reports whether the caller may read or write userID's ledger.
// Collaborators only reach their own days; unknown roles count as
// collaborators.
func (id Identity) CanActFor(userID string) bool {
	return userID == "" || userID == id.UserID || id.Role.CanViewOthers()
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type Authenticator struct {
	secret      []byte
	now         func() time.Time
	headerRoles bool
}

type Option func(*Authenticator)

// WithHeaderRoles honours X-User-Role when no secret is configured. Only
// enable it behind a proxy that sets the header itself.
func WithHeaderRoles() Option {
	return func(a *Authenticator) { a.headerRoles = true }
}

func NewAuthenticator(secret string, opts ...Option) *Authenticator {
	a := &Authenticator{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HeaderRoles reports whether X-User-Role is trusted.
func (a *Authenticator) HeaderRoles() bool {
	return !a.Enabled() && a.headerRoles
}

// Enabled reports whether tokens are verified.
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// IssueToken signs a token for userID valid for ttl.
func (a *Authenticator) IssueToken(userID string, role core.Role, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", errors.New("issue token: no secret configured")
	}
	if userID == "" {
		return "", errors.New("issue token: missing user id")
	}
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(a.secret)
}

// Authenticate resolves the identity carried by r.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	if !a.Enabled() {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			return Identity{}, ErrMissingCredentials
		}
		role := core.RoleColaborador
		if a.headerRoles {
			role = core.ParseRole(r.Header.Get("X-User-Role"))
		}
		return Identity{UserID: userID, Role: role}, nil
	}

	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return Identity{}, ErrMissingCredentials
	}

	c := &claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{UserID: c.Subject, Role: core.ParseRole(c.Role)}, nil
}

// Middleware rejects unauthenticated requests with 401 and stores the
// identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Authenticate(r)
		if err != nil {
			slog.WarnContext(r.Context(), "Authentication failed",
				"path", r.URL.Path, "error", err)
			if a.Enabled() {
				w.Header().Set("WWW-Authenticate", `Bearer realm="horas"`)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

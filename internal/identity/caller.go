// Package identity resolves who is calling. Student and staff ids are opaque
// strings issued by the campus identity provider.
package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
)

// Caller is the authenticated principal behind a request.
type Caller struct {
	ID   string
	Role Role
}

func (c Caller) IsStaff() bool {
	return c.Role == RoleStaff
}

// Owns reports whether the caller is the student identified by studentID.
func (c Caller) Owns(studentID string) bool {
	return c.Role == RoleStudent && c.ID == studentID
}

func Student(id string) Caller { return Caller{ID: id, Role: RoleStudent} }
func Staff(id string) Caller   { return Caller{ID: id, Role: RoleStaff} }

// System is used by background workers.
var System = Caller{ID: "system", Role: RoleStaff}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	rawToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if rawToken == "" {
		return "", false
	}

	return rawToken, true
}

// Claims are the access token claims. Subject carries the caller id.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

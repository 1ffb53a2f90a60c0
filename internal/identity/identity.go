// Package identity resolves the caller behind a request. Session issuance
// lives in the platform auth service; this package only verifies what it
// is handed and exposes the resulting {user, role} pair.
package identity

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID snowflake.ID
	Role   string
}

func (id Identity) IsAdmin() bool   { return id.Role == RoleAdmin }
func (id Identity) IsTeacher() bool { return id.Role == RoleTeacher }

// Provider turns a bearer token into an Identity.
type Provider interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnknownRole     = errors.New("unknown_role")
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

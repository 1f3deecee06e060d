package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/doctorsportal/portal/internal/platform/apperr"
)

const roleAdmin = "admin"

// RoleLookup resolves the stored role of a user. It returns an error matching
// apperr.ErrNotFound when no user has the email.
type RoleLookup interface {
	RoleOf(ctx context.Context, email string) (string, error)
}

// Standing is the caller's position in the user store.
type Standing int

const (
	StandingAbsent Standing = iota
	StandingMember
	StandingAdmin
)

func (s Standing) String() string {
	switch s {
	case StandingMember:
		return "member"
	case StandingAdmin:
		return "admin"
	default:
		return "absent"
	}
}

// Gate decides whether an identity may perform administrative operations.
type Gate struct {
	roles RoleLookup
}

func NewGate(roles RoleLookup) *Gate {
	return &Gate{roles: roles}
}

func (g *Gate) Standing(ctx context.Context, id Identity) (Standing, error) {
	if id.Email == "" {
		return StandingAbsent, nil
	}
	role, err := g.roles.RoleOf(ctx, id.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		return StandingAbsent, nil
	}
	if err != nil {
		return StandingAbsent, fmt.Errorf("lookup role: %w", err)
	}
	if role == roleAdmin {
		return StandingAdmin, nil
	}
	return StandingMember, nil
}

// Authorize passes only admins. Absent users and members get ErrForbidden;
// lookup failures are returned as-is.
func (g *Gate) Authorize(ctx context.Context, id Identity) error {
	s, err := g.Standing(ctx, id)
	if err != nil {
		return err
	}
	if s != StandingAdmin {
		return fmt.Errorf("%w: admin role required (standing %s)", apperr.ErrForbidden, s)
	}
	return nil
}

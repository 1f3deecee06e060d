package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/doctorsportal/portal/internal/platform/apperr"
)

type Service struct {
	users   UserRepository
	doctors DoctorRepository
}

func NewService(users UserRepository, doctors DoctorRepository) *Service {
	return &Service{users: users, doctors: doctors}
}

// NormalizeEmail validates an address and returns it trimmed and lower-cased.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("invalid email %q", email)
	}
	return email, nil
}

// -- Users --

// UpsertUser records a login. New users are members; the role of an existing
// user is left unchanged.
func (s *Service) UpsertUser(ctx context.Context, email, name string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	u := &User{Email: email, Name: strings.TrimSpace(name)}
	if err := s.users.Upsert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.users.GetByEmail(ctx, email)
}

// RoleOf returns the stored role name for email, or an ErrNotFound error.
func (s *Service) RoleOf(ctx context.Context, email string) (string, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return u.Role.String(), nil
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// IsAdmin reports whether email belongs to an admin. Unknown users are not admins.
func (s *Service) IsAdmin(ctx context.Context, email string) (bool, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin(), nil
}

func (s *Service) PromoteToAdmin(ctx context.Context, email string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.users.SetRole(ctx, email, RoleAdmin)
}

func (s *Service) DeleteUser(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	return s.users.Delete(ctx, email)
}

// -- Doctors --

func (s *Service) AddDoctor(ctx context.Context, d *Doctor) error {
	email, err := NormalizeEmail(d.Email)
	if err != nil {
		return err
	}
	d.Email = email
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return apperr.Validation("name is required")
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) ListDoctors(ctx context.Context) ([]*Doctor, error) {
	return s.doctors.List(ctx)
}

func (s *Service) DeleteDoctor(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	return s.doctors.DeleteByEmail(ctx, email)
}

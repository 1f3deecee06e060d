package identity

import (
	"context"
)

type UserRepository interface {
	// Upsert inserts u or, when the email exists, updates its name. The
	// stored record, including role, is written back into u.
	Upsert(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	SetRole(ctx context.Context, email string, role Role) (*User, error)
	Delete(ctx context.Context, email string) error
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	List(ctx context.Context) ([]*Doctor, error)
	DeleteByEmail(ctx context.Context, email string) error
}

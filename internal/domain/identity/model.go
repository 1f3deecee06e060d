package identity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of user roles. The zero value is RoleMember.
type Role int

const (
	RoleMember Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "member"
}

// ParseRole maps a stored role to a Role. An empty value is a member.
func ParseRole(s string) (Role, error) {
	switch s {
	case "", "member":
		return RoleMember, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleMember, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Doctor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Specialty string    `json:"specialty"`
	Image     string    `json:"img"`
	CreatedAt time.Time `json:"created_at"`
}

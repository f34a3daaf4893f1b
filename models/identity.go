package models

import "fmt"

// Role is the portal-wide account category. Numeric ids are only unique
// within a role, so an identity is always the (id, role) pair.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Identity identifies one participant. Lookups must always filter by both
// fields together, never by id alone.
type Identity struct {
	ID   int  `json:"id"`
	Role Role `json:"role"`
}

func (i Identity) Valid() bool {
	_, err := ParseRole(string(i.Role))
	return i.ID > 0 && err == nil
}

func (i Identity) String() string {
	return fmt.Sprintf("%d:%s", i.ID, i.Role)
}

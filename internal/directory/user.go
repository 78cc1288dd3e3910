package directory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role places a user in the delegation hierarchy.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleOthers     Role = "others"
)

// ParseRole normalizes a role string.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RoleSuperadmin:
		return RoleSuperadmin, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleOthers, "":
		return RoleOthers, nil
	}
	return "", fmt.Errorf("%w: unsupported role %q", ErrInvalidInput, s)
}

// CanManage reports whether the role may mutate the delegation graph.
func (r Role) CanManage() bool {
	return r == RoleSuperadmin || r == RoleAdmin
}

// User is a participant in the delegation graph. AssignedAdmins is the set
// of admin ids the user currently reports to; a user may report to several
// admins at once. Version is the optimistic concurrency token guarding
// AssignedAdmins rewrites.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	AssignedAdmins []string  `json:"assignedAdmins"`
	Version        int64     `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// HasAdmin reports whether id is in the user's assigned admin set.
func (u User) HasAdmin(id string) bool {
	for _, a := range u.AssignedAdmins {
		if a == id {
			return true
		}
	}
	return false
}

var (
	ErrInvalidInput    = errors.New("directory: invalid input")
	ErrNotFound        = errors.New("directory: user not found")
	ErrEmailTaken      = errors.New("directory: email already registered")
	ErrBadCredentials  = errors.New("directory: bad credentials")
	ErrVersionConflict = errors.New("directory: concurrent update conflict")
)

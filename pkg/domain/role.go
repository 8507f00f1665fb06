package domain

import dErrors "dynforms/pkg/domain-errors"

// Role is the access role carried by an authenticated principal.
// Invariant: the value must be one of the supported roles.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleReviewer Role = "Reviewer"
	RoleUser     Role = "User"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleReviewer: true,
	RoleUser:     true,
}

// ParseRole constructs a Role from external input (token claims, seed config).
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID UserID
	Role   Role
}

// IsAdmin reports whether the principal holds the Admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// IsReviewer reports whether the principal may read catalog data. Admins
// inherit the reviewer policy.
func (p Principal) IsReviewer() bool {
	return p.Role == RoleReviewer || p.Role == RoleAdmin
}

// Owns reports whether the principal may act on a resource assigned to assignee.
// Admins own everything; everyone else only what is assigned to them.
func (p Principal) Owns(assignee *UserID) bool {
	if p.IsAdmin() {
		return true
	}
	return assignee != nil && !p.UserID.IsNil() && *assignee == p.UserID
}

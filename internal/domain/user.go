package domain

import (
	"strings"
	"time"
)

// Role identifies what a user may do on the board.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleRecruiter Role = "recruiter"
	RoleAdmin     Role = "admin"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleAdmin, RoleRecruiter, RoleApplicant}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleApplicant, RoleRecruiter, RoleAdmin:
		return true
	}
	return false
}

// User is an account holder of any role.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	Phone        *string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsAdmin() bool     { return u != nil && u.Role == RoleAdmin }
func (u *User) IsRecruiter() bool { return u != nil && u.Role == RoleRecruiter }
func (u *User) IsApplicant() bool { return u != nil && u.Role == RoleApplicant }

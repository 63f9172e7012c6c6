package model

import "time"

// User represents a library account. RA is the school registration number
// used alongside the email to identify students.
type User struct {
	ID           int64      `json:"id"`
	RA           string     `json:"ra"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Class        string     `json:"class,omitempty"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin:   3,
		RoleTeacher: 2,
		RoleStudent: 1,
	}
	return levels[role] >= levels[minimum]
}

// ValidRole reports whether the given role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleTeacher || role == RoleStudent
}

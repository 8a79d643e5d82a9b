package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles are fixed: admins manage users and settings, editors manage content.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// ValidRole reports whether role is one of the two known roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleEditor
}

// User represents an account in the system
type User struct {
	ID           uuid.UUID      `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	PasswordHash string         `json:"-"` // Never serialize password hash
	Meta         map[string]any `json:"meta,omitempty"`
	Active       bool           `json:"active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

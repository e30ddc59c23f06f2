package model

import "time"

// Role is the authorization level stored in users.role.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an application user record as stored in the
// `users` table. The json tags are omitted here because handlers
// define their own response types.
//
// Fields:
//  ID          : primary key identifier of the user.
//  Email       : unique, lower-cased email address.
//  PasswordHash: bcrypt hashed password.
//  Role        : USER or ADMIN.
//  IsActive    : set once the email address is verified.
//  IsVerified  : whether the email address has been confirmed.
//  CreatedAt   : timestamp of creation.
//  UpdatedAt   : timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	IsActive     bool      // users.is_active
	IsVerified   bool      // users.is_verified
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

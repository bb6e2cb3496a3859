package types

import "time"

// Role is the authorization level carried verbatim into issued tokens.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleDoctor Role = "DOCTOR"
)

// User represents an account allowed to sign in.
// It contains identity, role, and second-factor settings.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name, matched case-sensitively.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role is the user's role within the system (e.g., "ADMIN", "DOCTOR").
	Role Role `json:"role" db:"role"`

	// MFAEnabled reports whether login requires a one-time code.
	MFAEnabled bool `json:"mfa_enabled" db:"mfa_enabled"`

	// MFASecret is the shared secret one-time codes are checked against.
	// This field is never exposed in API responses.
	MFASecret string `json:"-" db:"mfa_secret"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

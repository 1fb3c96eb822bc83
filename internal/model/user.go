// Package model defines the data structures used throughout the application.
// Field tags name the JSON keys on the wire and the columns sqlx scans into.
package model

import "time"

// User represents a registered account.
//
// Accounts come from two places: email/password sign-up and Google sign-in.
// PasswordHash is nil for Google-only accounts and GoogleSub is nil for
// email-only accounts. Both are pointers because the columns are nullable
// and carry UNIQUE constraints (NULLs never collide with each other).
type User struct {
	ID           string    `json:"id"        db:"id"`
	Name         string    `json:"name"      db:"name"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash *string   `json:"-"         db:"password_hash"`
	GoogleSub    *string   `json:"-"         db:"google_sub"` // Google's stable subject identifier
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

package model

import "time"

// Session binds a bearer token to a user until ExpiresAt.
//
// The Authorization Gate resolves incoming tokens to a Session and attaches
// it to the request context; handlers read UserID from there.
type Session struct {
	ID        string    `json:"id"        db:"id"`
	Token     string    `json:"token"     db:"token"`
	UserID    string    `json:"userId"    db:"user_id"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
	IPAddress string    `json:"ipAddress" db:"ip_address"`
	UserAgent string    `json:"userAgent" db:"user_agent"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ActiveAt reports whether the session's expiry is strictly after now.
func (s *Session) ActiveAt(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

package model

import "time"

// User owns a mailbox. Tokens are plaintext here; the repository seals them at rest.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenExpiry  *time.Time `json:"token_expiry,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasTokens reports whether the user completed OAuth.
func (u *User) HasTokens() bool {
	return u.AccessToken != "" || u.RefreshToken != ""
}

// Identity is the explicit caller identity passed to every mailbox operation.
type Identity struct {
	UserID       int64
	Email        string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

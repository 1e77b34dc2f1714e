package models

import "time"

// User is a persisted credential record.
//
// Password and RefreshTokenHash hold digests, never plaintext. RefreshTokenHash
// is empty while no session is active; at most one digest is stored per user.
type User struct {
	ID               int64
	Username         string
	Email            string
	Password         string
	RefreshTokenHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasSession reports whether a refresh-token digest is currently stored.
func (u *User) HasSession() bool {
	return u.RefreshTokenHash != ""
}

// Profile is the public view of a user.
type Profile struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	SessionActive bool   `json:"sessionActive"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		SessionActive: u.HasSession(),
	}
}

package domain

import "time"

// Account is a registered user. PasswordHash is a bcrypt hash.
type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

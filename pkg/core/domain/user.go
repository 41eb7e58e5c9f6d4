package domain

import "time"

// User owns links. Credential is either a bcrypt hash or an external identity reference.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Credential string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Identity is what a verified bearer token says about its holder
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

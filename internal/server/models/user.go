package models

import "time"

// UserDocType is the discriminator stored in every user document.
const UserDocType = "user"

// User is an account as persisted by the user store. ID and Rev are assigned
// by the store on creation; PasswordHash is a bcrypt digest.
type User struct {
	ID           string    `json:"_id,omitempty"`
	Rev          string    `json:"_rev,omitempty"`
	Type         string    `json:"type"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

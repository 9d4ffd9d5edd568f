package models

import "time"

// User is the local identity the session subsystem issues tokens for.
type User struct {
	ID           string
	UserName     string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

package domain

import "time"

// User represents a registered account. PasswordHash is internal state and
// must never be serialized into a client-facing response.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

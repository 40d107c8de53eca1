package repository

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when a user create violates the email
	// uniqueness constraint.
	ErrDuplicateEmail = errors.New("email already registered")
)

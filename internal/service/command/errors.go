package command

import "errors"

// Sentinel errors carried by rejected Results.
var (
	ErrInvalid  = errors.New("invalid input")
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

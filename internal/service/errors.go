package service

import (
	"errors"

	"bptrack/internal/repository"
)

var (
	ErrNotFound           = repository.ErrNotFound
	ErrForbidden          = errors.New("not the owner of this record")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

// ValidationError rejected input; Message is safe to show to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

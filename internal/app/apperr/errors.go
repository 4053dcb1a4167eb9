package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrBelowMinimum  = errors.New("value below minimum")
	ErrUnavailable   = errors.New("service unavailable")

	// admin console
	ErrNoSelection      = errors.New("no user selected")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrNegativeBalance  = errors.New("balance cannot be negative")
)

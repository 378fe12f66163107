package hsm

import "errors"

// Package-level errors.
var (
	// ErrInvalidArgument is returned when an argument is rejected before
	// transmission.
	ErrInvalidArgument = errors.New("hsm: invalid argument")

	// ErrInvalidConfig is returned when Config validation fails.
	ErrInvalidConfig = errors.New("hsm: invalid configuration")

	// ErrNoTransport is returned when Config has no transport.
	ErrNoTransport = errors.New("hsm: transport required")

	// ErrNoCredential is returned when Config has neither a credential nor
	// a password.
	ErrNoCredential = errors.New("hsm: credential or password required")
)

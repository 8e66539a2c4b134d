package session

import "errors"

var (
	// ErrNotFound is returned when no session exists for the given id.
	ErrNotFound = errors.New("session not found")

	// ErrExpired is returned when a session exists but has passed its TTL.
	// Validation evicts the session as a side effect before returning this.
	ErrExpired = errors.New("session expired")

	// ErrInvalidStoreType is returned by NewStore for an unknown driver.
	ErrInvalidStoreType = errors.New("invalid session store type")

	// ErrInvalidConfig is returned when a driver's required option is missing.
	ErrInvalidConfig = errors.New("invalid session store configuration")
)

package session

import "context"

// Store defines the interface for session storage operations. All drivers
// serialize access internally; callers never hold a store lock across a
// provider call.
type Store interface {
	// Create generates a session with an unguessable opaque id and the
	// namespace TTL applied. OwnerRef is optional and records who the
	// session was issued to (admin sessions only).
	Create(ctx context.Context, ns Namespace, ownerRef string) (*Session, error)

	// Validate returns the live session for id. A session past its TTL is
	// evicted as a side effect and ErrExpired is returned; an unknown id
	// returns ErrNotFound.
	Validate(ctx context.Context, id string) (*Session, error)

	// Touch advances LastActivityAt and increments TurnCount. It is a
	// no-op if the session is missing.
	Touch(ctx context.Context, id string) error

	// Delete removes a session (explicit logout).
	Delete(ctx context.Context, id string) error

	// Sweep removes all expired sessions and reports how many were
	// evicted. Validation already self-heals lazily; sweeping only bounds
	// memory and storage.
	Sweep(ctx context.Context) (int, error)

	// Close releases driver resources.
	Close() error
}

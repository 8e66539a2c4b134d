package session

import "time"

// Namespace separates the two session populations the gateway manages.
// They share the store mechanism but differ in TTL and in who may create
// them: chat sessions are anonymous, admin sessions require a verified
// credential first.
type Namespace string

const (
	NamespaceChat  Namespace = "chat"
	NamespaceAdmin Namespace = "admin"
)

// Session is server-held state keyed by an opaque identifier. The TTL is
// fixed at creation: ExpiresAt is always CreatedAt plus the namespace TTL
// and is never extended. Only LastActivityAt and TurnCount change after
// creation.
type Session struct {
	ID             string    `json:"id"`
	Namespace      Namespace `json:"namespace"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	TurnCount      int       `json:"turn_count"`
	OwnerRef       string    `json:"owner_ref,omitempty"`
}

// ExpiredAt reports whether the session has passed its TTL at the given time.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *Session) clone() *Session {
	cp := *s
	return &cp
}

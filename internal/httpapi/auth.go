package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"chatgate/internal/session"
)

// ErrInvalidCredentials is returned by Login on a username or password
// mismatch. The two cases are not distinguished.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator verifies admin credentials and owns the admin sessions.
type Authenticator struct {
	username string
	password string
	sessions session.Store
}

func NewAuthenticator(username, password string, sessions session.Store) *Authenticator {
	return &Authenticator{
		username: username,
		password: password,
		sessions: sessions,
	}
}

// Login checks the credentials and returns a fresh admin session token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}
	sess, err := a.sessions.Create(ctx, session.NamespaceAdmin, username)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// Logout deletes the admin session for the given token.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	return a.sessions.Delete(ctx, token)
}

// Verify reports whether the token names a live admin session.
func (a *Authenticator) Verify(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	sess, err := a.sessions.Validate(ctx, token)
	if err != nil {
		return false
	}
	return sess.Namespace == session.NamespaceAdmin
}

// adminToken extracts the admin session token from a request.
func adminToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	return r.Header.Get("X-Admin-Token")
}

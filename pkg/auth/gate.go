// Package auth gates the web UI behind a single configured login.
//
// A session starts unauthenticated and becomes authenticated once, on a
// successful Login. Sessions live in memory and are lost on restart.
package auth

import (
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"

	amerrors "github.com/appenmapper/appenmapper/pkg/errors"
)

// Session is an authenticated login.
type Session struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// Gate validates credentials and tracks sessions.
type Gate struct {
	username string
	password string
	ttl      time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewGate creates a gate accepting exactly one username/password pair.
// A non-positive ttl keeps sessions until Logout.
func NewGate(username, password string, ttl time.Duration) *Gate {
	return &Gate{
		username: username,
		password: password,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

// Login checks the credentials and opens a session.
func (g *Gate) Login(username, password string) (Session, error) {
	// Both comparisons always run.
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(g.password))
	if userOK&passOK != 1 || g.password == "" {
		return Session{}, amerrors.New(amerrors.CodeUnauthorized, "Invalid username or password.")
	}

	s := Session{Token: uuid.NewString(), Username: username}
	if g.ttl > 0 {
		s.ExpiresAt = g.now().Add(g.ttl)
	}

	g.mu.Lock()
	g.sessions[s.Token] = s
	g.mu.Unlock()
	return s, nil
}

// Check returns the session for token, or an Unauthorized error when the
// token is unknown or expired. Expired sessions are removed.
func (g *Gate) Check(token string) (Session, error) {
	if token == "" {
		return Session{}, errNoSession
	}

	g.mu.RLock()
	s, ok := g.sessions[token]
	g.mu.RUnlock()
	if !ok {
		return Session{}, errNoSession
	}

	if !s.ExpiresAt.IsZero() && g.now().After(s.ExpiresAt) {
		g.mu.Lock()
		delete(g.sessions, token)
		g.mu.Unlock()
		return Session{}, errNoSession
	}
	return s, nil
}

// Logout ends the session. Unknown tokens are ignored.
func (g *Gate) Logout(token string) {
	g.mu.Lock()
	delete(g.sessions, token)
	g.mu.Unlock()
}

// Sweep drops expired sessions and returns how many were removed.
func (g *Gate) Sweep() int {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for token, s := range g.sessions {
		if !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt) {
			delete(g.sessions, token)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (g *Gate) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

var errNoSession = amerrors.New(amerrors.CodeUnauthorized, "login required")

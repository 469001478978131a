// Package session holds the mapping from opaque session tokens to usernames.
// Sessions live only in process memory: a restart logs every user out. That is
// a deliberate carry-over from the original deployment, not an oversight.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// tokenLength is the token size in bytes. 16 bytes = 128 bits of entropy.
const tokenLength = 16

type Store interface {
	Create(username string) (string, error)
	Resolve(token string) (string, bool)
	Revoke(token string)
}

type entry struct {
	username  string
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is the process-owned Store implementation. All access goes
// through the mutex; it is safe for concurrent request handling.
type MemoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]entry
}

// NewMemoryStore returns an in-memory session store. A ttl of zero or less
// disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[string]entry),
	}
}

func (s *MemoryStore) Create(username string) (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	token := hex.EncodeToString(buf)

	e := entry{username: username}
	if s.ttl > 0 {
		e.expiresAt = time.Now().Add(s.ttl)
	}

	s.mu.Lock()
	s.sessions[token] = e
	s.mu.Unlock()
	return token, nil
}

func (s *MemoryStore) Resolve(token string) (string, bool) {
	s.mu.RLock()
	e, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		s.Revoke(token)
		return "", false
	}
	return e.username, true
}

func (s *MemoryStore) Revoke(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

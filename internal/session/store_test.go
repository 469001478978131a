package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateAndResolve(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(0)

	token, err := s.Create("alice")
	req.NoError(err)
	req.Len(token, tokenLength*2) // hex encoding doubles the byte length

	username, ok := s.Resolve(token)
	req.True(ok)
	req.Equal("alice", username)

	_, ok = s.Resolve("deadbeefdeadbeefdeadbeefdeadbeef")
	req.False(ok)
}

func TestTokensAreUnique(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(0)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := s.Create("alice")
		req.NoError(err)
		req.False(seen[token], "token issued twice")
		seen[token] = true
	}
}

func TestRevoke(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(0)

	token, err := s.Create("alice")
	req.NoError(err)

	s.Revoke(token)
	_, ok := s.Resolve(token)
	req.False(ok)

	// Revoking an unknown token is harmless.
	s.Revoke("no-such-token")
}

func TestExpiry(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(10 * time.Millisecond)

	token, err := s.Create("alice")
	req.NoError(err)

	_, ok := s.Resolve(token)
	req.True(ok)

	time.Sleep(25 * time.Millisecond)
	_, ok = s.Resolve(token)
	req.False(ok, "expired session should not resolve")
}

func TestZeroTTLNeverExpires(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore(0)

	token, err := s.Create("alice")
	req.NoError(err)

	time.Sleep(15 * time.Millisecond)
	username, ok := s.Resolve(token)
	req.True(ok)
	req.Equal("alice", username)
}

func TestConcurrentAccess(t *testing.T) {
	s := NewMemoryStore(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user%d", n)
			for j := 0; j < 50; j++ {
				token, err := s.Create(user)
				if err != nil {
					t.Error(err)
					return
				}
				got, ok := s.Resolve(token)
				if !ok || got != user {
					t.Errorf("resolve returned %q, %v for %q", got, ok, user)
					return
				}
				s.Revoke(token)
			}
		}(i)
	}
	wg.Wait()
}

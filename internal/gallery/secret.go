package gallery

import (
	"context"
	"errors"
	"sync"
)

// ErrDeclined is returned by Acquire after the user refused to enter a password
var ErrDeclined = errors.New("password prompt declined")

// Secret holds the decryption password for the session. It is never persisted.
// Acquire blocks until a password is supplied; Revoke forces the next Acquire
// to prompt again.
type Secret struct {
	mu       sync.Mutex
	password string
	declined bool
	ready    chan struct{}
	waiters  int

	onPrompt func()
	onRevoke func()
}

// NewSecret returns an empty secret. onPrompt runs each time a caller starts
// waiting on the prompt, onRevoke after each revocation. Either may be nil.
func NewSecret(onPrompt, onRevoke func()) *Secret {
	return &Secret{onPrompt: onPrompt, onRevoke: onRevoke}
}

// Acquire returns the password, prompting and waiting for one when needed
func (s *Secret) Acquire(ctx context.Context) (string, error) {
	for {
		s.mu.Lock()
		if s.password != "" {
			pw := s.password
			s.mu.Unlock()
			return pw, nil
		}
		if s.declined {
			s.mu.Unlock()
			return "", ErrDeclined
		}
		if s.ready == nil {
			s.ready = make(chan struct{})
		}
		ready := s.ready
		s.waiters++
		s.mu.Unlock()

		// A waiter from a superseded run may still hold the prompt, so every
		// new waiter announces it again.
		if s.onPrompt != nil {
			s.onPrompt()
		}

		select {
		case <-ctx.Done():
			s.leave(ready)
			return "", ctx.Err()
		case <-ready:
		}
	}
}

// Supply answers the prompt. An empty password declines it.
func (s *Secret) Supply(password string) {
	if password == "" {
		s.Decline()
		return
	}
	s.mu.Lock()
	s.password = password
	s.declined = false
	s.release()
	s.mu.Unlock()
}

// Decline refuses the prompt until ResetDecline is called
func (s *Secret) Decline() {
	s.mu.Lock()
	s.declined = true
	s.release()
	s.mu.Unlock()
}

// ResetDecline allows prompting again after a decline
func (s *Secret) ResetDecline() {
	s.mu.Lock()
	s.declined = false
	s.mu.Unlock()
}

// Revoke discards the password
func (s *Secret) Revoke() {
	s.mu.Lock()
	had := s.password != ""
	s.password = ""
	s.mu.Unlock()
	if had && s.onRevoke != nil {
		s.onRevoke()
	}
}

// Pending reports whether a prompt is waiting for an answer
func (s *Secret) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready != nil
}

// HasPassword reports whether a password is currently held
func (s *Secret) HasPassword() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.password != ""
}

// leave drops a cancelled waiter; the last one withdraws the prompt
func (s *Secret) leave(ready chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready != ready {
		return
	}
	s.waiters--
	if s.waiters == 0 {
		s.ready = nil
	}
}

// release wakes every waiter; s.mu must be held
func (s *Secret) release() {
	if s.ready != nil {
		close(s.ready)
		s.ready = nil
		s.waiters = 0
	}
}

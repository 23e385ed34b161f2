package gallery

import (
	"context"
	"errors"
	"sync"

	"github.com/damacus/iron-gallery/internal/events"
	"github.com/damacus/iron-gallery/internal/imageset"
	"github.com/damacus/iron-gallery/internal/logging"
	"github.com/damacus/iron-gallery/internal/services"
)

// ErrNotConfigured is returned before any usable credentials were activated
var ErrNotConfigured = errors.New("gallery is not configured")

// BackendFactory builds a listing backend for a credential set
type BackendFactory func(creds services.Credentials) (services.ListingBackend, error)

// SessionOptions are shared by every navigator the session creates
type SessionOptions struct {
	NewBackend BackendFactory
	Cache      ByteCache
	Events     *events.Broadcaster
	Sorter     *imageset.Sorter
	PageSize   int
	Hydration  HydratorOptions
}

// Session owns the single active credential set and its navigator
type Session struct {
	opts  SessionOptions
	blobs *BlobStore

	mu    sync.RWMutex
	creds services.Credentials
	nav   *Navigator
}

func NewSession(opts SessionOptions) *Session {
	return &Session{opts: opts, blobs: NewBlobStore()}
}

// Activate switches to creds without contacting the backend
func (s *Session) Activate(creds services.Credentials) error {
	backend, err := s.opts.NewBackend(creds)
	if err != nil {
		return err
	}
	s.swap(creds, backend)
	return nil
}

// Configure validates creds against the backend, runs commit, then switches
// to them. A failed commit leaves the active credentials untouched.
func (s *Session) Configure(ctx context.Context, creds services.Credentials, commit func(services.Credentials) error) error {
	backend, err := s.opts.NewBackend(creds)
	if err != nil {
		return err
	}
	if err := backend.ValidateCredentials(ctx); err != nil {
		return err
	}
	if commit != nil {
		if err := commit(creds); err != nil {
			return err
		}
	}
	s.swap(creds, backend)
	return nil
}

func (s *Session) swap(creds services.Credentials, backend services.ListingBackend) {
	nav := NewNavigator(NavigatorOptions{
		Backend:   backend,
		Cache:     s.opts.Cache,
		Blobs:     s.blobs,
		Events:    s.opts.Events,
		Sorter:    s.opts.Sorter,
		PageSize:  s.opts.PageSize,
		Hydration: s.opts.Hydration,
	})

	s.mu.Lock()
	old := s.nav
	s.nav = nav
	s.creds = creds
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	logging.Info("gallery session activated", logging.String("mode", string(backend.Mode())))
}

// Navigator returns the active navigator
func (s *Session) Navigator() (*Navigator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.nav == nil {
		return nil, ErrNotConfigured
	}
	return s.nav, nil
}

// Ready reports whether a backend is active
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nav != nil
}

// Credentials returns the active credentials
func (s *Session) Credentials() services.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Blobs returns the store serving hydrated bytes
func (s *Session) Blobs() *BlobStore {
	return s.blobs
}

// Close stops the active navigator
func (s *Session) Close() {
	s.mu.Lock()
	nav := s.nav
	s.nav = nil
	s.mu.Unlock()
	if nav != nil {
		nav.Close()
	}
}

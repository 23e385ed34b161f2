package gallery

import (
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// BlobPrefix is the URL prefix under which blobs are served
const BlobPrefix = "/blob/"

// Blob is an in-memory image served under a local URL
type Blob struct {
	Data        []byte
	ContentType string
}

// BlobStore plays the role of browser object URLs for downloaded bytes
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]Blob)}
}

// Put stores data and returns its URL
func (s *BlobStore) Put(data []byte, contentType string) string {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.blobs[id] = Blob{Data: data, ContentType: contentType}
	s.mu.Unlock()
	return BlobPrefix + id
}

// Get returns the blob for an id or URL
func (s *BlobStore) Get(id string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[strings.TrimPrefix(id, BlobPrefix)]
	return b, ok
}

// Revoke frees one blob by id or URL
func (s *BlobStore) Revoke(id string) {
	s.mu.Lock()
	delete(s.blobs, strings.TrimPrefix(id, BlobPrefix))
	s.mu.Unlock()
}

// RevokeAll frees every blob
func (s *BlobStore) RevokeAll() {
	s.mu.Lock()
	s.blobs = make(map[string]Blob)
	s.mu.Unlock()
}

// Len returns the number of live blobs
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

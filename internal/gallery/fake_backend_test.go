package gallery

import (
	"context"
	"fmt"
	"sync"

	"github.com/damacus/iron-gallery/internal/models"
	"github.com/damacus/iron-gallery/internal/services"
)

// fakeBackend serves canned listings keyed by folder id (native) or path (s3)
type fakeBackend struct {
	mu       sync.Mutex
	mode     models.ConnectionMode
	byID     map[int64]*models.ListResult
	byPath   map[string]*models.ListResult
	payloads map[string][]byte
	openErr  map[string]error
	validErr error

	onList func(ref services.FolderRef)
	onOpen func(code string)

	listCalls []services.FolderRef
	openCalls []string
	deleted   []string
}

func newFakeBackend(mode models.ConnectionMode) *fakeBackend {
	return &fakeBackend{
		mode:     mode,
		byID:     map[int64]*models.ListResult{},
		byPath:   map[string]*models.ListResult{},
		payloads: map[string][]byte{},
		openErr:  map[string]error{},
	}
}

func (f *fakeBackend) Mode() models.ConnectionMode {
	return f.mode
}

func (f *fakeBackend) ListFolder(ctx context.Context, ref services.FolderRef, order models.SortOrder) (*models.ListResult, error) {
	if f.onList != nil {
		f.onList(ref)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, ref)

	var result *models.ListResult
	if f.mode == models.ModeS3 {
		result = f.byPath[ref.Path]
	} else {
		result = f.byID[ref.ID]
	}
	if result == nil {
		return nil, fmt.Errorf("no listing for %+v", ref)
	}
	cp := *result
	return &cp, nil
}

func (f *fakeBackend) Open(ctx context.Context, code string, wantBytes bool) (*services.Source, error) {
	if f.onOpen != nil {
		f.onOpen(code)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls = append(f.openCalls, code)

	if err := f.openErr[code]; err != nil {
		return nil, err
	}
	if !wantBytes {
		return &services.Source{URL: "https://cdn.example/" + code}, nil
	}
	data, ok := f.payloads[code]
	if !ok {
		return nil, fmt.Errorf("no payload for %s", code)
	}
	return &services.Source{Bytes: data, Size: int64(len(data))}, nil
}

func (f *fakeBackend) DeleteFile(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, code)
	return nil
}

func (f *fakeBackend) ValidateCredentials(ctx context.Context) error {
	return f.validErr
}

func (f *fakeBackend) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls)
}

func (f *fakeBackend) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.openCalls)
}

// mapCache is an in-memory ByteCache
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}}
}

func (c *mapCache) Get(key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *mapCache) Set(key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	c.sets++
	return nil
}

func images(names ...string) []models.ImageEntry {
	out := make([]models.ImageEntry, 0, len(names))
	for i, name := range names {
		out = append(out, models.ImageEntry{
			Code:      fmt.Sprintf("c%02d", i),
			Name:      name,
			Title:     name,
			Encrypted: len(name) > 4 && name[len(name)-4:] == ".enc",
		})
	}
	return out
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/damacus/iron-gallery/internal/gallery"
	"github.com/damacus/iron-gallery/internal/models"
	"github.com/damacus/iron-gallery/internal/renderer"
	"github.com/damacus/iron-gallery/internal/services"
	"github.com/damacus/iron-gallery/internal/utils"
	"github.com/labstack/echo/v4"
)

// stubBackend serves one album under the root folder
type stubBackend struct {
	mu       sync.Mutex
	deleted  []string
	validErr error
}

func (b *stubBackend) Mode() models.ConnectionMode {
	return models.ModeAPI
}

func (b *stubBackend) ListFolder(_ context.Context, ref services.FolderRef, _ models.SortOrder) (*models.ListResult, error) {
	switch ref.ID {
	case 0:
		return &models.ListResult{
			Folders: []models.FolderEntry{{ID: 7, Name: "Holiday"}},
			Files:   []models.ImageEntry{},
		}, nil
	case 7:
		return &models.ListResult{
			FolderID: 7,
			Folders:  []models.FolderEntry{},
			Files: []models.ImageEntry{
				{Code: "abc", Name: "beach.jpg", Title: "beach.jpg", Size: 2048},
				{Code: "def", Name: "sunset.png", Title: "sunset.png"},
				{Code: "txt", Name: "notes.txt"},
			},
		}, nil
	}
	return nil, errors.New("unexpected folder")
}

func (b *stubBackend) Open(_ context.Context, code string, _ bool) (*services.Source, error) {
	return &services.Source{URL: "https://cdn.example/" + code}, nil
}

func (b *stubBackend) DeleteFile(_ context.Context, code string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, code)
	return nil
}

func (b *stubBackend) ValidateCredentials(_ context.Context) error {
	return b.validErr
}

func newTestNavigator(blobs *gallery.BlobStore) (*gallery.Navigator, *stubBackend) {
	backend := &stubBackend{}
	nav := gallery.NewNavigator(gallery.NavigatorOptions{
		Backend: backend,
		Blobs:   blobs,
	})
	return nav, backend
}

type blobHolder struct {
	store *gallery.BlobStore
}

func (h blobHolder) Blobs() *gallery.BlobStore {
	return h.store
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Renderer = renderer.New()
	return e
}

// newRequestContext builds a context carrying nav the way the config guard does
func newRequestContext(e *echo.Echo, method, target string, form url.Values, nav *gallery.Navigator) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(utils.ContextKeyCSRF, "token-123")
	if nav != nil {
		c.Set(utils.ContextKeyNavigator, nav)
	}
	return c, rec
}

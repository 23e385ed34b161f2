package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/damacus/iron-gallery/internal/gallery"
	"github.com/damacus/iron-gallery/internal/utils"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type staticSource struct {
	nav *gallery.Navigator
}

func (s staticSource) Navigator() (*gallery.Navigator, error) {
	if s.nav == nil {
		return nil, gallery.ErrNotConfigured
	}
	return s.nav, nil
}

func runGuard(source NavigatorSource, req *http.Request) (*httptest.ResponseRecorder, bool, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handlerCalled := false
	err := ConfigGuard(source)(func(c echo.Context) error {
		handlerCalled = true
		return c.String(http.StatusOK, "OK")
	})(c)
	return rec, handlerCalled, err
}

func TestConfigGuard_SkipsPublicRoutes(t *testing.T) {
	for _, path := range []string{"/config", "/health", "/metrics", "/api/relay", "/assets/error-thumbnail.svg"} {
		t.Run(path, func(t *testing.T) {
			_, called, err := runGuard(staticSource{}, httptest.NewRequest(http.MethodGet, path, nil))
			assert.NoError(t, err)
			assert.True(t, called, "handler should be called for public path %s", path)
		})
	}
}

func TestConfigGuard_RedirectsWhenUnconfigured(t *testing.T) {
	rec, called, err := runGuard(staticSource{}, httptest.NewRequest(http.MethodGet, "/gallery/Trip", nil))

	assert.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/config", rec.Header().Get("Location"))
}

func TestConfigGuard_HTMXRedirect(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/gallery", nil)
	req.Header.Set("HX-Request", "true")
	rec, called, err := runGuard(staticSource{}, req)

	assert.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, "/config", rec.Header().Get("HX-Redirect"))
}

func TestConfigGuard_APIReturnsConflict(t *testing.T) {
	_, called, err := runGuard(staticSource{}, httptest.NewRequest(http.MethodPost, "/api/sort", nil))

	assert.False(t, called)
	httpErr, ok := err.(*echo.HTTPError)
	if assert.True(t, ok) {
		assert.Equal(t, http.StatusConflict, httpErr.Code)
	}
}

func TestConfigGuard_StoresNavigator(t *testing.T) {
	nav := gallery.NewNavigator(gallery.NavigatorOptions{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/gallery", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	var got any
	err := ConfigGuard(staticSource{nav: nav})(func(c echo.Context) error {
		got = c.Get(utils.ContextKeyNavigator)
		return nil
	})(c)

	assert.NoError(t, err)
	assert.Same(t, nav, got)
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/damacus/iron-gallery/internal/gallery"
	"github.com/damacus/iron-gallery/internal/services"
	"github.com/damacus/iron-gallery/internal/utils"
	"github.com/labstack/echo/v4"
)

// GetNavigator retrieves the active navigator from the context
func GetNavigator(c echo.Context) (*gallery.Navigator, error) {
	val := c.Get(utils.ContextKeyNavigator)
	if val == nil {
		return nil, echo.NewHTTPError(http.StatusConflict, "Gallery is not configured")
	}
	nav, ok := val.(*gallery.Navigator)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusConflict, "Gallery is not configured")
	}
	return nav, nil
}

// HTMXRedirect sets the HX-Redirect header and returns a 200 OK response.
// This is used for HTMX requests that should trigger a client-side redirect.
func HTMXRedirect(c echo.Context, url string) error {
	c.Response().Header().Set("HX-Redirect", url)
	return c.NoContent(http.StatusOK)
}

// CSRFToken returns the token issued by the CSRF middleware
func CSRFToken(c echo.Context) string {
	token, _ := c.Get(utils.ContextKeyCSRF).(string)
	return token
}

// StatusFor maps a gallery error onto an HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrPathNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNetwork), errors.Is(err, services.ErrProtocol):
		return http.StatusBadGateway
	case errors.Is(err, gallery.ErrNoView), errors.Is(err, gallery.ErrSuperseded), errors.Is(err, gallery.ErrNotConfigured):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// APIError converts err into the JSON error returned by /api routes
func APIError(err error) error {
	return echo.NewHTTPError(StatusFor(err), services.Describe(err)).SetInternal(err)
}

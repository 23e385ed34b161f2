package middleware

import (
	"net/http"
	"strings"

	"github.com/damacus/iron-gallery/internal/gallery"
	"github.com/damacus/iron-gallery/internal/utils"
	"github.com/labstack/echo/v4"
)

// NavigatorSource yields the active navigator once credentials are configured
type NavigatorSource interface {
	Navigator() (*gallery.Navigator, error)
}

func isPublicPath(path string) bool {
	switch path {
	case "/config", "/health", "/metrics", "/api/relay":
		return true
	}
	return strings.HasPrefix(path, "/assets/")
}

// ConfigGuard sends every request to the config page until the session has
// usable credentials, and exposes the navigator to handlers
func ConfigGuard(source NavigatorSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if isPublicPath(path) {
				return next(c)
			}

			nav, err := source.Navigator()
			if err != nil {
				if strings.HasPrefix(path, "/api/") {
					return echo.NewHTTPError(http.StatusConflict, "Gallery is not configured")
				}
				if c.Request().Header.Get("HX-Request") == "true" {
					c.Response().Header().Set("HX-Redirect", "/config")
					return c.NoContent(http.StatusOK)
				}
				return c.Redirect(http.StatusSeeOther, "/config")
			}

			c.Set(utils.ContextKeyNavigator, nav)
			return next(c)
		}
	}
}

package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// HeaderPolicy describes what gallery pages may load
type HeaderPolicy struct {
	// ScriptSources are extra origins for script-src
	ScriptSources []string
	// ImageSources are extra sources for img-src. Hydrated bytes are served as
	// same-origin blobs; direct links and thumbnails come from the file host.
	ImageSources []string
	HSTSMaxAge   time.Duration
	// NoStorePaths are never cached by the browser
	NoStorePaths []string
}

// DefaultHeaderPolicy allows htmx from unpkg and images from any https host
func DefaultHeaderPolicy() HeaderPolicy {
	return HeaderPolicy{
		ScriptSources: []string{"https://unpkg.com"},
		ImageSources:  []string{"data:", "blob:", "https:"},
		HSTSMaxAge:    365 * 24 * time.Hour,
		NoStorePaths:  []string{"/config"},
	}
}

func (p HeaderPolicy) contentSecurityPolicy() string {
	directive := func(name string, sources ...string) string {
		return name + " " + strings.Join(append([]string{"'self'"}, sources...), " ")
	}
	return strings.Join([]string{
		directive("default-src"),
		directive("script-src", append([]string{"'unsafe-inline'"}, p.ScriptSources...)...),
		directive("style-src", "'unsafe-inline'"),
		directive("img-src", p.ImageSources...),
		directive("connect-src"),
		"frame-ancestors 'none'",
		directive("base-uri"),
		directive("form-action"),
	}, "; ")
}

// SecurityHeaders applies policy to every response
func SecurityHeaders(policy HeaderPolicy) echo.MiddlewareFunc {
	csp := policy.contentSecurityPolicy()
	hsts := fmt.Sprintf("max-age=%d; includeSubDomains", int64(policy.HSTSMaxAge.Seconds()))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			headers := c.Response().Header()
			headers.Set("X-Frame-Options", "DENY")
			headers.Set("X-Content-Type-Options", "nosniff")
			// Direct links carry short-lived tokens
			headers.Set("Referrer-Policy", "no-referrer")
			headers.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
			headers.Set("Content-Security-Policy", csp)

			for _, p := range policy.NoStorePaths {
				if c.Request().URL.Path == p {
					headers.Set("Cache-Control", "no-store")
					break
				}
			}
			if policy.HSTSMaxAge > 0 && isSecureRequest(c) {
				headers.Set("Strict-Transport-Security", hsts)
			}

			return next(c)
		}
	}
}

func isSecureRequest(c echo.Context) bool {
	req := c.Request()
	if req.TLS != nil {
		return true
	}

	return strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https")
}

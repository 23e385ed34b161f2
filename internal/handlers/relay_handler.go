package handlers

import (
	"net/http"
	"regexp"
	"time"

	"github.com/damacus/iron-gallery/internal/logging"
	"github.com/damacus/iron-gallery/internal/metrics"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/labstack/echo/v4"
)

// RelayOptions configures the download relay
type RelayOptions struct {
	AllowPattern string
	AllowOrigin  string
	Timeout      time.Duration
	// HTTPClient replaces the retrying client, mainly for tests
	HTTPClient *http.Client
}

// RelayHandler streams whitelisted upstream files to the browser
type RelayHandler struct {
	client *http.Client
	allow  *regexp.Regexp
	origin string
}

func NewRelayHandler(opts RelayOptions) (*RelayHandler, error) {
	allow, err := regexp.Compile(opts.AllowPattern)
	if err != nil {
		return nil, err
	}
	client := opts.HTTPClient
	if client == nil {
		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = 2
		retryClient.Logger = logging.RetryLogger{}
		retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
		if opts.Timeout > 0 {
			retryClient.HTTPClient.Timeout = opts.Timeout
		}
		client = retryClient.StandardClient()
	}
	return &RelayHandler{client: client, allow: allow, origin: opts.AllowOrigin}, nil
}

// Relay fetches ?url= and copies the body through unchanged
func (h *RelayHandler) Relay(c echo.Context) error {
	target := c.QueryParam("url")
	if target == "" || !h.allow.MatchString(target) {
		metrics.RecordRelay(http.StatusBadRequest)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing or invalid file URL"})
	}

	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, target, nil)
	if err != nil {
		metrics.RecordRelay(http.StatusBadRequest)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing or invalid file URL"})
	}
	resp, err := h.client.Do(req)
	if err != nil {
		logging.Warn("relay fetch failed", logging.String("url", target), logging.Err(err))
		metrics.RecordRelay(http.StatusInternalServerError)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch file"})
	}
	defer func() { _ = resp.Body.Close() }()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if h.origin != "" {
		c.Response().Header().Set("Access-Control-Allow-Origin", h.origin)
	}
	metrics.RecordRelay(resp.StatusCode)
	return c.Stream(resp.StatusCode, contentType, resp.Body)
}

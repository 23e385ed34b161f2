package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/damacus/iron-gallery/internal/encryption"
	"github.com/damacus/iron-gallery/internal/imageset"
	"github.com/damacus/iron-gallery/internal/logging"
	"github.com/damacus/iron-gallery/internal/metrics"
	"github.com/damacus/iron-gallery/internal/models"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	apiLabel        = "api"
	maxEnvelopeSize = 16 << 20
	uploadedLayout  = "2006-01-02 15:04:05"
)

// NativeOptions configures the key-based API backend
type NativeOptions struct {
	BaseURL      string
	TimeZone     string
	RatePerSec   float64
	Burst        int
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	// HTTPClient replaces the pooled transport client, mainly for tests
	HTTPClient *http.Client
}

// DirectLink is a short-lived download URL
type DirectLink struct {
	URL  string
	Size int64
}

type apiEnvelope struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Result json.RawMessage `json:"result"`
}

type apiFile struct {
	FileCode  string  `json:"file_code"`
	Name      string  `json:"name"`
	Thumbnail string  `json:"thumbnail"`
	Uploaded  string  `json:"uploaded"`
	Size      flexInt `json:"size"`
}

type apiFolder struct {
	FldID flexInt `json:"fld_id"`
	Name  string  `json:"name"`
}

type apiFolderList struct {
	Files   *[]apiFile   `json:"files"`
	Folders *[]apiFolder `json:"folders"`
}

type apiDirectLink struct {
	URL  string  `json:"url"`
	Size flexInt `json:"size"`
}

// flexInt accepts numbers and numeric strings; anything else decodes as 0
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// NativeBackend talks to the key-based file hosting API
type NativeBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
	zone    *time.Location
	limiter *rate.Limiter
	sorter  *imageset.Sorter
}

// NewNativeBackend creates the native API backend
func NewNativeBackend(apiKey string, opts NativeOptions, sorter *imageset.Sorter) (*NativeBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if sorter == nil {
		sorter = imageset.Default()
	}

	zone := time.UTC
	if opts.TimeZone != "" {
		loc, err := time.LoadLocation(opts.TimeZone)
		if err != nil {
			logging.Warn("unknown API time zone, using UTC", logging.String("zone", opts.TimeZone), logging.Err(err))
		} else {
			zone = loc
		}
	}

	retryClient := retryablehttp.NewClient()
	if opts.HTTPClient != nil {
		retryClient.HTTPClient = opts.HTTPClient
	} else if opts.Timeout > 0 {
		retryClient.HTTPClient.Timeout = opts.Timeout
	}
	retryClient.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}
	retryClient.Logger = logging.RetryLogger{}
	// Hand the last response back so its body can be reported
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), max(opts.Burst, 1))
	}

	return &NativeBackend{
		client:  retryClient.StandardClient(),
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:  apiKey,
		zone:    zone,
		limiter: limiter,
		sorter:  sorter,
	}, nil
}

func (b *NativeBackend) Mode() models.ConnectionMode {
	return models.ModeAPI
}

// call sends an API request and decodes the JSON envelope
func (b *NativeBackend) call(ctx context.Context, op string, req *http.Request) (*apiEnvelope, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w", op, err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, networkError(op, 0, "", redactKey(err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeSize))
	if err != nil {
		return nil, networkError(op, resp.StatusCode, "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, networkError(op, resp.StatusCode, strings.TrimSpace(string(body)), nil)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &BackendError{Kind: ErrProtocol, Op: op, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return &env, nil
}

// keyRedactedError hides the API key carried in transport error messages
type keyRedactedError struct {
	msg string
	err error
}

func (e *keyRedactedError) Error() string { return e.msg }
func (e *keyRedactedError) Unwrap() error { return e.err }

func redactKey(err error) error {
	return &keyRedactedError{msg: logging.RedactQuery(err.Error()), err: err}
}

func (b *NativeBackend) get(ctx context.Context, op, path string, query url.Values) (*apiEnvelope, error) {
	query.Set("key", b.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return b.call(ctx, op, req)
}

func (b *NativeBackend) post(ctx context.Context, op, path string, form url.Values) (*apiEnvelope, error) {
	form.Set("key", b.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.call(ctx, op, req)
}

// ListFolder lists one folder by id. Folders are sorted by name, files per order.
func (b *NativeBackend) ListFolder(ctx context.Context, ref FolderRef, order models.SortOrder) (result *models.ListResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordListing(apiLabel, time.Since(start), err == nil) }()

	env, err := b.get(ctx, "folder/list", "/folder/list", url.Values{
		"fld_id": {strconv.FormatInt(ref.ID, 10)},
	})
	if err != nil {
		return nil, err
	}

	var list apiFolderList
	if len(env.Result) == 0 || json.Unmarshal(env.Result, &list) != nil || list.Files == nil || list.Folders == nil {
		return nil, protocolError("folder/list", env.Status, env.Msg)
	}

	files := make([]models.ImageEntry, 0, len(*list.Files))
	for _, f := range *list.Files {
		files = append(files, b.toImageEntry(f))
	}
	folders := make([]models.FolderEntry, 0, len(*list.Folders))
	for _, f := range *list.Folders {
		folders = append(folders, models.FolderEntry{ID: int64(f.FldID), Name: f.Name})
	}

	return &models.ListResult{
		FolderID: ref.ID,
		Folders:  b.sorter.SortedFolders(folders),
		Files:    b.sorter.Sorted(files, order),
	}, nil
}

func (b *NativeBackend) toImageEntry(f apiFile) models.ImageEntry {
	entry := models.ImageEntry{
		Code:         f.FileCode,
		Name:         f.Name,
		ThumbnailURL: f.Thumbnail,
		Encrypted:    encryption.HasSuffix(f.Name),
		Size:         int64(f.Size),
	}
	if f.Uploaded != "" {
		if t, err := time.ParseInLocation(uploadedLayout, f.Uploaded, b.zone); err == nil {
			entry.UploadedAt = t.Local()
		}
	}
	entry.Title = imageset.Title(entry.Name, entry.UploadedAt)
	return entry
}

// GetDirectLink resolves a short-lived download URL for a file
func (b *NativeBackend) GetDirectLink(ctx context.Context, code string) (link *DirectLink, err error) {
	defer func() { metrics.RecordBackendCall(apiLabel, "direct_link", err == nil) }()

	env, err := b.post(ctx, "file/direct_link", "/file/direct_link", url.Values{"file_code": {code}})
	if err != nil {
		return nil, err
	}
	switch env.Status {
	case http.StatusOK:
	case http.StatusBadRequest:
		return nil, authError("file/direct_link", env.Status, env.Msg)
	default:
		return nil, protocolError("file/direct_link", env.Status, env.Msg)
	}

	var result apiDirectLink
	if err := json.Unmarshal(env.Result, &result); err != nil || result.URL == "" {
		return nil, protocolError("file/direct_link", env.Status, "missing direct link")
	}
	return &DirectLink{URL: result.URL, Size: int64(result.Size)}, nil
}

// Open resolves the direct link and optionally downloads it
func (b *NativeBackend) Open(ctx context.Context, code string, wantBytes bool) (*Source, error) {
	link, err := b.GetDirectLink(ctx, code)
	if err != nil {
		return nil, err
	}
	src := &Source{URL: link.URL, Size: link.Size}
	if !wantBytes {
		return src, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src.Bytes, src.ContentType, err = b.download(ctx, link.URL)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func (b *NativeBackend) download(ctx context.Context, link string) (data []byte, contentType string, err error) {
	defer func() { metrics.RecordBackendCall(apiLabel, "download", err == nil) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, "", networkError("download", 0, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", networkError("download", resp.StatusCode, strings.TrimSpace(string(msg)), nil)
	}
	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", networkError("download", resp.StatusCode, "", err)
	}
	metrics.RecordDownload(len(data))
	return data, resp.Header.Get("Content-Type"), nil
}

// DeleteFile removes a file by code
func (b *NativeBackend) DeleteFile(ctx context.Context, code string) (err error) {
	defer func() { metrics.RecordBackendCall(apiLabel, "delete", err == nil) }()

	env, err := b.get(ctx, "file/remove", "/file/remove", url.Values{
		"file_code": {code},
		"remove":    {"1"},
	})
	if err != nil {
		return err
	}
	if env.Status != http.StatusOK {
		return protocolError("file/remove", env.Status, env.Msg)
	}
	return nil
}

// ValidateCredentials checks the API key against the account endpoint
func (b *NativeBackend) ValidateCredentials(ctx context.Context) (err error) {
	defer func() { metrics.RecordBackendCall(apiLabel, "validate", err == nil) }()

	env, err := b.post(ctx, "account/info", "/account/info", url.Values{})
	if err != nil {
		return err
	}
	switch env.Status {
	case http.StatusOK:
		return nil
	case http.StatusBadRequest:
		return authError("account/info", env.Status, env.Msg)
	}
	return protocolError("account/info", env.Status, env.Msg)
}

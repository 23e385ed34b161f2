package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/damacus/iron-gallery/internal/imageset"
	"github.com/damacus/iron-gallery/internal/models"
)

// FolderRef addresses a folder: native listings use ID, S3 listings use Path
type FolderRef struct {
	ID   int64
	Path string
}

// Source is the viewable content for one file
type Source struct {
	URL         string
	Bytes       []byte
	Size        int64
	ContentType string
}

// ListingBackend is the capability every remote backend provides
type ListingBackend interface {
	Mode() models.ConnectionMode
	ListFolder(ctx context.Context, ref FolderRef, order models.SortOrder) (*models.ListResult, error)
	// Open resolves a file. With wantBytes the content is downloaded;
	// otherwise backends that can hand out a link return only its URL.
	Open(ctx context.Context, code string, wantBytes bool) (*Source, error)
	DeleteFile(ctx context.Context, code string) error
	ValidateCredentials(ctx context.Context) error
}

// BackendOptions configures both backend variants
type BackendOptions struct {
	Native NativeOptions
	S3     S3Options
	Sorter *imageset.Sorter
}

// NewBackend builds the backend selected by the credentials
func NewBackend(creds Credentials, opts BackendOptions) (ListingBackend, error) {
	mode, err := ResolveMode(creds)
	if err != nil {
		return nil, err
	}
	switch mode {
	case models.ModeAPI:
		return NewNativeBackend(creds.APIKey, opts.Native, opts.Sorter)
	case models.ModeS3:
		return NewS3Backend(creds, opts.S3, opts.Sorter)
	}
	return nil, fmt.Errorf("unsupported connection mode %q", mode)
}

// SplitPath returns the non-empty segments of a slash-delimited path
func SplitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

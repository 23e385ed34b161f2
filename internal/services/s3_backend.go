package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/damacus/iron-gallery/internal/encryption"
	"github.com/damacus/iron-gallery/internal/imageset"
	"github.com/damacus/iron-gallery/internal/metrics"
	"github.com/damacus/iron-gallery/internal/models"
	"github.com/minio/minio-go/v7"
)

const s3Label = "s3"

// S3Options configures the S3-compatible backend
type S3Options struct {
	Endpoint string
	Region   string
	Insecure bool
	// Factory overrides client construction, mainly for tests
	Factory MinioClientFactory
}

// S3Backend lists buckets and prefixes of an S3-compatible store
type S3Backend struct {
	client MinioClient
	sorter *imageset.Sorter
}

// NewS3Backend creates the S3 backend
func NewS3Backend(creds Credentials, opts S3Options, sorter *imageset.Sorter) (*S3Backend, error) {
	if !creds.HasS3() {
		return nil, errors.New("s3 id and secret are required")
	}
	if sorter == nil {
		sorter = imageset.Default()
	}
	factory := opts.Factory
	if factory == nil {
		factory = &RealMinioFactory{Endpoint: opts.Endpoint, Region: opts.Region, Insecure: opts.Insecure}
	}
	client, err := factory.NewClient(creds)
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Backend{client: client, sorter: sorter}, nil
}

func (b *S3Backend) Mode() models.ConnectionMode {
	return models.ModeS3
}

// ListFolder lists buckets at the root, otherwise one delimiter-scoped prefix
func (b *S3Backend) ListFolder(ctx context.Context, ref FolderRef, order models.SortOrder) (result *models.ListResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordListing(s3Label, time.Since(start), err == nil) }()

	segments := SplitPath(ref.Path)
	if len(segments) == 0 {
		return b.listBuckets(ctx)
	}

	bucket := segments[0]
	prefix := ""
	if len(segments) > 1 {
		prefix = strings.Join(segments[1:], "/") + "/"
	}

	objects, err := b.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	})
	if err != nil {
		return nil, s3Error("ListObjects", err)
	}

	folders := []models.FolderEntry{}
	files := []models.ImageEntry{}
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			// The prefix itself shows up when a folder marker object exists
			if obj.Key == prefix {
				continue
			}
			name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), "/")
			folders = append(folders, models.FolderEntry{
				ID:      int64(len(folders)),
				Name:    name,
				NavPath: models.NavPrefix + "/" + bucket + "/" + strings.TrimSuffix(obj.Key, "/"),
			})
			continue
		}

		name := path.Base(obj.Key)
		var uploaded time.Time
		if !obj.LastModified.IsZero() {
			uploaded = obj.LastModified.Local()
		}
		files = append(files, models.ImageEntry{
			Code:       bucket + "/" + obj.Key,
			Name:       name,
			UploadedAt: uploaded,
			Title:      imageset.Title(name, uploaded),
			Encrypted:  encryption.HasSuffix(name),
			Size:       obj.Size,
		})
	}

	return &models.ListResult{
		Prefix:  prefix,
		Folders: folders,
		Files:   b.sorter.Sorted(files, order),
	}, nil
}

func (b *S3Backend) listBuckets(ctx context.Context) (*models.ListResult, error) {
	buckets, err := b.client.ListBuckets(ctx)
	if err != nil {
		return nil, s3Error("ListBuckets", err)
	}
	folders := make([]models.FolderEntry, 0, len(buckets))
	for i, bucket := range buckets {
		folders = append(folders, models.FolderEntry{
			ID:      int64(i),
			Name:    bucket.Name,
			NavPath: models.NavPrefix + "/" + bucket.Name,
		})
	}
	return &models.ListResult{Folders: folders, Files: []models.ImageEntry{}}, nil
}

// splitCode turns "bucket/key" into its parts
func splitCode(code string) (string, string, error) {
	bucket, key, ok := strings.Cut(code, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", protocolError("code", 0, "invalid object code "+code)
	}
	return bucket, key, nil
}

// Open downloads the object; S3 has no separate direct-link step
func (b *S3Backend) Open(ctx context.Context, code string, _ bool) (src *Source, err error) {
	defer func() { metrics.RecordBackendCall(s3Label, "download", err == nil) }()

	bucket, key, err := splitCode(code)
	if err != nil {
		return nil, err
	}
	reader, size, err := b.client.GetObjectReader(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s3Error("GetObject", err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, s3Error("GetObject", err)
	}
	metrics.RecordDownload(len(data))
	return &Source{
		Bytes:       data,
		Size:        size,
		ContentType: mime.TypeByExtension(path.Ext(key)),
	}, nil
}

// DeleteFile removes the object behind code
func (b *S3Backend) DeleteFile(ctx context.Context, code string) (err error) {
	defer func() { metrics.RecordBackendCall(s3Label, "delete", err == nil) }()

	bucket, key, err := splitCode(code)
	if err != nil {
		return err
	}
	if err := b.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s3Error("RemoveObject", err)
	}
	return nil
}

// ValidateCredentials lists buckets, which any key pair may do
func (b *S3Backend) ValidateCredentials(ctx context.Context) (err error) {
	defer func() { metrics.RecordBackendCall(s3Label, "validate", err == nil) }()

	if _, err := b.client.ListBuckets(ctx); err != nil {
		return s3Error("ListBuckets", err)
	}
	return nil
}

var s3AuthCodes = map[string]bool{
	"AccessDenied":          true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"InvalidToken":          true,
}

// s3Error classifies a minio error, keeping the provider status and message
func s3Error(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp := minio.ToErrorResponse(err)
	msg := resp.Message
	if resp.Code != "" {
		msg = resp.Code + ": " + resp.Message
	}
	switch {
	case s3AuthCodes[resp.Code]:
		return &BackendError{Kind: ErrAuth, Backend: s3Label, Op: op, Status: resp.StatusCode, Message: msg, Err: err}
	case resp.StatusCode != 0:
		return &BackendError{Kind: ErrProtocol, Backend: s3Label, Op: op, Status: resp.StatusCode, Message: msg, Err: err}
	}
	return networkError(op, 0, "", err)
}

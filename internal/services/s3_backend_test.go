package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/damacus/iron-gallery/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMinioClient struct {
	mock.Mock
}

func (m *mockMinioClient) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]minio.BucketInfo), args.Error(1)
}

func (m *mockMinioClient) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) ([]minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, opts)
	return args.Get(0).([]minio.ObjectInfo), args.Error(1)
}

func (m *mockMinioClient) GetObjectReader(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, int64, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	if rc := args.Get(0); rc != nil {
		return rc.(io.ReadCloser), args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

func (m *mockMinioClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Error(0)
}

type staticFactory struct {
	client MinioClient
}

func (f staticFactory) NewClient(Credentials) (MinioClient, error) {
	return f.client, nil
}

func newTestS3Backend(t *testing.T) (*S3Backend, *mockMinioClient) {
	t.Helper()
	client := new(mockMinioClient)
	b, err := NewS3Backend(Credentials{AccessKey: "id", SecretKey: "secret"}, S3Options{Factory: staticFactory{client}}, nil)
	require.NoError(t, err)
	return b, client
}

func TestNewS3Backend_RequiresKeys(t *testing.T) {
	_, err := NewS3Backend(Credentials{AccessKey: "id"}, S3Options{}, nil)
	assert.Error(t, err)
}

func TestS3Backend_ListRootReturnsBuckets(t *testing.T) {
	b, client := newTestS3Backend(t)
	client.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo{{Name: "photos"}, {Name: "scans"}}, nil)

	result, err := b.ListFolder(context.Background(), FolderRef{Path: "/"}, models.SortByName)
	require.NoError(t, err)

	require.Len(t, result.Folders, 2)
	assert.Equal(t, models.FolderEntry{ID: 0, Name: "photos", NavPath: "/gallery/photos"}, result.Folders[0])
	assert.Equal(t, models.FolderEntry{ID: 1, Name: "scans", NavPath: "/gallery/scans"}, result.Folders[1])
	assert.Empty(t, result.Files)
}

func TestS3Backend_ListPrefix(t *testing.T) {
	b, client := newTestS3Backend(t)
	modified := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	client.On("ListObjects", mock.Anything, "photos", minio.ListObjectsOptions{Prefix: "trip/", Recursive: false}).
		Return([]minio.ObjectInfo{
			{Key: "trip/"},
			{Key: "trip/day1/"},
			{Key: "trip/b.jpg.enc", LastModified: modified, Size: 40},
			{Key: "trip/a.jpg", LastModified: modified, Size: 20},
		}, nil)

	result, err := b.ListFolder(context.Background(), FolderRef{Path: "/photos/trip"}, models.SortByName)
	require.NoError(t, err)

	assert.Equal(t, "trip/", result.Prefix)
	require.Len(t, result.Folders, 1)
	assert.Equal(t, "day1", result.Folders[0].Name)
	assert.Equal(t, "/gallery/photos/trip/day1", result.Folders[0].NavPath)

	require.Len(t, result.Files, 2)
	assert.Equal(t, "photos/trip/a.jpg", result.Files[0].Code)
	assert.False(t, result.Files[0].Encrypted)
	assert.Equal(t, "b.jpg.enc", result.Files[1].Name)
	assert.True(t, result.Files[1].Encrypted)
	assert.Equal(t, int64(40), result.Files[1].Size)
	assert.True(t, result.Files[1].UploadedAt.Equal(modified))
}

func TestS3Backend_ListBucketRootUsesEmptyPrefix(t *testing.T) {
	b, client := newTestS3Backend(t)
	client.On("ListObjects", mock.Anything, "photos", minio.ListObjectsOptions{Prefix: "", Recursive: false}).
		Return([]minio.ObjectInfo{}, nil)

	result, err := b.ListFolder(context.Background(), FolderRef{Path: "/photos"}, models.SortByName)
	require.NoError(t, err)
	assert.Empty(t, result.Folders)
	assert.Empty(t, result.Files)
	client.AssertExpectations(t)
}

func TestS3Backend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden, Message: "denied"}, ErrAuth},
		{"bad key", minio.ErrorResponse{Code: "InvalidAccessKeyId", StatusCode: http.StatusForbidden}, ErrAuth},
		{"no bucket", minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, ErrProtocol},
		{"transport", errors.New("dial tcp: refused"), ErrNetwork},
		{"cancelled", context.Canceled, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, client := newTestS3Backend(t)
			client.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo(nil), tt.err)

			err := b.ValidateCredentials(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestS3Backend_AuthMessage(t *testing.T) {
	err := s3Error("ListBuckets", minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403, Message: "denied"})
	assert.Equal(t, "Invalid S3 credentials (status: 403): AccessDenied: denied", err.Error())
}

func TestS3Backend_Open(t *testing.T) {
	b, client := newTestS3Backend(t)
	client.On("GetObjectReader", mock.Anything, "photos", "trip/a.png", minio.GetObjectOptions{}).
		Return(io.NopCloser(bytes.NewReader([]byte("png-bytes"))), int64(9), nil)

	src, err := b.Open(context.Background(), "photos/trip/a.png", false)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), src.Bytes)
	assert.Equal(t, "image/png", src.ContentType)
	assert.Equal(t, int64(9), src.Size)
	assert.Empty(t, src.URL)
}

func TestS3Backend_OpenRejectsBadCode(t *testing.T) {
	b, _ := newTestS3Backend(t)
	_, err := b.Open(context.Background(), "no-slash", true)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestS3Backend_DeleteFile(t *testing.T) {
	b, client := newTestS3Backend(t)
	client.On("RemoveObject", mock.Anything, "photos", "trip/a.jpg", minio.RemoveObjectOptions{}).Return(nil)

	require.NoError(t, b.DeleteFile(context.Background(), "photos/trip/a.jpg"))
	client.AssertExpectations(t)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/damacus/iron-gallery/internal/encryption"
	"github.com/stretchr/testify/assert"
)

func TestBackendError_MatchesSentinels(t *testing.T) {
	err := fmt.Errorf("list folder: %w", networkError("folder/list", 0, "", io.ErrUnexpectedEOF))

	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrAuth)

	var be *BackendError
	assert.True(t, errors.As(err, &be))
	assert.Equal(t, "folder/list", be.Op)
}

func TestBackendError_Messages(t *testing.T) {
	assert.Equal(t, "Invalid API key (status: 400): bad key", authError("file/direct_link", 400, "bad key").Error())
	assert.Equal(t, "Unknown API response (status: 403): nope", protocolError("file/remove", 403, "nope").Error())
	assert.Equal(t, "Network error: 502 Bad Gateway", networkError("folder/list", 502, "502 Bad Gateway", nil).Error())
	assert.Equal(t, "Network error: boom", networkError("folder/list", 0, "", errors.New("boom")).Error())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "Request cancelled", Describe(fmt.Errorf("wrap: %w", context.Canceled)))
	assert.Equal(t, "Unknown API response (status: 500): down", Describe(protocolError("x", 500, "down")))
	assert.Contains(t, Describe(PathNotFound("/Trip/Nope")), "/Trip/Nope")
	assert.Contains(t, Describe(fmt.Errorf("x: %w", encryption.ErrDecryption)), "password")
	assert.Equal(t, "Unknown error: odd", Describe(errors.New("odd")))
}

func TestPathNotFound(t *testing.T) {
	err := PathNotFound("/a/b")
	assert.ErrorIs(t, err, ErrPathNotFound)
	assert.Contains(t, err.Error(), "/a/b")
}

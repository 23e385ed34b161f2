package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/damacus/iron-gallery/internal/models"
)

// Credentials represents the account details for either backend
type Credentials struct {
	Mode      models.ConnectionMode `json:"mode,omitempty"`
	APIKey    string                `json:"apiKey,omitempty"`
	AccessKey string                `json:"s3Id,omitempty"`
	SecretKey string                `json:"s3Secret,omitempty"`
}

// HasAPIKey reports whether the native backend can be used
func (c Credentials) HasAPIKey() bool {
	return c.APIKey != ""
}

// HasS3 reports whether the S3 backend can be used
func (c Credentials) HasS3() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// Merge returns c with every non-empty field of override applied
func (c Credentials) Merge(override Credentials) Credentials {
	if override.Mode != "" {
		c.Mode = override.Mode
	}
	if override.APIKey != "" {
		c.APIKey = override.APIKey
	}
	if override.AccessKey != "" {
		c.AccessKey = override.AccessKey
	}
	if override.SecretKey != "" {
		c.SecretKey = override.SecretKey
	}
	return c
}

// ResolveMode picks the backend: an explicit mode wins, then the API key, then S3
func ResolveMode(c Credentials) (models.ConnectionMode, error) {
	switch c.Mode {
	case models.ModeAPI:
		if !c.HasAPIKey() {
			return "", errors.New("api mode selected but no API key configured")
		}
		return models.ModeAPI, nil
	case models.ModeS3:
		if !c.HasS3() {
			return "", errors.New("s3 mode selected but S3 id or secret missing")
		}
		return models.ModeS3, nil
	case "":
	default:
		return "", fmt.Errorf("unknown connection mode %q", c.Mode)
	}

	if c.HasAPIKey() {
		return models.ModeAPI, nil
	}
	if c.HasS3() {
		return models.ModeS3, nil
	}
	return "", errors.New("no credentials configured")
}

const sealedPrefix = "sealed:"

// CredentialStore persists credentials to a file. With a 32-byte key the
// file content is sealed with AES-GCM.
type CredentialStore struct {
	mu      sync.Mutex
	path    string
	sealKey []byte
}

// NewCredentialStore returns a store at path. Keys that are not 32 bytes disable sealing.
func NewCredentialStore(path, sealKey string) *CredentialStore {
	s := &CredentialStore{path: path}
	if len(sealKey) == 32 {
		s.sealKey = []byte(sealKey)
	}
	return s
}

// Path returns the backing file path
func (s *CredentialStore) Path() string {
	return s.path
}

// Load reads the stored credentials; a missing file yields empty credentials
func (s *CredentialStore) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var creds Credentials
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return creds, nil
	}
	if err != nil {
		return creds, fmt.Errorf("read credential store: %w", err)
	}

	if text := strings.TrimSpace(string(data)); strings.HasPrefix(text, sealedPrefix) {
		if s.sealKey == nil {
			return creds, errors.New("credential store is sealed but no key is configured")
		}
		data, err = s.unseal(strings.TrimPrefix(text, sealedPrefix))
		if err != nil {
			return creds, fmt.Errorf("unseal credential store: %w", err)
		}
	}

	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("decode credential store: %w", err)
	}
	return creds, nil
}

// Save atomically replaces the stored credentials
func (s *CredentialStore) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	if s.sealKey != nil {
		sealed, err := s.seal(data)
		if err != nil {
			return err
		}
		data = []byte(sealedPrefix + sealed)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *CredentialStore) seal(data []byte) (string, error) {
	block, err := aes.NewCipher(s.sealKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func (s *CredentialStore) unseal(encoded string) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(s.sealKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("malformed ciphertext")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

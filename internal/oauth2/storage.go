package oauth2

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"amocrm-leads/internal/common/errors"
)

// FileTokenStorage keeps credentials in a local JSON file.
// The file is replaced atomically and readable only by the owner.
type FileTokenStorage struct {
	path string
	mu   sync.Mutex
}

// NewFileTokenStorage creates a file-backed storage at path
func NewFileTokenStorage(path string) *FileTokenStorage {
	return &FileTokenStorage{path: path}
}

// SaveCredentials overwrites the credentials file
func (s *FileTokenStorage) SaveCredentials(ctx context.Context, creds *Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return errors.InternalError("failed to serialize credentials", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.InternalError("failed to create credentials directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return errors.InternalError("failed to create temporary credentials file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.InternalError("failed to write credentials", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.InternalError("failed to set credentials file mode", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.InternalError("failed to write credentials", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.InternalError("failed to replace credentials file", err)
	}
	return nil
}

// LoadCredentials returns nil when the file is missing or empty
func (s *FileTokenStorage) LoadCredentials(ctx context.Context) (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.InternalError("failed to read credentials file", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	return decodeCredentials(data)
}

// DeleteCredentials removes the file. Deleting a missing file is not an error.
func (s *FileTokenStorage) DeleteCredentials(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.InternalError("failed to delete credentials file", err)
	}
	return nil
}

// MemoryTokenStorage keeps credentials for the process lifetime only
type MemoryTokenStorage struct {
	creds *Credentials
	mu    sync.RWMutex
}

// NewMemoryTokenStorage creates an empty in-memory storage
func NewMemoryTokenStorage() *MemoryTokenStorage {
	return &MemoryTokenStorage{}
}

func (s *MemoryTokenStorage) SaveCredentials(ctx context.Context, creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *creds
	s.creds = &c
	return nil
}

func (s *MemoryTokenStorage) LoadCredentials(ctx context.Context) (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil, nil
	}
	c := *s.creds
	return &c, nil
}

func (s *MemoryTokenStorage) DeleteCredentials(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	return nil
}

// decodeCredentials rejects payloads without an access token
func decodeCredentials(data []byte) (*Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, errors.DataIntegrityError("failed to deserialize credentials", err)
	}
	if creds.AccessToken == "" {
		return nil, errors.DataIntegrityError("stored credentials have no access_token", nil)
	}
	return &creds, nil
}

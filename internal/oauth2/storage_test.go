package oauth2

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"amocrm-leads/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCredentials() *Credentials {
	return &Credentials{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		ExpiresIn:    86400,
		CreatedAt:    1700000000,
	}
}

func TestFileTokenStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	storage := NewFileTokenStorage(path)

	creds, err := storage.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)

	require.NoError(t, storage.SaveCredentials(ctx, sampleCredentials()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := storage.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleCredentials(), loaded)

	next := sampleCredentials()
	next.AccessToken = "access-2"
	require.NoError(t, storage.SaveCredentials(ctx, next))

	loaded, err = storage.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", loaded.AccessToken)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, storage.DeleteCredentials(ctx))
	require.NoError(t, storage.DeleteCredentials(ctx))
	creds, err = storage.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestFileTokenStorage_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"access_token": "a",
		"refresh_token": "r",
		"expires_in": 60,
		"created_at": 1700000000
	}`), 0o600))

	creds, err := NewFileTokenStorage(path).LoadCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Credentials{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60, CreatedAt: 1700000000}, creds)
}

func TestFileTokenStorage_InvalidContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"empty file", "", false},
		{"malformed json", "{not json", true},
		{"no access token", `{"refresh_token":"r"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tokens.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			creds, err := NewFileTokenStorage(path).LoadCredentials(context.Background())
			assert.Nil(t, creds)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrTypeDataIntegrity))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemoryTokenStorage(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryTokenStorage()

	creds, err := storage.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)

	original := sampleCredentials()
	require.NoError(t, storage.SaveCredentials(ctx, original))
	original.AccessToken = "mutated"

	loaded, err := storage.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", loaded.AccessToken)

	require.NoError(t, storage.DeleteCredentials(ctx))
	creds, _ = storage.LoadCredentials(ctx)
	assert.Nil(t, creds)
}

func TestManager_PersistsToFile(t *testing.T) {
	ts := newTokenServer(t)
	path := filepath.Join(t.TempDir(), "tokens.json")

	first, _ := newTestManager(t, ts.URL, "code", NewFileTokenStorage(path))
	require.NoError(t, first.EnsureAuthorized(context.Background()))

	second, _ := newTestManager(t, ts.URL, "code", NewFileTokenStorage(path))
	require.NoError(t, second.EnsureAuthorized(context.Background()))

	assert.Equal(t, 1, ts.count())
	header, err := second.AuthorizationHeader()
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-1", header)
}

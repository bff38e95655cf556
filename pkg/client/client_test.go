package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const secretJSON = `{"installed":{"client_id":"id","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "token.json")
	want := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}

	require.NoError(t, saveToken(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.True(t, want.Expiry.Equal(got.Expiry))
}

func TestTokenFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := tokenFromFile(path)
	assert.Error(t, err)
}

func TestCached(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{SecretFile: filepath.Join(dir, "secret.json"), TokenFile: filepath.Join(dir, "token.json")}
	require.NoError(t, os.WriteFile(cfg.SecretFile, []byte(secretJSON), 0o600))

	_, err := Cached(context.Background(), cfg, Scopes...)
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, saveToken(cfg.TokenFile, &oauth2.Token{AccessToken: "a", TokenType: "Bearer"}))
	c, err := Cached(context.Background(), cfg, Scopes...)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestCached_MissingSecret(t *testing.T) {
	_, err := Cached(context.Background(), Config{SecretFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  bool
	}{
		{name: "success", query: "?state=s1&code=abc", wantCode: "abc"},
		{name: "bad state", query: "?state=other&code=abc", wantErr: true},
		{name: "provider error", query: "?state=s1&error=access_denied", wantErr: true},
		{name: "missing code", query: "?state=s1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeCh := make(chan string, 1)
			errCh := make(chan error, 1)
			rec := httptest.NewRecorder()

			callbackHandler("s1", codeCh, errCh).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, callbackPath+tt.query, nil))

			if tt.wantErr {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Len(t, errCh, 1)
				return
			}
			assert.Equal(t, http.StatusOK, rec.Code)
			require.Len(t, codeCh, 1)
			assert.Equal(t, tt.wantCode, <-codeCh)
		})
	}
}

package client

import (
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

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	tok := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.False(t, HasToken(path))
	require.NoError(t, saveToken(path, tok))
	assert.True(t, HasToken(path))

	got, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, got.AccessToken)
	assert.Equal(t, tok.RefreshToken, got.RefreshToken)
	assert.True(t, tok.Expiry.Equal(got.Expiry))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestHasToken_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	assert.False(t, HasToken(path))
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.setDefaults()
	assert.Equal(t, DefaultSecretFile, cfg.SecretFile)
	assert.Equal(t, DefaultTokenFile, cfg.TokenFile)
	assert.Equal(t, DefaultCallbackPort, cfg.CallbackPort)
}

func TestNew_MissingSecret(t *testing.T) {
	_, err := New(t.Context(), Config{SecretFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestGenerateState(t *testing.T) {
	a, err := generateState()
	require.NoError(t, err)
	b, err := generateState()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  bool
		status   int
	}{
		{name: "success", query: "state=s1&code=abc", wantCode: "abc", status: http.StatusOK},
		{name: "bad state", query: "state=other&code=abc", wantErr: true, status: http.StatusBadRequest},
		{name: "provider error", query: "state=s1&error=access_denied", wantErr: true, status: http.StatusBadRequest},
		{name: "missing code", query: "state=s1", wantErr: true, status: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			codeChan := make(chan string, 1)
			errChan := make(chan error, 1)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, callbackPath+"?"+tc.query, nil)
			callbackHandler("s1", codeChan, errChan)(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.wantErr {
				assert.Len(t, errChan, 1)
				assert.Empty(t, codeChan)
				return
			}
			assert.Equal(t, tc.wantCode, <-codeChan)
		})
	}
}

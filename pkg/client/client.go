// Package client provides OAuth2 client setup for Google APIs.
package client

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultCallbackPort is the port for the local OAuth callback server.
	DefaultCallbackPort = 8085
	// callbackPath is the path for the OAuth callback.
	callbackPath = "/callback"
	// serverTimeout is how long to wait for the OAuth callback.
	serverTimeout = 5 * time.Minute
)

const (
	// DefaultTokenFile is the default path to the OAuth token file.
	DefaultTokenFile = "data/token.json"
	// DefaultSecretFile is the default path to the Google OAuth client credentials.
	DefaultSecretFile = "data/client_secret.json"
)

// Config locates the OAuth credentials on disk.
type Config struct {
	// SecretFile is the client secret JSON downloaded from the Google Cloud console.
	SecretFile string
	// TokenFile caches the user's token between runs.
	TokenFile string
	// CallbackPort is where the local server waits for the OAuth redirect.
	CallbackPort int
	// ForceAuth ignores a cached token and runs the browser flow again.
	ForceAuth bool
}

func (c *Config) setDefaults() {
	if c.SecretFile == "" {
		c.SecretFile = DefaultSecretFile
	}
	if c.TokenFile == "" {
		c.TokenFile = DefaultTokenFile
	}
	if c.CallbackPort == 0 {
		c.CallbackPort = DefaultCallbackPort
	}
}

// New creates a new HTTP client with OAuth2 credentials read from cfg.SecretFile.
func New(ctx context.Context, cfg Config, scope ...string) (*http.Client, error) {
	cfg.setDefaults()

	b, err := os.ReadFile(cfg.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}

	return NewFromJSON(ctx, cfg, b, scope...)
}

// NewFromJSON creates a new HTTP client with OAuth2 credentials from JSON content.
func NewFromJSON(ctx context.Context, cfg Config, secretJSON []byte, scope ...string) (*http.Client, error) {
	cfg.setDefaults()

	config, err := google.ConfigFromJSON(secretJSON, scope...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}

	client, err := getClient(ctx, cfg, config)
	if err != nil {
		return nil, fmt.Errorf("getting oauth client: %w", err)
	}

	return client, nil
}

// LoadToken reads the cached token at path.
func LoadToken(path string) (*oauth2.Token, error) {
	if path == "" {
		path = DefaultTokenFile
	}
	return tokenFromFile(path)
}

// HasToken reports whether a cached token exists and decodes.
func HasToken(path string) bool {
	_, err := LoadToken(path)
	return err == nil
}

func getClient(ctx context.Context, cfg Config, config *oauth2.Config) (*http.Client, error) {
	tok, err := tokenFromFile(cfg.TokenFile)
	if cfg.ForceAuth || err != nil {
		slog.Info("no usable token found, initiating OAuth flow", "token_file", cfg.TokenFile)
		tok, err = getTokenFromWeb(ctx, config, cfg.CallbackPort)
		if err != nil {
			return nil, err
		}
		if err := saveToken(cfg.TokenFile, tok); err != nil {
			slog.Error("failed to save token", "error", err)
		}
	}
	return config.Client(ctx, tok), nil
}

func getTokenFromWeb(ctx context.Context, config *oauth2.Config, port int) (*oauth2.Token, error) {
	// Set the redirect URI to our local callback server
	config.RedirectURL = fmt.Sprintf("http://localhost:%d%s", port, callbackPath)

	// Generate a random state token for CSRF protection
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}

	// Create channels for the callback result
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	// Start local server to receive the callback
	server, err := startCallbackServer(ctx, port, state, codeChan, errChan)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Warn("error shutting down callback server", "error", err)
		}
	}()

	// Generate auth URL and open browser
	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline)

	fmt.Printf("\nOpening browser for Google authentication...\n")
	fmt.Printf("If the browser doesn't open automatically, visit this URL:\n%s\n\n", authURL)

	if err := openBrowser(ctx, authURL); err != nil {
		slog.Warn("failed to open browser automatically", "error", err)
	}

	// Wait for callback or timeout
	select {
	case code := <-codeChan:
		tok, err := config.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code for token: %w", err)
		}
		fmt.Println("Authentication successful!")
		return tok, nil
	case err := <-errChan:
		return nil, fmt.Errorf("oauth callback error: %w", err)
	case <-time.After(serverTimeout):
		return nil, fmt.Errorf("oauth flow timed out after %v", serverTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func callbackHandler(expectedState string, codeChan chan<- string, errChan chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Verify state to prevent CSRF
		if state := r.URL.Query().Get("state"); state != expectedState {
			errChan <- fmt.Errorf("invalid state parameter")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		// Check for errors from OAuth provider
		if errMsg := r.URL.Query().Get("error"); errMsg != "" {
			errDesc := r.URL.Query().Get("error_description")
			errChan <- fmt.Errorf("%s: %s", errMsg, errDesc)
			http.Error(w, fmt.Sprintf("Authentication failed: %s", errMsg), http.StatusBadRequest)
			return
		}

		// Extract authorization code
		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no authorization code received")
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			return
		}

		// Send success response to browser
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body style="font-family: sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0;">
<div style="text-align: center;">
<h1 style="color: #4CAF50;">✓ Authentication Successful</h1>
<p>You can close this window and return to the terminal.</p>
</div>
</body>
</html>`)

		// Send code to main goroutine
		codeChan <- code
	}
}

func startCallbackServer(ctx context.Context, port int, expectedState string, codeChan chan<- string, errChan chan<- error) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, callbackHandler(expectedState, codeChan, errChan))

	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Create listener to check if port is available
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("port %d unavailable: %w", port, err)
	}

	// Start server in background
	go func() {
		slog.Debug("starting OAuth callback server", "port", port)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("callback server error", "error", err)
			errChan <- err
		}
	}()

	return server, nil
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "linux":
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	slog.Info("saving credential file", "path", path)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return nil
}

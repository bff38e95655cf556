// Package client builds OAuth2 HTTP clients for the Google APIs used by receiptor.
package client

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
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
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"
)

// Scopes requested by receiptor. The cached token is shared by every command.
var Scopes = []string{gmail.GmailReadonlyScope, sheets.SpreadsheetsScope}

const (
	// DefaultCallbackPort is the port for the local OAuth callback server.
	DefaultCallbackPort = 8085
	callbackPath        = "/callback"
	authTimeout         = 5 * time.Minute
)

// Config locates the OAuth client secret and the cached token.
type Config struct {
	SecretFile   string
	TokenFile    string
	CallbackPort int
}

// ErrNoToken is returned by Cached when no token has been saved yet.
var ErrNoToken = errors.New("no cached oauth token")

// New returns an authorized HTTP client. Without a cached token it runs the
// browser consent flow and caches the resulting token.
func New(ctx context.Context, cfg Config, logger *slog.Logger, scopes ...string) (*http.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "oauth")

	oc, err := oauthConfig(cfg.SecretFile, scopes...)
	if err != nil {
		return nil, err
	}

	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		logger.Info("no cached token found, starting browser authorization", "token_file", cfg.TokenFile)
		tok, err = authorize(ctx, oc, cfg.port(), logger)
		if err != nil {
			return nil, err
		}
		if err := saveToken(cfg.TokenFile, tok); err != nil {
			logger.Error("failed to cache token", "error", err)
		} else {
			logger.Info("cached oauth token", "token_file", cfg.TokenFile)
		}
	}

	return oc.Client(ctx, tok), nil
}

// Cached returns a client only if a token was cached earlier. It never prompts.
func Cached(ctx context.Context, cfg Config, scopes ...string) (*http.Client, error) {
	oc, err := oauthConfig(cfg.SecretFile, scopes...)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoToken, err)
	}
	return oc.Client(ctx, tok), nil
}

func (c Config) port() int {
	if c.CallbackPort > 0 {
		return c.CallbackPort
	}
	return DefaultCallbackPort
}

func oauthConfig(secretFile string, scopes ...string) (*oauth2.Config, error) {
	b, err := os.ReadFile(secretFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}
	oc, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}
	return oc, nil
}

func authorize(ctx context.Context, oc *oauth2.Config, port int, logger *slog.Logger) (*oauth2.Token, error) {
	oc.RedirectURL = fmt.Sprintf("http://localhost:%d%s", port, callbackPath)

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state token: %w", err)
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	server, err := startCallbackServer(ctx, port, state, codeCh, errCh, logger)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := oc.AuthCodeURL(state, oauth2.AccessTypeOffline)
	fmt.Printf("\nOpen this URL to authorize receiptor to read your mail:\n%s\n\n", authURL)
	if err := openBrowser(ctx, authURL); err != nil {
		logger.Warn("failed to open browser automatically", "error", err)
	}

	timer := time.NewTimer(authTimeout)
	defer timer.Stop()

	select {
	case code := <-codeCh:
		tok, err := oc.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code for token: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, fmt.Errorf("oauth callback error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("oauth flow timed out after %v", authTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func callbackHandler(expectedState string, codeCh chan<- string, errCh chan<- error) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != expectedState {
			errCh <- errors.New("invalid state parameter")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		if errMsg := q.Get("error"); errMsg != "" {
			errCh <- fmt.Errorf("%s: %s", errMsg, q.Get("error_description"))
			http.Error(w, "Authorization failed: "+errMsg, http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			errCh <- errors.New("no authorization code received")
			http.Error(w, "No authorization code received", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html>
<html><head><title>receiptor</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh;">
<h1>Authorization complete</h1>
<p>You can close this window and return to the terminal.</p>
</body></html>`)
		codeCh <- code
	})
	return mux
}

func startCallbackServer(ctx context.Context, port int, state string, codeCh chan<- string, errCh chan<- error, logger *slog.Logger) (*http.Server, error) {
	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", port),
		Handler:           callbackHandler(state, codeCh, errCh),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("port %d unavailable: %w", port, err)
	}

	go func() {
		logger.Debug("starting oauth callback server", "port", port)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
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

// LoadToken reads a cached token.
func LoadToken(path string) (*oauth2.Token, error) {
	return tokenFromFile(path)
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return nil
}

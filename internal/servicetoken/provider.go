// Package servicetoken obtains access tokens from pre-provisioned service
// credentials, the non-interactive alternative to username/password issuance.
//
// The mechanism mirrors platform-mounted credentials: the token endpoint comes
// from the OAUTH2_ACCESS_TOKEN_URL environment variable and the client
// credentials from client.json inside $CREDENTIALS_DIR. When either is absent
// the provider reports a typed error and callers fall back to interactive
// issuance.
package servicetoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	// EnvAccessTokenURL names the environment variable holding the OAuth2
	// token endpoint for service credentials.
	EnvAccessTokenURL = "OAUTH2_ACCESS_TOKEN_URL"

	// EnvCredentialsDir names the environment variable pointing at the
	// directory containing mounted credential files.
	EnvCredentialsDir = "CREDENTIALS_DIR"

	clientCredentialsFile = "client.json"
)

// ErrNotConfigured indicates the service-credential mechanism is not set up
// in this environment (no token endpoint configured).
var ErrNotConfigured = errors.New("service token support not configured: " + EnvAccessTokenURL + " not set")

// CredentialsError indicates the mounted credential files are missing or
// unreadable.
type CredentialsError struct {
	Path string
	Err  error
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("reading service credentials from %s: %v", e.Path, e.Err)
}

func (e *CredentialsError) Unwrap() error {
	return e.Err
}

// clientCredentials is the on-disk layout of client.json.
type clientCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Provider manages named service token requests. Manage registers the scopes
// a name needs; Get performs the client-credentials grant.
type Provider struct {
	scopes map[string][]string
}

// NewProvider creates an empty Provider.
func NewProvider() *Provider {
	return &Provider{scopes: make(map[string][]string)}
}

// Manage registers (or updates) the scopes requested for a named token.
// Registration is local bookkeeping only; no I/O happens until Get.
func (p *Provider) Manage(name string, scopes []string) {
	p.scopes[name] = scopes
}

// Get obtains an access token for a previously managed name via the OAuth2
// client-credentials grant. Returns ErrNotConfigured when the token endpoint
// is not set and *CredentialsError when the credential files cannot be read.
func (p *Provider) Get(ctx context.Context, name string) (string, error) {
	tokenURL := os.Getenv(EnvAccessTokenURL)
	if tokenURL == "" {
		return "", ErrNotConfigured
	}

	credsDir := os.Getenv(EnvCredentialsDir)
	if credsDir == "" {
		return "", &CredentialsError{Path: "$" + EnvCredentialsDir, Err: errors.New("not set")}
	}

	path := filepath.Join(credsDir, clientCredentialsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &CredentialsError{Path: path, Err: err}
	}

	var creds clientCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", &CredentialsError{Path: path, Err: err}
	}
	if creds.ClientID == "" {
		return "", &CredentialsError{Path: path, Err: errors.New("client_id missing")}
	}

	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       p.scopes[name],
	}

	tok, err := cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("requesting service token for %q: %w", name, err)
	}
	return tok.AccessToken, nil
}

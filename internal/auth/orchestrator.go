// Package auth implements the token acquisition lifecycle: cache lookup,
// service-credential fallback, interactive or non-interactive issuance, and
// persistence of the result.
//
// Two entry points with deliberately distinct contracts are exposed.
// GetToken is the embeddable non-interactive path: it never prompts and fails
// fast on missing configuration or rejected credentials. GetNamedToken is the
// CLI-facing path: it may prompt for a service URL and password and retries
// on authentication failure as long as the user keeps responding.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hllvc/ztoken/internal/config"
	"github.com/hllvc/ztoken/internal/prompt"
	"github.com/hllvc/ztoken/internal/secrets"
	"github.com/hllvc/ztoken/internal/token"
	"github.com/hllvc/ztoken/internal/tokenservice"
)

const (
	// KeyringService identifies this tool's passwords in the OS keyring.
	KeyringService = "ztoken"

	// EnvUser overrides the configured username in the non-interactive flow.
	EnvUser = "ZTOKEN_USER"
	// EnvPassword overrides the stored password in the non-interactive flow.
	EnvPassword = "ZTOKEN_PASSWORD"
	// EnvOSUser is the generic OS username fallback.
	EnvOSUser = "USER"
)

// ConfigurationError indicates a required local setting (username or token
// service URL) could not be resolved. Never recovered by prompting.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// TokenCache is the cache surface the orchestrator needs.
type TokenCache interface {
	Get(name string) *token.Record
	Save(name string, record *token.Record) error
}

// ConfigStore loads and persists the tool configuration.
type ConfigStore interface {
	Load() (*config.Config, error)
	Save(cfg *config.Config) error
}

// ServiceTokens is the pre-provisioned service-credential mechanism.
type ServiceTokens interface {
	Manage(name string, scopes []string)
	Get(ctx context.Context, name string) (string, error)
}

// TokenRequester requests a fresh token from the token service.
type TokenRequester interface {
	RequestToken(ctx context.Context, realm string, scopes []string, user, password string) (*token.Record, error)
}

// ClientFactory builds a TokenRequester for a service URL.
type ClientFactory func(serviceURL string, insecure bool) (TokenRequester, error)

// Orchestrator composes the collaborators into the token lifecycle. All
// collaborators are injected explicitly so tests can run against in-memory
// fakes.
type Orchestrator struct {
	cache         TokenCache
	config        ConfigStore
	secrets       secrets.Store
	prompter      prompt.Prompter
	serviceTokens ServiceTokens

	newClient ClientFactory
	probe     func(ctx context.Context, serviceURL string, insecure bool) error
	getenv    func(key string) string
	now       func() time.Time
}

// New creates an Orchestrator from its collaborators.
func New(cache TokenCache, configStore ConfigStore, secretsStore secrets.Store, prompter prompt.Prompter, serviceTokens ServiceTokens) (*Orchestrator, error) {
	if cache == nil {
		return nil, fmt.Errorf("missing token cache")
	}
	if configStore == nil {
		return nil, fmt.Errorf("missing config store")
	}
	if secretsStore == nil {
		return nil, fmt.Errorf("missing secret store")
	}
	if prompter == nil {
		return nil, fmt.Errorf("missing prompter")
	}
	if serviceTokens == nil {
		return nil, fmt.Errorf("missing service token provider")
	}

	return &Orchestrator{
		cache:         cache,
		config:        configStore,
		secrets:       secretsStore,
		prompter:      prompter,
		serviceTokens: serviceTokens,
		newClient: func(serviceURL string, insecure bool) (TokenRequester, error) {
			var opts []tokenservice.ClientOption
			if insecure {
				opts = append(opts, tokenservice.WithInsecure())
			}
			return tokenservice.New(serviceURL, opts...)
		},
		probe:  tokenservice.Probe,
		getenv: os.Getenv,
		now:    time.Now,
	}, nil
}

// NamedTokenOptions carries the parameters of the interactive flow.
type NamedTokenOptions struct {
	Name     string
	Scopes   []string
	Realm    string
	User     string
	Password string
	URL      string
	Insecure bool
	// Refresh skips the cache and forces fresh issuance.
	Refresh bool
	// UseKeyring persists the successful password to the secret store.
	UseKeyring bool
	// Prompt enables interactive URL and password acquisition with retry.
	Prompt bool
}

// GetNamedToken returns a named access token, reusing a cached one while it
// stays valid. See the package comment for how this differs from GetToken.
func (o *Orchestrator) GetNamedToken(ctx context.Context, opts NamedTokenOptions) (*token.Record, error) {
	if opts.Name != "" && !opts.Refresh {
		if record := o.cache.Get(opts.Name); record.Valid(o.now()) {
			slog.Debug("using cached token", "name", opts.Name)
			return record, nil
		}
	}

	// A bare name without an explicit realm may be resolvable from mounted
	// service credentials without involving the user at all.
	if opts.Name != "" && opts.Realm == "" {
		if accessToken := o.serviceToken(ctx, opts.Name, opts.Scopes); accessToken != "" {
			return &token.Record{AccessToken: accessToken}, nil
		}
	}

	cfg, err := o.config.Load()
	if err != nil {
		return nil, err
	}

	serviceURL, err := o.resolveURL(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	password := opts.Password
	if password == "" {
		password, _ = o.secrets.Password(KeyringService, opts.User)
	}

	client, err := o.newClient(serviceURL, opts.Insecure)
	if err != nil {
		return nil, err
	}

	var record *token.Record
	for {
		if password == "" && opts.Prompt {
			password, err = o.prompter.PromptHidden(fmt.Sprintf("Password for %s", opts.User))
			if err != nil {
				return nil, err
			}
		}

		record, err = client.RequestToken(ctx, opts.Realm, opts.Scopes, opts.User, password)
		if err == nil {
			break
		}

		var authErr *tokenservice.AuthenticationError
		if errors.As(err, &authErr) && opts.Prompt {
			o.prompter.Errorf("%v", authErr)
			o.prompter.Infof("Please check your username and password and try again.")
			password = ""
			continue
		}
		return nil, err
	}

	if opts.UseKeyring {
		if err := o.secrets.SetPassword(KeyringService, opts.User, password); err != nil {
			// The token is already issued; a keyring failure only costs a
			// prompt next time.
			slog.Warn("failed to store password in keyring", "error", err)
		}
	}

	if opts.Name != "" {
		if err := o.cache.Save(opts.Name, record); err != nil {
			return nil, fmt.Errorf("storing token %q: %w", opts.Name, err)
		}
	}
	return record, nil
}

// GetToken returns an access token for name, requesting the given scopes.
// Strictly non-interactive: credentials come from configuration, environment
// variables and the secret store, and authentication failure propagates
// without retry.
func (o *Orchestrator) GetToken(ctx context.Context, name string, scopes []string) (string, error) {
	if record := o.cache.Get(name); record.Valid(o.now()) {
		slog.Debug("using cached token", "name", name)
		return record.AccessToken, nil
	}

	if accessToken := o.serviceToken(ctx, name, scopes); accessToken != "" {
		return accessToken, nil
	}

	cfg, err := o.config.Load()
	if err != nil {
		return "", err
	}

	user := cfg.User
	if user == "" {
		user = o.getenv(EnvUser)
	}
	if user == "" {
		user = o.getenv(EnvOSUser)
	}
	if user == "" {
		return "", &ConfigurationError{Reason: fmt.Sprintf(
			"missing OAuth username: set \"user\" in the configuration file or the %s environment variable", EnvUser)}
	}

	if cfg.URL == "" {
		return "", &ConfigurationError{Reason: "missing OAuth access token service URL: set \"url\" in the configuration file"}
	}

	password := o.getenv(EnvPassword)
	if password == "" {
		password, _ = o.secrets.Password(KeyringService, user)
	}

	client, err := o.newClient(cfg.URL, cfg.Insecure)
	if err != nil {
		return "", err
	}

	record, err := client.RequestToken(ctx, cfg.Realm, scopes, user, password)
	if err != nil {
		return "", err
	}

	if err := o.cache.Save(name, record); err != nil {
		return "", fmt.Errorf("storing token %q: %w", name, err)
	}
	return record.AccessToken, nil
}

// resolveURL picks the token service URL from the explicit option or the
// configuration, prompting (with a reachability probe) when allowed. A URL
// obtained interactively is persisted so the next invocation skips the
// prompt.
func (o *Orchestrator) resolveURL(ctx context.Context, cfg *config.Config, opts NamedTokenOptions) (string, error) {
	serviceURL := opts.URL
	if serviceURL == "" {
		serviceURL = cfg.URL
	}
	if serviceURL != "" {
		return serviceURL, nil
	}
	if !opts.Prompt {
		return "", &ConfigurationError{Reason: "missing OAuth access token service URL: set \"url\" in the configuration file"}
	}

	for serviceURL == "" {
		entered, err := o.prompter.Prompt("Please enter the OAuth access token service URL")
		if err != nil {
			return "", err
		}

		if err := o.probe(ctx, entered, opts.Insecure); err != nil {
			o.prompter.Errorf("Could not reach %s", entered)
			continue
		}
		serviceURL = entered
	}

	cfg.URL = serviceURL
	if err := o.config.Save(cfg); err != nil {
		return "", fmt.Errorf("storing configuration: %w", err)
	}
	return serviceURL, nil
}

// serviceToken tries the service-credential path. Every failure is swallowed:
// this mechanism is a best-effort optimization and interactive or explicit
// issuance is the guaranteed fallback.
func (o *Orchestrator) serviceToken(ctx context.Context, name string, scopes []string) string {
	o.serviceTokens.Manage(name, scopes)

	accessToken, err := o.serviceTokens.Get(ctx, name)
	if err != nil {
		slog.Debug("service token not available", "name", name, "error", err)
		return ""
	}
	return accessToken
}

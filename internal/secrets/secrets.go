// Package secrets resolves named credentials.
//
// Resolution is two-tier: the managed secret store (OS keyring) is consulted
// first, and on a not-found or transient store error the process environment
// is used as a fallback. A fallback is logged as a warning, a total miss as
// an error; callers cannot tell which tier produced a successful value.
package secrets

import (
	"errors"
	"fmt"
	"os"

	"github.com/wildvoice/wildrag/internal/log"
)

// Service is the keyring service name all wildrag secrets are stored under.
const Service = "wildrag"

// ErrNotFound is returned by a Store when the key does not exist.
var ErrNotFound = errors.New("secret not found")

// SecretNotConfiguredError reports a secret missing from both the secret
// store and the environment.
type SecretNotConfiguredError struct {
	Name string
}

func (e *SecretNotConfiguredError) Error() string {
	return fmt.Sprintf("secret %q is not configured: set it in the secret store or as an environment variable", e.Name)
}

// Store is the managed secret store tier.
// Implementations must return an error wrapping ErrNotFound for missing keys.
type Store interface {
	Retrieve(service, key string) (string, error)
}

// Provider resolves secrets with store-then-environment fallback.
type Provider struct {
	store   Store
	service string
	logger  log.Logger

	// lookupEnv is the environment tier; overridable in tests.
	lookupEnv func(string) (string, bool)
}

// NewProvider creates a Provider reading from store under the given keyring
// service, falling back to process environment variables.
func NewProvider(store Store, logger log.Logger) *Provider {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Provider{
		store:     store,
		service:   Service,
		logger:    logger,
		lookupEnv: os.LookupEnv,
	}
}

// Get resolves the secret called name.
// The secret store wins when it has a value; the environment is only
// consulted when the store misses or fails. Returns
// *SecretNotConfiguredError when neither tier has the value.
func (p *Provider) Get(name string) (string, error) {
	if p.store != nil {
		val, err := p.store.Retrieve(p.service, name)
		if err == nil {
			return val, nil
		}
		if errors.Is(err, ErrNotFound) {
			p.logger.Warn("secret not in store, falling back to environment", "name", name)
		} else {
			p.logger.Warn("secret store unavailable, falling back to environment",
				"name", name, "error", err)
		}
	}

	if val, ok := p.lookupEnv(name); ok {
		return val, nil
	}

	p.logger.Error("secret not configured", "name", name)
	return "", &SecretNotConfiguredError{Name: name}
}

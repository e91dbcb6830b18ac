package secrets

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore implements Store using the OS keyring via zalando/go-keyring.
// On macOS this is Keychain, on Linux secret-service (D-Bus), and on Windows
// the Credential Manager.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

// Retrieve fetches the secret value for the given service and key.
func (*KeyringStore) Retrieve(service, key string) (string, error) {
	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("keyring %s/%s: %w", service, key, ErrNotFound)
		}
		return "", fmt.Errorf("keyring %s/%s: %w", service, key, err)
	}
	return val, nil
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	Values map[string]string

	// RetrieveErr, when set, is returned for every lookup to simulate a
	// transient store failure.
	RetrieveErr error
}

// Retrieve implements Store.
func (m *MemStore) Retrieve(service, key string) (string, error) {
	if m.RetrieveErr != nil {
		return "", m.RetrieveErr
	}
	val, ok := m.Values[key]
	if !ok {
		return "", fmt.Errorf("memstore %s/%s: %w", service, key, ErrNotFound)
	}
	return val, nil
}

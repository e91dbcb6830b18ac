package secrets

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildvoice/wildrag/internal/log"
)

func TestGetFromStoreNeverChecksEnvironment(t *testing.T) {
	store := &MemStore{Values: map[string]string{"OPENAI_API_KEY": "store-value"}}
	p := NewProvider(store, log.NewNop())

	envChecked := false
	p.lookupEnv = func(string) (string, bool) {
		envChecked = true
		return "env-value", true
	}

	val, err := p.Get("OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "store-value", val)
	assert.False(t, envChecked, "environment must not be consulted on a store hit")
}

func TestGetFallsBackToEnvironmentWithWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, log.Config{Level: slog.LevelDebug})

	store := &MemStore{Values: map[string]string{}}
	p := NewProvider(store, logger)
	p.lookupEnv = func(name string) (string, bool) {
		if name == "OPENAI_ENDPOINT" {
			return "https://example.openai.azure.com", true
		}
		return "", false
	}

	val, err := p.Get("OPENAI_ENDPOINT")
	require.NoError(t, err)
	assert.Equal(t, "https://example.openai.azure.com", val)
	assert.Contains(t, buf.String(), "falling back to environment")
}

func TestGetFallsBackOnTransientStoreError(t *testing.T) {
	store := &MemStore{RetrieveErr: errors.New("dbus: connection refused")}
	p := NewProvider(store, log.NewNop())
	p.lookupEnv = func(string) (string, bool) { return "from-env", true }

	val, err := p.Get("OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env", val)
}

func TestGetMissingEverywhere(t *testing.T) {
	store := &MemStore{Values: map[string]string{}}
	p := NewProvider(store, log.NewNop())
	p.lookupEnv = func(string) (string, bool) { return "", false }

	_, err := p.Get("OPENAI_API_VERSION")
	require.Error(t, err)

	var notConfigured *SecretNotConfiguredError
	require.True(t, errors.As(err, &notConfigured))
	assert.Equal(t, "OPENAI_API_VERSION", notConfigured.Name)
	assert.Contains(t, err.Error(), "OPENAI_API_VERSION")
}

func TestGetNilStoreUsesEnvironment(t *testing.T) {
	p := NewProvider(nil, log.NewNop())
	t.Setenv("WILDRAG_TEST_SECRET", "only-env")

	val, err := p.Get("WILDRAG_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "only-env", val)
}

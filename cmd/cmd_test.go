package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHelloCommand(t *testing.T) {
	out, err := execute(t, "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello from wildrag!")
}

func TestHelloCommandWithName(t *testing.T) {
	out, err := execute(t, "hello", "--name", "Wadden")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello, Wadden!")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "wildrag development")
	assert.Contains(t, out, "Build Time:")
	assert.Contains(t, out, "Git Commit:")
}

func TestEntitiesCommand(t *testing.T) {
	out, err := execute(t, "entities")
	require.NoError(t, err)
	assert.Contains(t, out, "seal")
	assert.Contains(t, out, "seagrass")
	assert.Contains(t, out, "vectorSearchDB")
}

func TestQueryRequiresFlags(t *testing.T) {
	_, err := execute(t, "query", "--entity", "seal")
	require.Error(t, err)
}

func TestQueryUnknownBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "query", "--entity", "seal", "--query", "where do you rest?", "--backend", "cosmos")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}

func TestIngestRequiresDir(t *testing.T) {
	_, err := execute(t, "ingest", "seal")
	require.Error(t, err)
}

func TestParseBackend(t *testing.T) {
	for _, name := range []string{"local", "postgres", "qdrant"} {
		b, err := parseBackend(name)
		require.NoError(t, err)
		assert.Equal(t, name, string(b))
	}

	_, err := parseBackend("cosmos")
	assert.Error(t, err)
}

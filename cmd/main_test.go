package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out, _, err := runCLI(t, args...)
	return out, err
}

func runCLI(t *testing.T, args ...string) (string, *cli, error) {
	t.Helper()

	var out bytes.Buffer
	c := newCLI()
	c.root.SetOut(&out)
	c.root.SetErr(io.Discard)
	c.root.SetArgs(append([]string{"-c", filepath.Join(t.TempDir(), "absent.yaml")}, args...))

	err := c.execute(context.Background())
	return out.String(), c, err
}

func TestPrefsCommands(t *testing.T) {
	prefsFile := filepath.Join(t.TempDir(), "prefs.json")
	t.Setenv("STORAGE", "file")
	t.Setenv("PREFS_FILE", prefsFile)

	out, err := run(t, "prefs", "get")
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodeAddress":"","numberOfBlocks":10}`, out)

	out, err = run(t, "prefs", "set", "--node-address", "node-42", "--number-of-blocks", "3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodeAddress":"node-42","numberOfBlocks":3}`, out)

	// a fresh process sees the persisted values
	out, err = run(t, "prefs", "get")
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodeAddress":"node-42","numberOfBlocks":3}`, out)

	_, err = run(t, "prefs", "set")
	require.Error(t, err)

	_, err = run(t, "prefs", "set", "--number-of-blocks", "-1")
	require.Error(t, err)
}

func TestEntriesCommand(t *testing.T) {
	var nodeAddress string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nodeAddress = r.Header.Get("X-Node-Address")
		_, _ = io.WriteString(w, `{"blocks":[{"transactions":[{"hash":"a"}]},{"transactions":[{"hash":"b"},{"hash":"c"}]}]}`)
	}))
	defer upstream.Close()

	t.Setenv("STORAGE", "file")
	t.Setenv("PREFS_FILE", filepath.Join(t.TempDir(), "prefs.json"))
	t.Setenv("API_SOURCE", "external")
	t.Setenv("API_URL", upstream.URL)

	_, err := run(t, "prefs", "set", "--node-address", "node-7")
	require.NoError(t, err)

	out, err := run(t, "entries")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"hash":"a"},{"hash":"b"},{"hash":"c"}]`, out)
	assert.Equal(t, "node-7", nodeAddress)
}

func TestBlocksCommandFallback(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	t.Setenv("STORAGE", "memory")
	t.Setenv("API_SOURCE", "external")
	t.Setenv("API_URL", upstream.URL)

	out, err := run(t, "blocks")
	require.NoError(t, err)
	assert.JSONEq(t, `{"blocks":[]}`, out)
}

func TestAppClosedAfterFailedCommand(t *testing.T) {
	t.Setenv("STORAGE", "memory")

	_, c, err := runCLI(t, "prefs", "set", "--number-of-blocks", "0")
	require.Error(t, err)
	require.NotNil(t, c.app)
	assert.True(t, c.app.closed)

	_, c, err = runCLI(t, "prefs", "get")
	require.NoError(t, err)
	assert.True(t, c.app.closed)
}

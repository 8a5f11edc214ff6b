// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkPage = `<html><body>
<h1 id="title">Hello world</h1>
<ul><li>one</li><li>two</li></ul>
<div id="gone" hidden>x</div>
</body></html>`

// runCLI executes a fresh command tree with an isolated home directory.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	rootCmd := newRootCmd()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func writePage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(checkPage), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "steady "+Version))

	out, err = runCLI(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestCheckFilePasses(t *testing.T) {
	path := writePage(t)

	out, err := runCLI(t, "check", "--file", path, "--selector", "#title",
		"--should", "visible", "--should", "text=hello", "--should-not", "text=bye")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS "+path+" {#title}")
	assert.Contains(t, out, `<h1 id="title">Hello world</h1>`)
}

func TestCheckFileFails(t *testing.T) {
	path := writePage(t)

	out, err := runCLI(t, "check", "--file", path, "--selector", "li", "--index", "1",
		"--should", "exact-text=three", "--timeout", "150ms")
	require.Error(t, err)

	var failed *checksFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 1, failed.failed)
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "hasn't exact text 'three' in 150 ms; actual value: 'two'")
}

func TestCheckJSONReport(t *testing.T) {
	path := writePage(t)

	out, err := runCLI(t, "check", "--file", path, "--selector", "#gone", "--should", "hidden", "--json")
	require.NoError(t, err)

	var results []checkResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Equal(t, "{#gone}", results[0].Target)
	assert.Empty(t, results[0].Error)
}

func TestCheckDefaultsToExistence(t *testing.T) {
	path := writePage(t)

	_, err := runCLI(t, "check", "--file", path, "--selector", "//ul/li[2]")
	assert.NoError(t, err)

	_, err = runCLI(t, "check", "--file", path, "--selector", "#missing", "--timeout", "0s")
	var failed *checksFailedError
	assert.True(t, errors.As(err, &failed))
}

func TestCheckUsageErrors(t *testing.T) {
	path := writePage(t)

	_, err := runCLI(t, "check", "--selector", "h1")
	assert.EqualError(t, err, "one of --url or --file is required")

	_, err = runCLI(t, "check", "--file", path)
	assert.ErrorContains(t, err, `required flag(s) "selector" not set`)

	_, err = runCLI(t, "check", "--file", path, "--selector", "h1", "--should", "shiny")
	assert.ErrorContains(t, err, `--should: unknown condition "shiny"`)

	_, err = runCLI(t, "check", "--file", path, "--selector", "li", "--index", "-1")
	assert.EqualError(t, err, "--index must not be negative")

	_, err = runCLI(t, "check", "--file", filepath.Join(t.TempDir(), "nope.html"), "--selector", "h1")
	assert.Error(t, err)
}

func TestConfigFileIsHonored(t *testing.T) {
	path := writePage(t)
	cfgPath := filepath.Join(t.TempDir(), "steady.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("wait:\n  poll_interval: 0s\n"), 0o600))

	_, err := runCLI(t, "--config", cfgPath, "check", "--file", path, "--selector", "h1")
	assert.ErrorContains(t, err, "poll_interval must be a positive duration")
}

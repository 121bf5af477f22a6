package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
	"github.com/doITmagic/api-contract-mcp/internal/generator"
)

const routesJSON = `[
  {"domain": null, "method": "GET|HEAD", "uri": "api/health", "name": "health", "action": "Closure", "middleware": ["api"]},
  {"domain": null, "method": "GET|HEAD", "uri": "up", "name": null, "action": "Closure", "middleware": ["web"]}
]`

func newTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"artisan":        "#!/usr/bin/env php\n",
		"routes.json":    routesJSON,
		".contract.yaml": "routes:\n  source: json\n  json_path: routes.json\ncache:\n  driver: memory\nlogging:\n  level: error\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "contract version dev")
}

func TestGenerateCmd(t *testing.T) {
	dir := newTestProject(t)

	out, err := run(t, "generate", "-p", dir, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run")
	assert.NoFileExists(t, filepath.Join(dir, "api-contracts", "api.json"))

	out, err = run(t, "generate", "-p", dir, "--log")
	require.NoError(t, err)
	assert.Contains(t, out, "Contract written to")

	c, err := contract.Load(filepath.Join(dir, "api-contracts", "api.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/api/health"}, c.Paths())

	logged, err := os.ReadFile(filepath.Join(dir, generateLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(logged), "Entries: 1")

	_, err = run(t, "generate", "-p", dir, "--strict")
	var exit exitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, generator.ExitIssues, exit.code)
}

func TestExportCmd(t *testing.T) {
	dir := newTestProject(t)

	_, err := run(t, "export", "-p", dir)
	require.Error(t, err, "no contract generated yet")

	_, err = run(t, "generate", "-p", dir)
	require.NoError(t, err)

	_, err = run(t, "export", "-p", dir, "--format", "yaml", "--out", "docs/openapi.yaml", "--title", "Shop API")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "docs", "openapi.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "openapi: 3.0.3")
	assert.Contains(t, string(data), "title: Shop API")
	assert.Contains(t, string(data), "/api/health:")

	out, err := run(t, "export", "-p", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `"openapi": "3.0.3"`)

	_, err = run(t, "export", "-p", dir, "--format", "xml")
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestCacheClearCmd(t *testing.T) {
	dir := newTestProject(t)

	out, err := run(t, "cache", "clear", "-p", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Analysis cache cleared")

	out, err = run(t, "cache", "clear", "-p", dir, "--type", "route_facts")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared cached route_facts entries")

	_, err = run(t, "cache", "clear", "-p", dir, "--type", "bogus")
	assert.ErrorContains(t, err, "unknown cache type")
}

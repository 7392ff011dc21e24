package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symgraph.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[project]
name = "demo"
root = "/tmp/demo"
`))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "demo", cfg.Project.Name)
	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, []string{"/tmp/demo"}, cfg.Watch.Paths)
	assert.Contains(t, cfg.Exclude.Dirs, "node_modules")
	assert.Equal(t, 100, cfg.Realtime.MaxConnections)
	assert.Equal(t, ":8780", cfg.Realtime.Address)
	assert.Equal(t, 30*time.Second, cfg.Query.Timeout)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
version = 1
languages = ["go", "typescript", "markdown"]

[project]
name = "demo"
root = "."

[db]
driver = "sqlite"
path = "state/graph.db"

[watch]
enabled = true
debounce = 500000000
paths = ["src", "docs"]

[exclude]
dirs = ["target"]
files = ["*.gen.go"]

[inference]
parallel = true
max_concurrency = 8
auto_inference = true
rules = ["imports-to-depends"]

[realtime]
enabled = true
address = ":9000"
max_connections = 10
poll_interval = 1000000000
query_timeout = 60000000000

[observability]
enabled = true
address = ":9001"
`))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, []string{"src", "docs"}, cfg.Watch.Paths)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, []string{"target"}, cfg.Exclude.Dirs)
	assert.True(t, cfg.Inference.Parallel)
	assert.Equal(t, 8, cfg.Inference.MaxConcurrency)
	assert.Equal(t, []string{"imports-to-depends"}, cfg.Inference.Rules)
	assert.Equal(t, ":9000", cfg.Realtime.Address)
	assert.Equal(t, 10, cfg.Realtime.MaxConnections)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	_, err := Load(writeConfig(t, `
[db]
driver = "postgres"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db driver")
}

func TestLoadRejectsUnknownLanguage(t *testing.T) {
	_, err := Load(writeConfig(t, `languages = ["cobol"]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown language")
}

func TestLoadRejectsBadVersion(t *testing.T) {
	_, err := Load(writeConfig(t, `version = 9`))
	require.Error(t, err)
}

func TestLoadRejectsPollLongerThanTimeout(t *testing.T) {
	_, err := Load(writeConfig(t, `
[realtime]
poll_interval = 600000000000
query_timeout = 1000000000
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestDefault(t *testing.T) {
	cfg := Default("/srv/app")
	assert.Equal(t, "app", cfg.Project.Name)
	assert.Equal(t, "/srv/app", cfg.Project.Root)
	require.NoError(t, Validate(cfg))
}

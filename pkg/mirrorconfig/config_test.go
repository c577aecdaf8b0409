package mirrorconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpriedel/edgarmirror/pkg/mirrorconfig"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := mirrorconfig.Load("")
	require.NoError(t, err)
	assert.Equal(t, mirrorconfig.Default().Upstream.Host, cfg.Upstream.Host)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
upstream:
  host: archive.example.com
  port: 8443
paths:
  index_dir: /tmp/index
fetch:
  max_workers: 9
`), 0o644))

	cfg, err := mirrorconfig.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "archive.example.com", cfg.Upstream.Host)
	assert.Equal(t, 8443, cfg.Upstream.Port)
	assert.Equal(t, "/tmp/index", cfg.Paths.IndexDir)
	assert.Equal(t, 9, cfg.Fetch.MaxWorkers)
}

func TestLoadEnvOverridesWinOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("upstream:\n  host: from-yaml\n"), 0o644))

	t.Setenv("EDGAR_MIRROR_HOST", "from-env")
	cfg, err := mirrorconfig.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Upstream.Host)
}

func TestLoadMaxWorkersEnvOverride(t *testing.T) {
	t.Setenv("EDGAR_MIRROR_MAX_WORKERS", "12")
	cfg, err := mirrorconfig.Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Fetch.MaxWorkers)
}

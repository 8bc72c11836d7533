package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	cfg, err := LoadYAML(strings.NewReader(`
engine:
  workers: 4
  tick_rate: 20ms
logging:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 20*time.Millisecond, cfg.Engine.TickRate)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "assets", cfg.Content.Root)
}

func TestLoadYAMLEmptyDocument(t *testing.T) {
	cfg, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, cfg.Engine.Workers)
}

func TestLoadTOMLClampsWorkers(t *testing.T) {
	cfg, err := LoadTOML(strings.NewReader(`
[engine]
workers = 64
tick_rate = "10ms"

[content]
root = "data"
preload = ["a.yaml", "b.lua"]
`))
	require.NoError(t, err)

	assert.Equal(t, MaxWorkers, cfg.Engine.Workers)
	assert.Equal(t, 10*time.Millisecond, cfg.Engine.TickRate)
	assert.Equal(t, "data", cfg.Content.Root)
	assert.Equal(t, []string{"a.yaml", "b.lua"}, cfg.Content.Preload)
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()

	yml := filepath.Join(dir, "engine.yml")
	require.NoError(t, os.WriteFile(yml, []byte("engine:\n  workers: 0\n"), 0o644))
	cfg, err := Load(yml)
	require.NoError(t, err)
	assert.Equal(t, MinWorkers, cfg.Engine.Workers)

	ini := filepath.Join(dir, "engine.ini")
	require.NoError(t, os.WriteFile(ini, []byte("workers=2"), 0o644))
	_, err = Load(ini)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Engine.TickRate = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Inspector.Enabled = true
	cfg.Inspector.Addr = ""
	assert.Error(t, cfg.Validate())
}

func TestClampWorkers(t *testing.T) {
	assert.Equal(t, 1, ClampWorkers(-3))
	assert.Equal(t, 1, ClampWorkers(0))
	assert.Equal(t, 7, ClampWorkers(7))
	assert.Equal(t, 16, ClampWorkers(17))
}

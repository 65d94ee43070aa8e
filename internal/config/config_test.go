package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/atlaspack/internal/options"
)

func TestLoader_Load_CreatesDefaultIfMissing(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader()
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpHome, ".local", "share", "atlaspack", "bin"), cfg.Binary.Root)
	assert.Equal(t, DefaultImage, cfg.Binary.Image)
	assert.False(t, cfg.Binary.Insecure)
	assert.Empty(t, cfg.Runner.TempDir)
	assert.Equal(t, 5*time.Second, cfg.Runner.WaitDelay)
	assert.Contains(t, cfg.Storage.Logs, "logs")
	assert.Equal(t, filepath.Join(tmpHome, ".local", "share", "atlaspack", "runs.json"), cfg.Storage.Catalog)
	assert.Equal(t, 50, cfg.Storage.KeepRuns)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Options)
	assert.NoError(t, cfg.Validate())

	_, err = os.Stat(loader.Path())
	assert.NoError(t, err)
}

func TestLoader_Load_ReadsExistingConfig(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "atlaspack")
	require.NoError(t, os.MkdirAll(configDir, 0o755))

	configContent := `
binary:
  root: ~/tools/bin
  image: registry.example.com/atlasbuilder:1.2.0
  insecure: true
runner:
  wait_delay: 2s
storage:
  logs: ~/custom/logs
  keep_runs: 3
log:
  format: json
options:
  padding: 4
  output-pow2: false
  resize-kernel: cubic
`
	require.NoError(t, os.WriteFile(
		filepath.Join(configDir, "config.yaml"),
		[]byte(configContent),
		0o644,
	))

	loader, err := NewLoader()
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpHome, "tools", "bin"), cfg.Binary.Root)
	assert.Equal(t, "registry.example.com/atlasbuilder:1.2.0", cfg.Binary.Image)
	assert.True(t, cfg.Binary.Insecure)
	assert.Equal(t, 2*time.Second, cfg.Runner.WaitDelay)
	assert.Equal(t, filepath.Join(tmpHome, "custom", "logs"), cfg.Storage.Logs)
	assert.Equal(t, 3, cfg.Storage.KeepRuns)
	assert.Equal(t, "json", cfg.Log.Format)

	overrides, err := cfg.OptionOverrides()
	require.NoError(t, err)
	assert.Equal(t, []string{"output-pow2", "padding", "resize-kernel"}, overrides.Keys())

	args := options.BuildArguments(overrides)
	assert.Contains(t, args, "--padding=4")
	assert.Contains(t, args, "--output-pow2=false")
	assert.Contains(t, args, "--resize-kernel=cubic")
}

func TestLoader_Load_EnvVarOverride(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("ATLASPACK_BINARY_ROOT", "/opt/atlas/bin")
	t.Setenv("ATLASPACK_IMAGE", "env:image")
	t.Setenv("ATLASPACK_LOG_FORMAT", "logfmt")

	loader, err := NewLoader()
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/atlas/bin", cfg.Binary.Root)
	assert.Equal(t, "env:image", cfg.Binary.Image)
	assert.Equal(t, "logfmt", cfg.Log.Format)
}

func TestLoader_Path(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader()
	require.NoError(t, err)

	expected := filepath.Join(tmpHome, ".config", "atlaspack", "config.yaml")
	assert.Equal(t, expected, loader.Path())
}

func TestLoader_Get(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader()
	require.NoError(t, err)

	_, err = loader.Load()
	require.NoError(t, err)

	t.Run("valid key returns value", func(t *testing.T) {
		val, err := loader.Get("binary.image")
		require.NoError(t, err)
		assert.Equal(t, DefaultImage, val)
	})

	t.Run("invalid key returns error", func(t *testing.T) {
		_, err := loader.Get("invalid.key")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestLoader_Set(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader()
	require.NoError(t, err)

	_, err = loader.Load()
	require.NoError(t, err)

	t.Run("sets valid key", func(t *testing.T) {
		err := loader.Set("log.format", "json")
		require.NoError(t, err)

		val, err := loader.Get("log.format")
		require.NoError(t, err)
		assert.Equal(t, "json", val)
	})

	t.Run("sets option override", func(t *testing.T) {
		require.NoError(t, loader.Set("options.padding", "8"))

		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "8", cfg.Options["padding"])
	})

	t.Run("rejects invalid key", func(t *testing.T) {
		err := loader.Set("invalid.key", "value")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("rejects invalid log format", func(t *testing.T) {
		err := loader.Set("log.format", "xml")
		assert.ErrorIs(t, err, ErrInvalidLogFormat)
	})

	t.Run("rejects invalid duration", func(t *testing.T) {
		err := loader.Set("runner.wait_delay", "soon")
		assert.ErrorIs(t, err, ErrInvalidValue)
	})
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"binary", true},
		{"binary.root", true},
		{"runner.wait_delay", true},
		{"storage.keep_runs", true},
		{"storage.catalog", true},
		{"options", true},
		{"options.padding", true},
		{"options.", false},
		{"options.a.b", false},
		{"", false},
		{"binary.unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidKey)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Binary:  BinaryConfig{Root: "/opt/bin", Image: "test:latest"},
			Storage: StorageConfig{Logs: "/tmp/logs", Catalog: "/tmp/runs.json"},
		}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing binary root", func(t *testing.T) {
		cfg := valid()
		cfg.Binary.Root = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Root")
	})

	t.Run("invalid log format", func(t *testing.T) {
		cfg := valid()
		cfg.Log.Format = "xml"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Format")
	})

	t.Run("temp dir must exist", func(t *testing.T) {
		cfg := valid()
		cfg.Runner.TempDir = filepath.Join(t.TempDir(), "missing")
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative keep runs", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.KeepRuns = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestConfig_OptionOverrides(t *testing.T) {
	t.Run("rejects nested values", func(t *testing.T) {
		cfg := &Config{Options: map[string]any{"output": map[string]any{"x": 1}}}

		_, err := cfg.OptionOverrides()

		require.ErrorIs(t, err, options.ErrInvalidValue)
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/codec"
)

func validConfig() Config {
	return Config{
		Convert: ConvertConfig{
			Src:                "world",
			Dst:                "out",
			Converter:          "cc2cc",
			ConvertQueueFactor: 32,
			WriteQueueFactor:   8,
			SectorSize:         512,
			RegionCacheSize:    256,
			OnError:            "ask",
		},
		Dimensions: codec.DefaultDimensions().All(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{PollInterval: time.Second},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	cfg := validConfig()
	cfg.Convert.Dst = "world/"
	cfg.Convert.Converter = "anvil"
	cfg.Convert.OnError = "panic"
	cfg.Tasks.File = "tasks.json"
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"convert.dst must differ", "convert.converter", "convert.on_error", "tasks.file", "logging.level"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.Contains(t, err.Error(), "; ")
}

func TestValidate_MergingNeedsFallback(t *testing.T) {
	cfg := validConfig()
	cfg.Convert.Converter = "merging"
	assert.ErrorContains(t, cfg.Validate(), "fallback_src")
	cfg.Convert.FallbackSrc = "backup"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Anvil2CC(t *testing.T) {
	cfg := validConfig()
	cfg.Convert.Converter = "anvil2cc"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_UndoAndTileEntityToggles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "converter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
convert:
  src: /saves/world
  dst: /saves/out
  converter: anvil2cc
  fix_missing_tile_entities: false
tasks:
  file: edits.txt
  undo: true
`), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anvil2cc", cfg.Convert.Converter)
	assert.False(t, cfg.Convert.FixMissingTileEntities)
	assert.True(t, cfg.Tasks.Undo)
}

func TestValidate_Dimensions(t *testing.T) {
	cfg := validConfig()
	cfg.Dimensions = append(cfg.Dimensions, codec.Dimension{Name: "Overworld", Directory: "DIM7"})
	assert.ErrorContains(t, cfg.Validate(), "duplicate dimension name")
}

func TestTasksFormat(t *testing.T) {
	for file, want := range map[string]string{
		"a.txt": "script", "a.YAML": "yaml", "a.yml": "yaml", "a.lua": "lua", "a": "", "": "",
	} {
		assert.Equal(t, want, TasksConfig{File: file}.Format(), file)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "converter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
convert:
  src: /saves/world
  dst: /saves/out
  converter: relocating
  parallelism: 4
  on_error: stop_keep
tasks:
  file: edits.yaml
dimensions:
  - name: Overworld
    directory: ""
  - name: Moon
    directory: DIM7
logging:
  level: debug
metrics:
  addr: ":9100"
  poll_interval: 250ms
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "relocating", cfg.Convert.Converter)
	assert.Equal(t, 4, cfg.Convert.Parallelism)
	assert.Equal(t, 32, cfg.Convert.ConvertQueueFactor, "defaults fill unset keys")
	assert.Equal(t, "yaml", cfg.Tasks.Format())
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 250*time.Millisecond, cfg.Metrics.PollInterval)
	assert.True(t, cfg.Convert.FixMissingTileEntities, "tile entity fixing defaults on")
	assert.False(t, cfg.Tasks.Undo)
	require.Len(t, cfg.Dimensions, 2)
	assert.Equal(t, codec.Dimension{Name: "Moon", Directory: "DIM7"}, cfg.Dimensions[1])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONVERTER_CONVERT_SRC", "/from/env")
	t.Setenv("CONVERTER_CONVERT_DST", "/to/env")
	t.Setenv("CONVERTER_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Convert.Src)
	assert.Equal(t, "/to/env", cfg.Convert.Dst)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Len(t, cfg.Dimensions, 3)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load("", func(v *viper.Viper) {
		v.Set("convert.src", "a")
		v.Set("convert.dst", "b")
		v.Set("convert.on_error", "ignore_all")
	})
	require.NoError(t, err)
	assert.Equal(t, "ignore_all", cfg.Convert.OnError)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")

	_, err = Load("")
	assert.ErrorContains(t, err, "convert.src must not be empty")
}

func TestProperty_QueueFactorsMustBePositive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := validConfig()
		cfg.Convert.ConvertQueueFactor = rapid.IntRange(-100, 100).Draw(t, "convert")
		cfg.Convert.WriteQueueFactor = rapid.IntRange(-100, 100).Draw(t, "write")
		err := cfg.Validate()
		ok := cfg.Convert.ConvertQueueFactor >= 1 && cfg.Convert.WriteQueueFactor >= 1
		if ok != (err == nil) {
			t.Fatalf("factors %d/%d: err=%v", cfg.Convert.ConvertQueueFactor, cfg.Convert.WriteQueueFactor, err)
		}
	})
}

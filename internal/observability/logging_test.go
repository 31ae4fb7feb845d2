package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/config"
)

func TestNewLogger_JSONCarriesAppAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown", zap.Int("cubes", 3))
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug is below the configured level")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, App, entry["app"])
	assert.Equal(t, float64(3), entry["cubes"])
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{Level: "debug", Format: "console"}, zapcore.AddSync(&buf))
	require.NoError(t, err)
	logger.Debug("counting")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "counting")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "trace", Format: "json"})
	assert.Error(t, err)
	_, err = NewLogger(config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNewLogger_AllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLogger(config.LoggingConfig{Level: level, Format: "json"})
		require.NoError(t, err, "level %q should be valid", level)
		assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
	}
}

func TestWithRun_TagsEveryEntry(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	run := NewRun("anvil2cc", "/saves/world", "/saves/cubic")
	_, err := uuid.Parse(run.ID)
	require.NoError(t, err)

	logger := WithRun(zap.New(core), run)
	logger.Info("starting conversion")
	logger.Named("pipeline").Warn("slow write")

	require.Equal(t, 2, logs.Len())
	for _, e := range logs.All() {
		fields := e.ContextMap()
		assert.Equal(t, run.ID, fields["run_id"])
		assert.Equal(t, "anvil2cc", fields["converter"])
		assert.Equal(t, "/saves/world", fields["src"])
		assert.Equal(t, "/saves/cubic", fields["dst"])
	}
	assert.NotEqual(t, run.ID, NewRun("anvil2cc", "a", "b").ID)
}

// Package observability provides logging and progress metrics.
package observability

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/config"
)

// App is the "app" field of every log line.
const App = "cubic-converter"

// NewLogger creates the process logger from the logging configuration,
// writing to stderr.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	return newLogger(cfg, zapcore.Lock(os.Stderr))
}

func newLogger(cfg config.LoggingConfig, out zapcore.WriteSyncer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var (
		enc  zapcore.Encoder
		opts = []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	)
	switch cfg.Format {
	case "json":
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	case "console":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewConsoleEncoder(ec)
		opts = append(opts, zap.Development())
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	core := zapcore.NewCore(enc, out, zap.NewAtomicLevelAt(level))
	return zap.New(core, opts...).With(zap.String("app", App)), nil
}

// Run identifies one conversion.
type Run struct {
	ID        string
	Converter string
	Src, Dst  string
}

// NewRun returns a run of converter from src to dst with a fresh ID.
func NewRun(converter, src, dst string) Run {
	return Run{ID: uuid.NewString(), Converter: converter, Src: src, Dst: dst}
}

// WithRun returns logger tagged with run's fields.
func WithRun(logger *zap.Logger, run Run) *zap.Logger {
	return logger.With(
		zap.String("run_id", run.ID),
		zap.String("converter", run.Converter),
		zap.String("src", run.Src),
		zap.String("dst", run.Dst),
	)
}

package scripting

import (
	"context"
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/edittask"
)

// Loader runs task scripts. Each script gets a fresh VM, so a Loader may be
// used from several goroutines.
type Loader struct {
	instLimit int
	logger    *zap.Logger
}

// NewLoader creates a Loader whose scripts may execute at most instLimit
// opcodes.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: Returns a non-nil Loader. A nil logger discards script logs.
func NewLoader(instLimit int, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{instLimit: instLimit, logger: logger}
}

// LoadFile runs the script at path and returns the tasks it built.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]edittask.Task, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading %q: %w", path, err)
	}
	return l.LoadString(ctx, path, string(src))
}

// LoadString runs src, naming it name in errors and logs.
//
// Postcondition: on error no tasks are returned; a script that exceeds the
// instruction limit or whose ctx is canceled fails.
func (l *Loader) LoadString(ctx context.Context, name, src string) ([]edittask.Task, error) {
	L, cancel := NewSandboxedState(ctx, l.instLimit)
	defer cancel()
	defer L.Close()

	var tl taskList
	registerModules(L, &tl, l.logger.With(zap.String("script", name)))

	fn, err := L.Load(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("scripting: compiling %q: %w", name, err)
	}
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return nil, fmt.Errorf("scripting: running %q: %w", name, err)
	}
	l.logger.Debug("task script loaded", zap.String("script", name), zap.Int("tasks", len(tl.tasks)))
	return tl.tasks, nil
}

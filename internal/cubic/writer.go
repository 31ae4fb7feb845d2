package cubic

import (
	"context"
	"fmt"
	"hash/maphash"
	"os"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/codec"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/region"
)

// saves lazily opens one write-mode save per dimension under root.
type saves struct {
	root   string
	opts   region.SaveOptions
	logger *zap.Logger

	mu     sync.Mutex
	byDir  map[string]*region.Save
	closed bool
}

func newSaves(root string, opts region.SaveOptions, logger *zap.Logger) *saves {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Write = true
	return &saves{root: root, opts: opts, logger: logger, byDir: make(map[string]*region.Save)}
}

func (s *saves) get(dim codec.Dimension) (*region.Save, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("writing %s: writer closed", dim)
	}
	if save, ok := s.byDir[dim.Directory]; ok {
		return save, nil
	}
	save, err := region.OpenSave(dim.Path(s.root), s.opts)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("opened destination save", zap.Stringer("dimension", dim), zap.String("root", save.Root))
	s.byDir[dim.Directory] = save
	return save, nil
}

// Close flushes every save. Failing saves do not keep the rest from closing.
func (s *saves) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	for _, save := range s.byDir {
		err = multierr.Append(err, save.Close())
	}
	return err
}

// DiscardData removes the destination root.
//
// Precondition: Close has been called.
func (s *saves) DiscardData() error {
	if err := s.Close(); err != nil {
		return err
	}
	s.logger.Info("removing destination", zap.String("root", s.root))
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("discarding %s: %w", s.root, err)
	}
	return nil
}

func putColumn(save *region.Save, pos codec.ColumnPos, column []byte) error {
	if column == nil {
		return nil
	}
	if err := save.Columns.Save(pos.Vec(), column); err != nil {
		return fmt.Errorf("saving column %s: %w", pos, err)
	}
	return nil
}

func putCube(save *region.Save, pos geom.Vec3, data []byte) error {
	if data == nil {
		if err := save.Cubes.Delete(pos); err != nil {
			return fmt.Errorf("deleting cube %s: %w", pos, err)
		}
		return nil
	}
	if err := save.Cubes.Save(pos, data); err != nil {
		return fmt.Errorf("saving cube %s: %w", pos, err)
	}
	return nil
}

// Writer stores columns in a cube-split save.
type Writer struct {
	*saves
}

var _ codec.Writer[codec.CubicColumn] = (*Writer)(nil)

// NewWriter returns a writer into the save at root.
func NewWriter(root string, opts region.SaveOptions, logger *zap.Logger) *Writer {
	return &Writer{saves: newSaves(root, opts, logger)}
}

// Accept stores the column entry and every cube of c. Nil cubes are deleted.
func (w *Writer) Accept(_ context.Context, c codec.CubicColumn) error {
	save, err := w.get(c.Dim)
	if err != nil {
		return err
	}
	if err := putColumn(save, c.Pos, c.Column); err != nil {
		return err
	}
	for y, data := range c.Cubes {
		if err := putCube(save, c.Pos.Cube(y), data); err != nil {
			return err
		}
	}
	return nil
}

const priorityStripes = 64

type priorityKey struct {
	dir string
	pos geom.Vec3
}

// PriorityWriter stores priority-tagged cubes. Per position it keeps the
// payload with the highest priority seen so far; on a tie the later write
// wins.
type PriorityWriter struct {
	*saves

	seed    maphash.Seed
	stripes [priorityStripes]sync.Mutex
	mu      sync.Mutex
	stored  map[priorityKey]int64
}

var _ codec.Writer[codec.PriorityColumn] = (*PriorityWriter)(nil)

// NewPriorityWriter returns a priority writer into the save at root.
func NewPriorityWriter(root string, opts region.SaveOptions, logger *zap.Logger) *PriorityWriter {
	return &PriorityWriter{
		saves:  newSaves(root, opts, logger),
		seed:   maphash.MakeSeed(),
		stored: make(map[priorityKey]int64),
	}
}

func (w *PriorityWriter) stripe(k priorityKey) *sync.Mutex {
	var h maphash.Hash
	h.SetSeed(w.seed)
	fmt.Fprintf(&h, "%s/%d/%d/%d", k.dir, k.pos.X, k.pos.Y, k.pos.Z)
	return &w.stripes[h.Sum64()%priorityStripes]
}

// Priority returns the stored priority at pos in dim.
func (w *PriorityWriter) Priority(dim codec.Dimension, pos geom.Vec3) (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.stored[priorityKey{dir: dim.Directory, pos: pos}]
	return p, ok
}

// Accept stores c's column entry and each cube whose priority is not lower
// than the one already stored at its position.
func (w *PriorityWriter) Accept(_ context.Context, c codec.PriorityColumn) error {
	save, err := w.get(c.Dim)
	if err != nil {
		return err
	}
	if err := putColumn(save, c.Pos, c.Column); err != nil {
		return err
	}
	for y, cube := range c.Cubes {
		if err := w.putPriority(save, c.Dim, c.Pos.Cube(y), cube); err != nil {
			return err
		}
	}
	return nil
}

// putPriority holds the position's stripe across the check and the write so
// two outputs for one position cannot interleave.
func (w *PriorityWriter) putPriority(save *region.Save, dim codec.Dimension, pos geom.Vec3, cube codec.PriorityCube) error {
	k := priorityKey{dir: dim.Directory, pos: pos}
	lock := w.stripe(k)
	lock.Lock()
	defer lock.Unlock()

	w.mu.Lock()
	stored, ok := w.stored[k]
	w.mu.Unlock()
	if ok && cube.Priority < stored {
		return nil
	}
	if err := putCube(save, pos, cube.Data); err != nil {
		return err
	}
	w.mu.Lock()
	w.stored[k] = cube.Priority
	w.mu.Unlock()
	return nil
}

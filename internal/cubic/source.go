// Package cubic holds the plugins for cube-split saves and the vanilla Anvil
// reader feeding them: readers, writers, and the converters between their
// units, plus the registry that wires them.
package cubic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/codec"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/edittask"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/region"
)

// ReaderOptions configures the readers.
type ReaderOptions struct {
	Dimensions *codec.Dimensions
	// RegionFilter restricts counting to 3D regions intersecting these boxes,
	// given in region coordinates. Nil reads every region.
	RegionFilter []geom.BoundingBox
	Save         region.SaveOptions
	Logger       *zap.Logger
}

func (o ReaderOptions) withDefaults() ReaderOptions {
	if o.Dimensions == nil {
		o.Dimensions = codec.DefaultDimensions()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	o.Save.Write = false
	return o
}

// TaskRegionFilter returns the 3D region boxes touched by any source or
// destination box of tasks.
func TaskRegionFilter(tasks []edittask.Task) []geom.BoundingBox {
	extent := region.Cube.Extent()
	var out []geom.BoundingBox
	for _, t := range tasks {
		for _, b := range t.SrcBoxes() {
			out = append(out, b.RegionCoords(extent))
		}
		for _, b := range t.DstBoxes() {
			out = append(out, b.RegionCoords(extent))
		}
	}
	return out
}

// columnWork is one 2D position of the worklist and the cube heights found there.
type columnWork struct {
	pos codec.ColumnPos
	ys  []int
}

// dimensionWork is the worklist of one dimension in discovery order.
type dimensionWork struct {
	dim     codec.Dimension
	saves   []*region.Save
	anvil   *region.Section
	columns []columnWork
}

// sources is the shared machinery of the readers: one or more source roots
// scanned in order, a worklist handed from counting to loading exactly once,
// and a stop signal.
type sources struct {
	roots  []string
	opts   ReaderOptions
	logger *zap.Logger

	mu       sync.Mutex
	saves    []*region.Save
	sections []*region.Section

	worklist    chan []dimensionWork
	publishOnce sync.Once
	stop        chan struct{}
	stopOnce    sync.Once
}

func newSources(opts ReaderOptions, roots ...string) *sources {
	opts = opts.withDefaults()
	return &sources{
		roots:    roots,
		opts:     opts,
		logger:   opts.Logger,
		worklist: make(chan []dimensionWork, 1),
		stop:     make(chan struct{}),
	}
}

func (s *sources) publish(wl []dimensionWork) {
	s.publishOnce.Do(func() { s.worklist <- wl })
}

func (s *sources) inFilter(key region.RegionKey) bool {
	if s.opts.RegionFilter == nil {
		return true
	}
	return geom.AnyContains(s.opts.RegionFilter, geom.V(key.X, key.Y, key.Z))
}

// openDimension opens the saves of dim under every root that has one. The
// returned slice is parallel to roots, with nil for roots lacking the dimension.
func (s *sources) openDimension(dim codec.Dimension) ([]*region.Save, error) {
	saves := make([]*region.Save, len(s.roots))
	found := false
	for i, root := range s.roots {
		dir := dim.Path(root)
		if _, err := os.Stat(filepath.Join(dir, region.CubeDir)); errors.Is(err, os.ErrNotExist) {
			continue
		}
		save, err := region.OpenSave(dir, s.opts.Save)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.saves = append(s.saves, save)
		s.mu.Unlock()
		saves[i] = save
		found = true
	}
	if !found {
		return nil, nil
	}
	return saves, nil
}

// count scans every dimension and builds the worklist, calling inc once per
// new 2D position. Keys already found in an earlier root are not counted
// again. A canceled or failed scan publishes no worklist.
func (s *sources) count(ctx context.Context, inc func()) (err error) {
	var wl []dimensionWork
	defer func() {
		if err != nil {
			s.publish(nil)
			return
		}
		s.publish(wl)
	}()
	for _, dim := range s.opts.Dimensions.All() {
		saves, err := s.openDimension(dim)
		if err != nil {
			return err
		}
		if saves == nil {
			continue
		}
		index := make(map[codec.ColumnPos]int)
		work := dimensionWork{dim: dim, saves: saves}
		seen := make(map[geom.Vec3]bool)
		for _, save := range saves {
			if save == nil {
				continue
			}
			err := save.Cubes.ForEachRegion(func(key region.RegionKey) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if !s.inFilter(key) {
					return nil
				}
				return save.Cubes.ForEachKeyIn(key, func(p geom.Vec3) error {
					if seen[p] {
						return nil
					}
					seen[p] = true
					cp := codec.ColumnOf(p)
					i, ok := index[cp]
					if !ok {
						i = len(work.columns)
						index[cp] = i
						work.columns = append(work.columns, columnWork{pos: cp})
						inc()
					}
					work.columns[i].ys = append(work.columns[i].ys, p.Y)
					return nil
				})
			})
			if err != nil {
				return fmt.Errorf("counting %s: %w", dim, err)
			}
		}
		for i := range work.columns {
			slices.Sort(work.columns[i].ys)
		}
		s.logger.Debug("counted dimension", zap.Stringer("dimension", dim), zap.Int("columns", len(work.columns)))
		wl = append(wl, work)
	}
	return ctx.Err()
}

// load waits for the worklist and calls fn for every column in it until the
// worklist is exhausted, ctx is canceled, or Stop is called. Failures of fn
// go to onError and a stopping decision ends loading. Errors returned by the
// consumer, wrapped in consumeError by fn, end loading and are returned.
func (s *sources) load(ctx context.Context, onError codec.ErrorHandler, fn func(dimensionWork, columnWork) error) error {
	var wl []dimensionWork
	select {
	case wl = <-s.worklist:
	case <-ctx.Done():
		return nil
	case <-s.stop:
		return nil
	}
	for _, dw := range wl {
		for _, cw := range dw.columns {
			select {
			case <-ctx.Done():
				return nil
			case <-s.stop:
				return nil
			default:
			}
			err := fn(dw, cw)
			if err == nil {
				continue
			}
			var ce *consumeError
			if errors.As(err, &ce) {
				return ce.err
			}
			if onError(ctx, err).Stops() {
				return nil
			}
		}
	}
	return nil
}

// Stop makes loading return promptly.
func (s *sources) Stop() { s.stopOnce.Do(func() { close(s.stop) }) }

// Close closes every save opened while counting.
func (s *sources) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	for _, save := range s.saves {
		err = multierr.Append(err, save.Close())
	}
	for _, sec := range s.sections {
		err = multierr.Append(err, sec.Close())
	}
	s.saves, s.sections = nil, nil
	return err
}

// loadCubes reads the cubes at ys of pos from sec.
func loadCubes(sec *region.Section, pos codec.ColumnPos, ys []int) (map[int][]byte, error) {
	cubes := make(map[int][]byte, len(ys))
	for _, y := range ys {
		data, ok, err := sec.Load(pos.Cube(y))
		if err != nil {
			return nil, fmt.Errorf("loading cube %s: %w", pos.Cube(y), err)
		}
		if ok {
			cubes[y] = data
		}
	}
	return cubes, nil
}

// consumeError distinguishes the consumer's errors from per-column failures.
type consumeError struct{ err error }

func (e *consumeError) Error() string { return e.err.Error() }
func (e *consumeError) Unwrap() error { return e.err }

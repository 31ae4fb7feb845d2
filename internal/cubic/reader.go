package cubic

import (
	"context"
	"fmt"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/codec"
)

// Reader reads the columns of one cube-split save.
type Reader struct {
	*sources
}

var _ codec.Reader[codec.CubicColumn] = (*Reader)(nil)

// NewReader returns a reader of the save at root.
func NewReader(root string, opts ReaderOptions) *Reader {
	return &Reader{sources: newSources(opts, root)}
}

// CountUnits scans the save and counts one unit per 2D position.
func (r *Reader) CountUnits(ctx context.Context, inc func()) error {
	return r.count(ctx, inc)
}

// LoadUnits reads every counted column with its cubes.
func (r *Reader) LoadUnits(ctx context.Context, consume func(codec.CubicColumn) error, onError codec.ErrorHandler) error {
	return r.load(ctx, onError, func(dw dimensionWork, cw columnWork) error {
		save := dw.saves[0]
		column, _, err := save.Columns.Load(cw.pos.Vec())
		if err != nil {
			return fmt.Errorf("loading column %s in %s: %w", cw.pos, dw.dim, err)
		}
		cubes, err := loadCubes(save.Cubes, cw.pos, cw.ys)
		if err != nil {
			return fmt.Errorf("%s: %w", dw.dim, err)
		}
		if len(cubes) != len(cw.ys) {
			return fmt.Errorf("column %s in %s: %d of %d cubes vanished since counting", cw.pos, dw.dim, len(cw.ys)-len(cubes), len(cw.ys))
		}
		if err := consume(codec.CubicColumn{Dim: dw.dim, Pos: cw.pos, Column: column, Cubes: cubes}); err != nil {
			return &consumeError{err: err}
		}
		return nil
	})
}

// DualSourceReader reads a priority save and a fallback save side by side.
// Positions present in either save are counted once.
type DualSourceReader struct {
	*sources
}

var _ codec.Reader[codec.DualSourceColumn] = (*DualSourceReader)(nil)

// NewDualSourceReader returns a reader of the saves at priority and fallback.
func NewDualSourceReader(priority, fallback string, opts ReaderOptions) *DualSourceReader {
	return &DualSourceReader{sources: newSources(opts, priority, fallback)}
}

// CountUnits scans both saves, the priority save first.
func (r *DualSourceReader) CountUnits(ctx context.Context, inc func()) error {
	return r.count(ctx, inc)
}

// LoadUnits reads every counted column from both saves. The column entry is
// taken from the priority save when it has one.
func (r *DualSourceReader) LoadUnits(ctx context.Context, consume func(codec.DualSourceColumn) error, onError codec.ErrorHandler) error {
	return r.load(ctx, onError, func(dw dimensionWork, cw columnWork) error {
		unit := codec.DualSourceColumn{
			Dim:      dw.dim,
			Pos:      cw.pos,
			Priority: map[int][]byte{},
			Fallback: map[int][]byte{},
		}
		prio, fallback := dw.saves[0], dw.saves[1]
		if prio != nil {
			column, ok, err := prio.Columns.Load(cw.pos.Vec())
			if err != nil {
				return fmt.Errorf("loading priority column %s in %s: %w", cw.pos, dw.dim, err)
			}
			if ok {
				unit.Column = column
			}
			if unit.Priority, err = loadCubes(prio.Cubes, cw.pos, cw.ys); err != nil {
				return fmt.Errorf("priority %s: %w", dw.dim, err)
			}
		}
		if fallback != nil {
			if unit.Column == nil {
				column, _, err := fallback.Columns.Load(cw.pos.Vec())
				if err != nil {
					return fmt.Errorf("loading fallback column %s in %s: %w", cw.pos, dw.dim, err)
				}
				unit.Column = column
			}
			var err error
			if unit.Fallback, err = loadCubes(fallback.Cubes, cw.pos, cw.ys); err != nil {
				return fmt.Errorf("fallback %s: %w", dw.dim, err)
			}
		}
		for _, y := range cw.ys {
			_, inPrio := unit.Priority[y]
			_, inFallback := unit.Fallback[y]
			if !inPrio && !inFallback {
				return fmt.Errorf("cube %s in %s is in neither source", cw.pos.Cube(y), dw.dim)
			}
		}
		if err := consume(unit); err != nil {
			return &consumeError{err: err}
		}
		return nil
	})
}

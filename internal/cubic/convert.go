package cubic

import (
	"cmp"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/codec"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/edittask"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/nbt"
)

// PassThrough returns every column unchanged.
var PassThrough = codec.ConverterFunc[codec.CubicColumn, codec.CubicColumn](func(c codec.CubicColumn) ([]codec.CubicColumn, error) {
	return []codec.CubicColumn{c}, nil
})

// Relocating applies edit tasks to every cube of a column. The resulting cubes
// are grouped into columns by destination and tagged with the priority of the
// last task that touched them.
type Relocating struct {
	tasks  []edittask.Task
	cfg    edittask.Config
	logger *zap.Logger
}

var _ codec.Converter[codec.CubicColumn, codec.PriorityColumn] = (*Relocating)(nil)

// NewRelocating returns a converter running tasks with the initial config cfg.
func NewRelocating(tasks []edittask.Task, cfg edittask.Config, logger *zap.Logger) *Relocating {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relocating{tasks: tasks, cfg: cfg, logger: logger}
}

func readsAt(tasks []edittask.Task, pos geom.Vec3) bool {
	for _, t := range tasks {
		if t.ReadsData() && geom.AnyContains(t.SrcBoxes(), pos) {
			return true
		}
	}
	return false
}

// Convert relocates the cubes of in.
//
// Postcondition: the first output is at in.Pos and carries in.Column; cubes
// no reading task covers are kept there byte for byte with priority 0.
func (r *Relocating) Convert(in codec.CubicColumn) ([]codec.PriorityColumn, error) {
	tasks := edittask.ForDimension(r.tasks, in.Dim.Directory)
	home := codec.PriorityColumn{Dim: in.Dim, Pos: in.Pos, Column: in.Column, Cubes: map[int]codec.PriorityCube{}}
	others := map[codec.ColumnPos]*codec.PriorityColumn{}
	emit := func(out edittask.Output) error {
		cube := codec.PriorityCube{Priority: out.Priority}
		if out.Cube != nil {
			data, err := nbt.Write(nbt.FamilyCubic, out.Cube)
			if err != nil {
				return fmt.Errorf("encoding cube %s: %w", out.Pos, err)
			}
			cube.Data = data
		}
		cp := codec.ColumnOf(out.Pos)
		if cp == in.Pos {
			keepHigher(home.Cubes, out.Pos.Y, cube)
			return nil
		}
		col, ok := others[cp]
		if !ok {
			col = &codec.PriorityColumn{Dim: in.Dim, Pos: cp, Cubes: map[int]codec.PriorityCube{}}
			others[cp] = col
		}
		keepHigher(col.Cubes, out.Pos.Y, cube)
		return nil
	}

	ys := make([]int, 0, len(in.Cubes))
	for y := range in.Cubes {
		ys = append(ys, y)
	}
	slices.Sort(ys)

	for _, y := range ys {
		pos := in.Pos.Cube(y)
		data := in.Cubes[y]
		if !readsAt(tasks, pos) {
			keepHigher(home.Cubes, y, codec.PriorityCube{Data: data})
			continue
		}
		cube, err := nbt.Read(nbt.FamilyCubic, data)
		if err != nil {
			return nil, fmt.Errorf("decoding cube %s in %s: %w", pos, in.Dim, err)
		}
		for _, out := range edittask.Relocate(tasks, pos, 0, cube, r.cfg, r.logger) {
			if err := emit(out); err != nil {
				return nil, err
			}
		}
	}

	for _, y := range r.missing(tasks, in) {
		pos := in.Pos.Cube(y)
		for _, out := range edittask.Relocate(tasks, pos, 0, edittask.EmptyCube(pos), r.cfg, r.logger) {
			if err := emit(out); err != nil {
				return nil, err
			}
		}
	}

	outs := make([]codec.PriorityColumn, 0, 1+len(others))
	outs = append(outs, home)
	rest := make([]codec.PriorityColumn, 0, len(others))
	for _, col := range others {
		rest = append(rest, *col)
	}
	slices.SortFunc(rest, func(a, b codec.PriorityColumn) int {
		return cmp.Or(cmp.Compare(a.Pos.X, b.Pos.X), cmp.Compare(a.Pos.Z, b.Pos.Z))
	})
	return append(outs, rest...), nil
}

// keepHigher stores cube at y unless a higher priority cube is already there.
func keepHigher(cubes map[int]codec.PriorityCube, y int, cube codec.PriorityCube) {
	if old, ok := cubes[y]; ok && old.Priority > cube.Priority {
		return
	}
	cubes[y] = cube
}

// missing lists the heights of in's column that tasks creating missing cubes
// cover but the source lacks.
func (r *Relocating) missing(tasks []edittask.Task, in codec.CubicColumn) []int {
	seen := map[int]bool{}
	var ys []int
	for _, t := range tasks {
		if !t.CreatesMissing() {
			continue
		}
		for _, b := range t.DstBoxes() {
			if in.Pos.X < b.Min.X || in.Pos.X > b.Max.X || in.Pos.Z < b.Min.Z || in.Pos.Z > b.Max.Z {
				continue
			}
			for y := b.Min.Y; y <= b.Max.Y; y++ {
				if _, ok := in.Cubes[y]; ok || seen[y] {
					continue
				}
				seen[y] = true
				ys = append(ys, y)
			}
		}
	}
	slices.Sort(ys)
	return ys
}

// Merging combines a priority and a fallback save. Each cube comes from the
// priority save when it has one, else from the fallback. Only cubes inside
// some task's source boxes are kept; with no tasks every cube is kept.
type Merging struct {
	tasks []edittask.Task
}

var _ codec.Converter[codec.DualSourceColumn, codec.CubicColumn] = (*Merging)(nil)

// NewMerging returns a merging converter restricted to tasks' source boxes.
func NewMerging(tasks []edittask.Task) *Merging { return &Merging{tasks: tasks} }

func (m *Merging) covers(tasks []edittask.Task, pos geom.Vec3) bool {
	if len(m.tasks) == 0 {
		return true
	}
	for _, t := range tasks {
		if geom.AnyContains(t.SrcBoxes(), pos) {
			return true
		}
	}
	return false
}

// Convert merges one column.
func (m *Merging) Convert(in codec.DualSourceColumn) ([]codec.CubicColumn, error) {
	tasks := edittask.ForDimension(m.tasks, in.Dim.Directory)
	out := codec.CubicColumn{Dim: in.Dim, Pos: in.Pos, Column: in.Column, Cubes: map[int][]byte{}}
	pick := func(y int, data []byte) {
		if _, done := out.Cubes[y]; done || !m.covers(tasks, in.Pos.Cube(y)) {
			return
		}
		out.Cubes[y] = data
	}
	for y, data := range in.Priority {
		pick(y, data)
	}
	for y, data := range in.Fallback {
		pick(y, data)
	}
	return []codec.CubicColumn{out}, nil
}

package edittask

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/nbt"
)

// Apply runs t on the cube at pos. The cube is owned by Apply and may be
// mutated or returned in an output. Every output carries priority+1.
//
// Precondition: t.ReadsData() and pos lies in one of t.SrcBoxes().
// Postcondition: on error the cube is left in an unspecified state.
func (t Task) Apply(pos geom.Vec3, priority int64, cube nbt.Compound, cfg Config) ([]Output, error) {
	next := priority + 1
	level, err := levelOf(cube)
	if err != nil {
		return nil, err
	}
	switch t.Kind {
	case KindCut:
		return t.applyCut(pos, next, cube, level, cfg)
	case KindCopy:
		return t.applyCopy(pos, next, cube, cfg), nil
	case KindMove:
		off := *t.Offset
		if off.IsZero() {
			return []Output{{Pos: pos, Priority: next, Cube: cube}}, nil
		}
		dst := pos.Add(off)
		translateCube(level, dst, off, cfg.RelightDst, false)
		out := []Output{{Pos: dst, Priority: next, Cube: cube}}
		if !t.Box.Translate(off).Contains(pos) {
			out = append(out, Output{Pos: pos, Priority: next})
		}
		return out, nil
	case KindRemove:
		return []Output{{Pos: pos, Priority: next}}, nil
	case KindSet:
		return t.applySet(pos, next, cube, level, cfg)
	case KindReplace:
		return t.applyReplace(pos, next, cube, level, cfg)
	case KindRotate:
		return t.applyRotate(pos, next, cube, level, cfg)
	case KindSchematic:
		return t.applySchematic(pos, next, cube, level, cfg)
	case KindRetrack:
		markRetrack(level)
		return []Output{{Pos: pos, Priority: next, Cube: cube}}, nil
	case KindKeep, KindConfig:
		return []Output{{Pos: pos, Priority: priority, Cube: cube}}, nil
	}
	return nil, fmt.Errorf("edittask: unknown task kind %s", t.Kind)
}

func (t Task) applyCut(pos geom.Vec3, next int64, cube, level nbt.Compound, cfg Config) ([]Output, error) {
	var out []Output
	if t.Offset == nil || !t.Box.Translate(*t.Offset).Contains(pos) {
		cleared := cube.Clone()
		lvl, _ := cleared.Compound("Level")
		if err := clearCube(lvl, cfg.RelightSrc); err != nil {
			return nil, err
		}
		out = append(out, Output{Pos: pos, Priority: next, Cube: cleared})
	}
	if t.Offset != nil {
		dst := pos.Add(*t.Offset)
		translateCube(level, dst, *t.Offset, cfg.RelightDst, false)
		out = append(out, Output{Pos: dst, Priority: next, Cube: cube})
	}
	return out, nil
}

func (t Task) applyCopy(pos geom.Vec3, next int64, cube nbt.Compound, cfg Config) []Output {
	off := *t.Offset
	dst := pos.Add(off)
	var out []Output
	if !t.Box.Translate(off).Contains(pos) {
		out = append(out, Output{Pos: pos, Priority: next, Cube: cube.Clone()})
	}
	level, _ := cube.Compound("Level")
	translateCube(level, dst, off, cfg.RelightDst, true)
	return append(out, Output{Pos: dst, Priority: next, Cube: cube})
}

func (t Task) applySet(pos geom.Vec3, next int64, cube, level nbt.Compound, cfg Config) ([]Output, error) {
	sec, err := firstSection(level)
	if err != nil {
		return nil, err
	}
	blocks, _ := sec.ByteArray("Blocks")
	data, _ := sec.ByteArray("Data")
	for i := range blocks {
		blocks[i] = byte(t.OutID)
	}
	for i := range data {
		data[i] = byte(t.OutMeta | t.OutMeta<<4)
	}
	sec.Remove("Add")
	if cfg.RelightDst {
		markLightUpdates(level)
	}
	markPopulated(level)
	return []Output{{Pos: pos, Priority: next, Cube: cube}}, nil
}

func (t Task) applyReplace(pos geom.Vec3, next int64, cube, level nbt.Compound, cfg Config) ([]Output, error) {
	sec, err := firstSection(level)
	if err != nil {
		return nil, err
	}
	blocks, _ := sec.ByteArray("Blocks")
	data, _ := sec.ByteArray("Data")
	add, hasAdd := sec.ByteArray("Add")
	hasAdd = hasAdd && len(add) == nibbleLen
	for i, id := range blocks {
		if int(id) != t.InID || (hasAdd && nibble(add, i) != 0) {
			continue
		}
		if t.InMeta != AnyMeta && nibble(data, i) != t.InMeta {
			continue
		}
		blocks[i] = byte(t.OutID)
		setNibble(data, i, t.OutMeta)
	}
	if cfg.RelightDst {
		markLightUpdates(level)
	}
	markPopulated(level)
	return []Output{{Pos: pos, Priority: next, Cube: cube}}, nil
}

func (t Task) applyRotate(pos geom.Vec3, next int64, cube, level nbt.Compound, cfg Config) ([]Output, error) {
	sec, err := firstSection(level)
	if err != nil {
		return nil, err
	}
	rotateSection(sec, t.steps())
	dst := t.rotate(pos)
	translateCube(level, dst, dst.Sub(pos), cfg.RelightDst, false)
	return []Output{{Pos: dst, Priority: next, Cube: cube}}, nil
}

func (t Task) applySchematic(pos geom.Vec3, next int64, cube, level nbt.Compound, cfg Config) ([]Output, error) {
	sections, ok := level.List("Sections")
	if !ok || sections.Len() == 0 {
		level.Put("Sections", nbt.NewList(nbt.TagCompound, EmptySection()))
	}
	sec, err := firstSection(level)
	if err != nil {
		return nil, err
	}
	blocks, _ := sec.ByteArray("Blocks")
	meta, _ := sec.ByteArray("Data")
	add, _ := sec.ByteArray("Add")
	s := t.Schematic
	base := pos.Scale(16)
	for i := 0; i < cubeVolume; i++ {
		world := geom.V(base.X+(i&15), base.Y+(i>>8&15), base.Z+(i>>4&15))
		p := t.inverse.Apply(world)
		if !s.InBounds(p.X, p.Y, p.Z) {
			continue
		}
		idx := s.Index(p.X, p.Y, p.Z)
		id := s.ID(idx)
		high := s.IDHigh(idx)
		if t.SkipAir && id == 0 && high == 0 {
			continue
		}
		blocks[i] = byte(id)
		setNibble(meta, i, s.Meta(idx))
		if high != 0 && len(add) != nibbleLen {
			add = make(nbt.ByteArray, nibbleLen)
			sec.Put("Add", nbt.ByteArray(add))
		}
		if len(add) == nibbleLen {
			setNibble(add, i, high)
		}
	}
	if cfg.RelightDst {
		markLightUpdates(level)
	}
	markPopulated(level)
	return []Output{{Pos: pos, Priority: next, Cube: cube}}, nil
}

// Relocate applies tasks in order to the cube at pos and returns every cube
// the chain produced.
//
// A task runs only if one of its source boxes contains the current position of
// the cube being carried. Its outputs at that position are carried on to the
// following tasks; outputs elsewhere are final. A deletion ends the chain.
// A cube no task touches is returned unchanged with its priority.
//
// Config tasks update cfg for the tasks after them. Malformed cubes are logged
// and produce no outputs.
func Relocate(tasks []Task, pos geom.Vec3, priority int64, cube nbt.Compound, cfg Config, logger *zap.Logger) []Output {
	if logger == nil {
		logger = zap.NewNop()
	}
	carried := Output{Pos: pos, Priority: priority, Cube: cube}
	var final []Output
	for _, t := range tasks {
		if t.Kind == KindConfig {
			cfg.apply(t)
			continue
		}
		if !t.ReadsData() || !geom.AnyContains(t.SrcBoxes(), carried.Pos) {
			continue
		}
		outs, err := t.Apply(carried.Pos, carried.Priority, carried.Cube, cfg)
		if err != nil {
			fields := []zap.Field{
				zap.Int("x", carried.Pos.X),
				zap.Int("y", carried.Pos.Y),
				zap.Int("z", carried.Pos.Z),
				zap.Stringer("task", t),
				zap.Error(err),
			}
			if errors.Is(err, ErrMalformedCube) {
				logger.Warn("skipping malformed cube", fields...)
			} else {
				logger.Error("edit task failed", fields...)
			}
			return final
		}
		var next *Output
		for i := range outs {
			if outs[i].Pos == carried.Pos && next == nil {
				next = &outs[i]
				continue
			}
			final = append(final, outs[i])
		}
		if next == nil {
			return final
		}
		carried = *next
		if carried.Cube == nil {
			return append(final, carried)
		}
	}
	return append(final, carried)
}

// ForDimension returns the tasks that apply in dimension directory dir.
func ForDimension(tasks []Task, dir string) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.HandlesDimension(dir) {
			out = append(out, t)
		}
	}
	return out
}

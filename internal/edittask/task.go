// Package edittask implements the spatial edits applied to cubes while a save
// is converted, and the relocation step that chains them per cube.
package edittask

import (
	"errors"
	"fmt"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/nbt"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/schematic"
)

// Kind identifies the behavior of a Task.
type Kind int

const (
	KindKeep Kind = iota
	KindCut
	KindCopy
	KindMove
	KindRemove
	KindSet
	KindReplace
	KindRotate
	KindSchematic
	KindRetrack
	KindConfig
)

var kindNames = [...]string{
	KindKeep:      "keep",
	KindCut:       "cut",
	KindCopy:      "copy",
	KindMove:      "move",
	KindRemove:    "remove",
	KindSet:       "set",
	KindReplace:   "replace",
	KindRotate:    "rotate",
	KindSchematic: "schematic",
	KindRetrack:   "retrack",
	KindConfig:    "config",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// AnyMeta matches every metadata value in a replace.
const AnyMeta = -1

var (
	// ErrInvalidTask is returned by constructors for out-of-range arguments.
	ErrInvalidTask = errors.New("edittask: invalid task")
)

// Task is one edit. Only the fields relevant to Kind are set.
type Task struct {
	Kind Kind
	Box  geom.BoundingBox

	// Offset is the cube translation of cut, copy and move. Cut may leave it nil.
	Offset *geom.Vec3

	// Block ids and metas for set and replace. InMeta may be AnyMeta.
	InID, InMeta   int
	OutID, OutMeta int

	// Rotation about Origin (cube coordinates) by Degrees, a multiple of 90.
	Origin  geom.Vec3
	Degrees int

	Schematic *schematic.Schematic
	Transform geom.Matrix4
	SkipAir   bool
	// Dimension restricts a schematic paste to one dimension directory.
	Dimension string

	// Config toggles. Nil leaves the setting unchanged.
	RelightSrc, RelightDst *bool

	inverse geom.Matrix4
	area    geom.BoundingBox
}

// Keep marks box as retained without reading it.
func Keep(box geom.BoundingBox) Task { return Task{Kind: KindKeep, Box: box} }

// Cut clears box and, if offset is non-nil, moves its contents by offset.
func Cut(box geom.BoundingBox, offset *geom.Vec3) Task {
	return Task{Kind: KindCut, Box: box, Offset: vecPtr(offset)}
}

// Copy duplicates box at box+offset.
func Copy(box geom.BoundingBox, offset geom.Vec3) Task {
	return Task{Kind: KindCopy, Box: box, Offset: &offset}
}

// Move relocates box by offset and deletes the vacated cubes.
func Move(box geom.BoundingBox, offset geom.Vec3) Task {
	return Task{Kind: KindMove, Box: box, Offset: &offset}
}

// Remove deletes every cube in box.
func Remove(box geom.BoundingBox) Task { return Task{Kind: KindRemove, Box: box} }

// Retrack marks every cube in box for surface re-tracking.
func Retrack(box geom.BoundingBox) Task { return Task{Kind: KindRetrack, Box: box} }

// Set fills box with one block.
func Set(box geom.BoundingBox, id, meta int) (Task, error) {
	if err := checkBlock(id, meta); err != nil {
		return Task{}, err
	}
	return Task{Kind: KindSet, Box: box, OutID: id, OutMeta: meta}, nil
}

// Replace swaps every (inID, inMeta) voxel in box for (outID, outMeta).
func Replace(box geom.BoundingBox, inID, inMeta, outID, outMeta int) (Task, error) {
	if inMeta == AnyMeta {
		if err := checkBlock(inID, 0); err != nil {
			return Task{}, err
		}
	} else if err := checkBlock(inID, inMeta); err != nil {
		return Task{}, err
	}
	if err := checkBlock(outID, outMeta); err != nil {
		return Task{}, err
	}
	return Task{Kind: KindReplace, Box: box, InID: inID, InMeta: inMeta, OutID: outID, OutMeta: outMeta}, nil
}

// Rotate turns box about origin by degrees around the vertical axis.
//
// Precondition: degrees is a positive multiple of 90.
func Rotate(box geom.BoundingBox, origin geom.Vec3, degrees int) (Task, error) {
	if degrees <= 0 || degrees%90 != 0 {
		return Task{}, fmt.Errorf("%w: rotation of %d degrees is not a positive multiple of 90", ErrInvalidTask, degrees)
	}
	return Task{Kind: KindRotate, Box: box, Origin: origin, Degrees: degrees % 360}, nil
}

// Paste places a schematic in dimension dir. The transform maps schematic
// block coordinates to world block coordinates.
func Paste(s *schematic.Schematic, transform geom.Matrix4, skipAir bool, dir string) (Task, error) {
	if s == nil {
		return Task{}, fmt.Errorf("%w: nil schematic", ErrInvalidTask)
	}
	inv, err := transform.Inverse()
	if err != nil {
		return Task{}, fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}
	t := Task{Kind: KindSchematic, Schematic: s, Transform: transform, SkipAir: skipAir, Dimension: dir, inverse: inv}
	t.area = pasteArea(s, transform)
	t.Box = t.area
	return t, nil
}

// PasteAt places a schematic with its origin at block position at.
func PasteAt(s *schematic.Schematic, at geom.Vec3, skipAir bool, dir string) (Task, error) {
	return Paste(s, geom.Translation(at), skipAir, dir)
}

// ConfigTask changes relighting for the tasks after it.
func ConfigTask(relightSrc, relightDst *bool) Task {
	return Task{Kind: KindConfig, RelightSrc: relightSrc, RelightDst: relightDst}
}

func checkBlock(id, meta int) error {
	if id < 0 || id > 255 {
		return fmt.Errorf("%w: block id %d outside 0..255", ErrInvalidTask, id)
	}
	if meta < 0 || meta > 15 {
		return fmt.Errorf("%w: block meta %d outside 0..15", ErrInvalidTask, meta)
	}
	return nil
}

func vecPtr(v *geom.Vec3) *geom.Vec3 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// pasteArea is the cube box covering the transformed schematic volume.
func pasteArea(s *schematic.Schematic, m geom.Matrix4) geom.BoundingBox {
	size := s.Size()
	var lo, hi geom.Vec3
	for i := 0; i < 8; i++ {
		c := geom.V(0, 0, 0)
		if i&1 != 0 {
			c.X = size.X
		}
		if i&2 != 0 {
			c.Y = size.Y
		}
		if i&4 != 0 {
			c.Z = size.Z
		}
		p := m.Apply(c)
		if i == 0 {
			lo, hi = p, p
			continue
		}
		lo = geom.V(min(lo.X, p.X), min(lo.Y, p.Y), min(lo.Z, p.Z))
		hi = geom.V(max(hi.X, p.X), max(hi.Y, p.Y), max(hi.Z, p.Z))
	}
	return geom.NewBox(
		geom.V(lo.X>>4, lo.Y>>4, lo.Z>>4),
		geom.V((hi.X>>4)+1, (hi.Y>>4)+1, (hi.Z>>4)+1),
	)
}

// SrcBoxes returns the cube boxes the task reads.
func (t Task) SrcBoxes() []geom.BoundingBox {
	switch t.Kind {
	case KindConfig:
		return nil
	case KindSchematic:
		return []geom.BoundingBox{t.area}
	}
	return []geom.BoundingBox{t.Box}
}

// DstBoxes returns the cube boxes the task may write.
func (t Task) DstBoxes() []geom.BoundingBox {
	switch t.Kind {
	case KindConfig:
		return nil
	case KindCut:
		if t.Offset == nil {
			return []geom.BoundingBox{t.Box}
		}
		return []geom.BoundingBox{t.Box, t.Box.Translate(*t.Offset)}
	case KindCopy:
		return []geom.BoundingBox{t.Box.Translate(*t.Offset)}
	case KindMove:
		return []geom.BoundingBox{t.Box.Translate(*t.Offset), t.Box}
	case KindRotate:
		return []geom.BoundingBox{t.rotatedBox()}
	case KindSchematic:
		return []geom.BoundingBox{t.area}
	}
	return []geom.BoundingBox{t.Box}
}

// ReadsData reports whether Apply needs the cube payload.
func (t Task) ReadsData() bool { return t.Kind != KindKeep && t.Kind != KindConfig }

// HandlesDimension reports whether the task applies in dimension directory dir.
func (t Task) HandlesDimension(dir string) bool {
	return t.Kind != KindSchematic || t.Dimension == dir
}

// CreatesMissing reports whether cubes absent from the source are created
// before the task is applied to them.
func (t Task) CreatesMissing() bool { return t.Kind == KindSchematic }

// Inverse returns the tasks that restore every destination box of t from a
// backup of the world taken before t ran.
func (t Task) Inverse() []Task {
	dst := t.DstBoxes()
	out := make([]Task, 0, len(dst))
	for _, b := range dst {
		out = append(out, Move(b, geom.Vec3{}))
	}
	return out
}

// Invert returns the inverse of every task in order. Run against a backup
// taken before tasks ran, the result restores everything tasks wrote.
func Invert(tasks []Task) []Task {
	var out []Task
	for _, t := range tasks {
		out = append(out, t.Inverse()...)
	}
	return out
}

func (t Task) String() string {
	switch t.Kind {
	case KindConfig:
		return fmt.Sprintf("config(relightSrc=%s, relightDst=%s)", fmtBool(t.RelightSrc), fmtBool(t.RelightDst))
	case KindCut, KindCopy, KindMove:
		if t.Offset == nil {
			return fmt.Sprintf("%s %s", t.Kind, t.Box)
		}
		return fmt.Sprintf("%s %s by %s", t.Kind, t.Box, *t.Offset)
	case KindSet:
		return fmt.Sprintf("set %s %d:%d", t.Box, t.OutID, t.OutMeta)
	case KindReplace:
		return fmt.Sprintf("replace %s %d:%d with %d:%d", t.Box, t.InID, t.InMeta, t.OutID, t.OutMeta)
	case KindRotate:
		return fmt.Sprintf("rotate %s around %s by %d", t.Box, t.Origin, t.Degrees)
	case KindSchematic:
		return fmt.Sprintf("schematic %dx%dx%d into %s dim %q", t.Schematic.Width, t.Schematic.Height, t.Schematic.Length, t.area, t.Dimension)
	}
	return fmt.Sprintf("%s %s", t.Kind, t.Box)
}

func fmtBool(b *bool) string {
	if b == nil {
		return "unchanged"
	}
	return fmt.Sprint(*b)
}

// Config holds the relighting flags in effect while tasks run.
type Config struct {
	RelightSrc bool
	RelightDst bool
}

// DefaultConfig relights both the vacated and the written cubes.
func DefaultConfig() Config { return Config{RelightSrc: true, RelightDst: true} }

// apply folds a config task into c.
func (c *Config) apply(t Task) {
	if t.RelightSrc != nil {
		c.RelightSrc = *t.RelightSrc
	}
	if t.RelightDst != nil {
		c.RelightDst = *t.RelightDst
	}
}

// Output is one cube produced by a task. A nil Cube deletes the position.
type Output struct {
	Pos      geom.Vec3
	Priority int64
	Cube     nbt.Compound
}

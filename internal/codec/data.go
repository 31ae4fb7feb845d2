package codec

import (
	"fmt"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
)

// ColumnPos is a 2D column coordinate.
type ColumnPos struct {
	X, Z int
}

// Cube returns the position of the cube at height y inside the column.
func (p ColumnPos) Cube(y int) geom.Vec3 { return geom.V(p.X, y, p.Z) }

// Vec returns the column position as a Vec3 with Y zero.
func (p ColumnPos) Vec() geom.Vec3 { return geom.V(p.X, 0, p.Z) }

func (p ColumnPos) String() string { return fmt.Sprintf("(%d, %d)", p.X, p.Z) }

// ColumnOf returns the column holding the cube at pos.
func ColumnOf(pos geom.Vec3) ColumnPos { return ColumnPos{X: pos.X, Z: pos.Z} }

// AnvilColumn is one vanilla chunk as stored in an Anvil region file: the
// compression scheme byte followed by the compressed chunk document.
type AnvilColumn struct {
	Dim  Dimension
	Pos  ColumnPos
	Data []byte
}

// CubicColumn is one column of a cube-split save: the optional column entry
// and every cube stored above or below it, keyed by cube y. A nil cube payload
// is a deletion marker.
//
// Ownership passes to the receiver once a column is handed to a queue.
type CubicColumn struct {
	Dim    Dimension
	Pos    ColumnPos
	Column []byte
	Cubes  map[int][]byte
}

// PriorityCube is a cube payload tagged with the priority of the edit that
// produced it. Nil Data deletes the cube.
type PriorityCube struct {
	Priority int64
	Data     []byte
}

// PriorityColumn is a CubicColumn whose cubes carry priorities. The writer
// keeps, per cube position, the payload with the highest priority.
type PriorityColumn struct {
	Dim    Dimension
	Pos    ColumnPos
	Column []byte
	Cubes  map[int]PriorityCube
}

// DualSourceColumn holds one column as read from a priority save and a
// fallback save. The column entry comes from the priority save when present.
// Either cube map may lack a given y, but never both.
type DualSourceColumn struct {
	Dim      Dimension
	Pos      ColumnPos
	Column   []byte
	Priority map[int][]byte
	Fallback map[int][]byte
}

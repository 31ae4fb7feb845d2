// Package schematic loads legacy block schematics: a gzip-compressed tag
// document holding Width x Height x Length block ids and metadata.
package schematic

import (
	"errors"
	"fmt"
	"os"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/nbt"
)

var (
	// ErrUnsupported is returned for schematic features the loader does not handle.
	ErrUnsupported = errors.New("schematic: unsupported feature")
	// ErrInvalid is returned for structurally broken schematics.
	ErrInvalid = errors.New("schematic: invalid document")
)

// Schematic is a dense block volume. Index order is y, then z, then x.
type Schematic struct {
	Width, Height, Length int
	Blocks                []byte
	// AddBlocks holds the high nibble of each block id, two per byte. It may be nil.
	AddBlocks []byte
	Data      []byte
}

// Size returns the volume's extent as (Width, Height, Length).
func (s *Schematic) Size() geom.Vec3 { return geom.V(s.Width, s.Height, s.Length) }

// Index returns the array index of (x, y, z).
func (s *Schematic) Index(x, y, z int) int {
	return y*s.Width*s.Length + z*s.Width + x
}

// InBounds reports whether (x, y, z) lies inside the volume.
func (s *Schematic) InBounds(x, y, z int) bool {
	return x >= 0 && x < s.Width && y >= 0 && y < s.Height && z >= 0 && z < s.Length
}

// ID returns the low eight bits of the block id at index.
func (s *Schematic) ID(index int) int { return int(s.Blocks[index]) }

// IDHigh returns the high nibble of the block id at index, or 0.
func (s *Schematic) IDHigh(index int) int {
	i := index >> 1
	if i >= len(s.AddBlocks) {
		return 0
	}
	shift := (index&1 ^ 1) << 2
	return int(s.AddBlocks[i]>>shift) & 0xf
}

// Meta returns the metadata at index.
func (s *Schematic) Meta(index int) int { return int(s.Data[index]) & 0xf }

// Load reads and decodes the schematic file at path.
func Load(path string) (*Schematic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schematic %s: %w", path, err)
	}
	root, err := nbt.Read(nbt.FamilyCubic, data)
	if err != nil {
		return nil, fmt.Errorf("decoding schematic %s: %w", path, err)
	}
	s, err := FromTag(root)
	if err != nil {
		return nil, fmt.Errorf("schematic %s: %w", path, err)
	}
	return s, nil
}

// FromTag builds a schematic from its decoded root compound.
func FromTag(root nbt.Compound) (*Schematic, error) {
	if _, ok := root["Add"]; ok {
		return nil, fmt.Errorf("%w: legacy Add tag", ErrUnsupported)
	}
	if _, ok := root["SchematicaMapping"]; ok {
		return nil, fmt.Errorf("%w: id mappings", ErrUnsupported)
	}
	if _, ok := root["BlockIDs"]; ok {
		return nil, fmt.Errorf("%w: id mappings", ErrUnsupported)
	}
	w, okW := dimension(root, "Width")
	h, okH := dimension(root, "Height")
	l, okL := dimension(root, "Length")
	if !okW || !okH || !okL || w < 0 || h < 0 || l < 0 {
		return nil, fmt.Errorf("%w: missing or negative size", ErrInvalid)
	}
	blocks, _ := root.ByteArray("Blocks")
	data, _ := root.ByteArray("Data")
	add, _ := root.ByteArray("AddBlocks")
	n := w * h * l
	if len(blocks) != n || len(data) != n {
		return nil, fmt.Errorf("%w: %dx%dx%d needs %d blocks, have %d blocks and %d data",
			ErrInvalid, w, h, l, n, len(blocks), len(data))
	}
	return &Schematic{Width: w, Height: h, Length: l, Blocks: blocks, AddBlocks: add, Data: data}, nil
}

// dimension accepts both the short tags written by editors and plain ints.
func dimension(root nbt.Compound, name string) (int, bool) {
	if v, ok := root.Short(name); ok {
		return int(uint16(v)), true
	}
	if v, ok := root.Int(name); ok {
		return int(v), true
	}
	return 0, false
}

package edittask

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/nbt"
)

// ErrMalformedCube is returned when a cube document lacks a field an edit needs.
var ErrMalformedCube = errors.New("edittask: malformed cube")

const (
	cubeVolume = 16 * 16 * 16
	nibbleLen  = cubeVolume / 2
)

// levelOf returns the Level compound of a cube document.
func levelOf(cube nbt.Compound) (nbt.Compound, error) {
	level, ok := cube.Compound("Level")
	if !ok {
		return nil, fmt.Errorf("%w: no Level compound", ErrMalformedCube)
	}
	return level, nil
}

// firstSection returns the single block section of a cube with its Blocks and
// Data arrays validated.
func firstSection(level nbt.Compound) (nbt.Compound, error) {
	sections, ok := level.List("Sections")
	if !ok || sections.Len() == 0 {
		return nil, fmt.Errorf("%w: no Sections", ErrMalformedCube)
	}
	sec, ok := sections.Items[0].(nbt.Compound)
	if !ok {
		return nil, fmt.Errorf("%w: section is %s", ErrMalformedCube, sections.Items[0].Type())
	}
	if b, _ := sec.ByteArray("Blocks"); len(b) != cubeVolume {
		return nil, fmt.Errorf("%w: Blocks has %d entries", ErrMalformedCube, len(b))
	}
	if d, _ := sec.ByteArray("Data"); len(d) != nibbleLen {
		return nil, fmt.Errorf("%w: Data has %d entries", ErrMalformedCube, len(d))
	}
	return sec, nil
}

// cubePos reads the Level x/y/z fields.
func cubePos(level nbt.Compound) (geom.Vec3, bool) {
	x, okX := level.Int("x")
	y, okY := level.Int("y")
	z, okZ := level.Int("z")
	return geom.V(int(x), int(y), int(z)), okX && okY && okZ
}

func setCubePos(level nbt.Compound, p geom.Vec3) {
	level.Put("x", nbt.Int(p.X))
	level.Put("y", nbt.Int(p.Y))
	level.Put("z", nbt.Int(p.Z))
}

// markLightUpdates flags the cube so the game recomputes its lighting.
func markLightUpdates(level nbt.Compound) {
	level.Put("isSurfaceTracked", nbt.Byte(0))
	level.Put("initLightDone", nbt.Byte(0))
	info, ok := level.Compound("LightingInfo")
	if !ok {
		return
	}
	if hm, ok := info.IntArray("LastHeightMap"); ok {
		for i := range hm {
			hm[i] = math.MaxInt32
		}
	}
	info.Put("EdgeNeedSkyLightUpdate", nbt.Byte(1))
}

// markPopulated flags the cube so the game does not decorate it again.
// Both flags are set; the format cannot express partial population here.
func markPopulated(level nbt.Compound) {
	level.Put("populated", nbt.Byte(1))
	level.Put("fullyPopulated", nbt.Byte(1))
}

func markRetrack(level nbt.Compound) {
	level.Put("isSurfaceTracked", nbt.Byte(0))
}

func clearArray(sec nbt.Compound, name string) {
	if a, ok := sec.ByteArray(name); ok {
		clear(a)
	}
}

// clearCube zeroes every voxel and drops the cube's entities and ticks.
func clearCube(level nbt.Compound, relight bool) error {
	sec, err := firstSection(level)
	if err != nil {
		return err
	}
	sec.Remove("Add")
	for _, name := range []string{"Blocks", "Data", "BlockLight", "SkyLight"} {
		clearArray(sec, name)
	}
	if relight {
		markLightUpdates(level)
	}
	markPopulated(level)
	for _, name := range []string{"TileTicks", "Entities", "TileEntities"} {
		if _, ok := level[name]; ok {
			level.Put(name, nbt.NewList(nbt.TagCompound))
		}
	}
	return nil
}

// translateCube moves the cube document to dst, shifting its entities and
// tile entities by the block offset.
func translateCube(level nbt.Compound, dst, offset geom.Vec3, relight, freshUUIDs bool) {
	setCubePos(level, dst)
	if relight {
		markLightUpdates(level)
	}
	markPopulated(level)
	shiftEntities(level, offset.Scale(16), freshUUIDs)
}

func shiftEntities(level nbt.Compound, blocks geom.Vec3, freshUUIDs bool) {
	if tes, ok := level.List("TileEntities"); ok {
		for _, te := range tes.Compounds() {
			addInt(te, "x", blocks.X)
			addInt(te, "y", blocks.Y)
			addInt(te, "z", blocks.Z)
		}
	}
	if ticks, ok := level.List("TileTicks"); ok {
		for _, tt := range ticks.Compounds() {
			addInt(tt, "x", blocks.X)
			addInt(tt, "y", blocks.Y)
			addInt(tt, "z", blocks.Z)
		}
	}
	ents, ok := level.List("Entities")
	if !ok {
		return
	}
	for _, e := range ents.Compounds() {
		shiftEntity(e, blocks, freshUUIDs)
	}
}

func shiftEntity(e nbt.Compound, blocks geom.Vec3, freshUUIDs bool) {
	if pos, ok := e.List("Pos"); ok && pos.Len() == 3 {
		delta := [3]float64{float64(blocks.X), float64(blocks.Y), float64(blocks.Z)}
		for i, it := range pos.Items {
			if d, ok := it.(nbt.Double); ok {
				pos.Items[i] = d + nbt.Double(delta[i])
			}
		}
	}
	if freshUUIDs && e.Has("UUIDMost", nbt.TagLong) {
		id := uuid.New()
		e.Put("UUIDMost", nbt.Long(binary.BigEndian.Uint64(id[:8])))
		e.Put("UUIDLeast", nbt.Long(binary.BigEndian.Uint64(id[8:])))
	}
	if riders, ok := e.List("Passengers"); ok {
		for _, r := range riders.Compounds() {
			shiftEntity(r, blocks, freshUUIDs)
		}
	}
}

func addInt(c nbt.Compound, name string, delta int) {
	if v, ok := c.Int(name); ok {
		c.Put(name, nbt.Int(int(v)+delta))
	}
}

// nibble returns the 4-bit value at index; even indices use the low nibble.
func nibble(arr []byte, index int) int {
	b := arr[index>>1]
	if index&1 == 0 {
		return int(b & 0xf)
	}
	return int(b>>4) & 0xf
}

func setNibble(arr []byte, index, value int) {
	i := index >> 1
	v := byte(value & 0xf)
	if index&1 == 0 {
		arr[i] = arr[i]&0xf0 | v
	} else {
		arr[i] = arr[i]&0x0f | v<<4
	}
}

// EmptySection returns a section of air with no light.
func EmptySection() nbt.Compound {
	return nbt.Compound{
		"Blocks":     make(nbt.ByteArray, cubeVolume),
		"Data":       make(nbt.ByteArray, nibbleLen),
		"BlockLight": make(nbt.ByteArray, nibbleLen),
		"SkyLight":   make(nbt.ByteArray, nibbleLen),
	}
}

// EmptyCube returns a populated cube of air at pos, ready for relighting.
func EmptyCube(pos geom.Vec3) nbt.Compound {
	heights := make(nbt.IntArray, 256)
	for i := range heights {
		heights[i] = math.MaxInt32
	}
	level := nbt.Compound{
		"v":                nbt.Byte(1),
		"populated":        nbt.Byte(1),
		"fullyPopulated":   nbt.Byte(1),
		"isSurfaceTracked": nbt.Byte(1),
		"initLightDone":    nbt.Byte(0),
		"Sections":         nbt.NewList(nbt.TagCompound, EmptySection()),
		"Entities":         nbt.NewList(nbt.TagCompound),
		"TileEntities":     nbt.NewList(nbt.TagCompound),
		"LightingInfo": nbt.Compound{
			"LastHeightMap":          heights,
			"EdgeNeedSkyLightUpdate": nbt.Byte(0),
		},
	}
	setCubePos(level, pos)
	return nbt.Compound{"Level": level}
}

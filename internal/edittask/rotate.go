package edittask

import (
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/nbt"
)

// metaRotations maps a block id to its metadata under one quarter turn.
// Ids absent from the table keep their metadata.
var metaRotations = func() map[byte]*[16]byte {
	stairs := quarterTurn(func(m byte) byte {
		facing := [4]byte{3, 2, 0, 1}
		return m&^3 | facing[m&3]
	})
	torch := quarterTurn(func(m byte) byte {
		switch m {
		case 1:
			return 4
		case 2:
			return 3
		case 3:
			return 1
		case 4:
			return 2
		}
		return m
	})
	log := quarterTurn(func(m byte) byte {
		switch m & 0xc {
		case 0x4:
			return m&^0xc | 0x8
		case 0x8:
			return m&^0xc | 0x4
		}
		return m
	})
	t := make(map[byte]*[16]byte)
	for _, id := range []byte{53, 67, 108, 109, 114, 128, 134, 135, 136, 156, 163, 164, 180, 203} {
		t[id] = stairs
	}
	for _, id := range []byte{50, 75, 76} {
		t[id] = torch
	}
	for _, id := range []byte{17, 162} {
		t[id] = log
	}
	return t
}()

func quarterTurn(f func(byte) byte) *[16]byte {
	var r [16]byte
	for m := range r {
		r[m] = f(byte(m))
	}
	return &r
}

// rotatePos turns p one quarter about origin on the horizontal plane.
func rotatePos(p, origin geom.Vec3) geom.Vec3 {
	return geom.V(p.Z-origin.Z+origin.X, p.Y, -(p.X-origin.X)+origin.Z)
}

func (t Task) steps() int { return (t.Degrees % 360) / 90 }

func (t Task) rotate(p geom.Vec3) geom.Vec3 {
	for i := 0; i < t.steps(); i++ {
		p = rotatePos(p, t.Origin)
	}
	return p
}

func (t Task) rotatedBox() geom.BoundingBox {
	return geom.NewBox(t.rotate(t.Box.Min), t.rotate(t.Box.Max))
}

// rotateSection turns the voxel arrays of sec in place by the given number of
// quarter turns, rotating orientation metadata along with them.
//
// Precondition: sec passed firstSection.
func rotateSection(sec nbt.Compound, steps int) {
	for s := 0; s < steps; s++ {
		for _, name := range []string{"Data", "BlockLight", "SkyLight", "Add"} {
			if arr, ok := sec.ByteArray(name); ok && len(arr) == nibbleLen {
				sec.Put(name, rotateNibbles(arr))
			}
		}
		blocks, _ := sec.ByteArray("Blocks")
		rotated := rotateBytes(blocks)
		sec.Put("Blocks", rotated)
		meta, _ := sec.ByteArray("Data")
		for i, id := range rotated {
			if table, ok := metaRotations[id]; ok {
				setNibble(meta, i, int(table[nibble(meta, i)]))
			}
		}
	}
}

// rotatedIndex maps a voxel index to its index after one quarter turn:
// (x, z) becomes (z, 15-x).
func rotatedIndex(i int) int {
	x, z, y := i&15, i>>4&15, i>>8
	return y<<8 | (15-x)<<4 | z
}

func rotateBytes(src []byte) nbt.ByteArray {
	dst := make(nbt.ByteArray, len(src))
	for i, v := range src {
		dst[rotatedIndex(i)] = v
	}
	return dst
}

func rotateNibbles(src []byte) nbt.ByteArray {
	dst := make(nbt.ByteArray, len(src))
	for i := 0; i < cubeVolume; i++ {
		setNibble(dst, rotatedIndex(i), nibble(src, i))
	}
	return dst
}

// Package region implements the sector-allocated region file format, its
// overflow ("ext") store, and the cached, read/write-locked region providers
// the converter plugins share across pipeline workers.
package region

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
)

// RegionKey addresses one region file. For 2D layouts Y is always zero.
type RegionKey struct {
	X, Y, Z int
}

// Layout maps entry coordinates onto region files and indices within them.
// 2D layouts ignore the Y component of positions.
type Layout interface {
	// KeyCount is the fixed number of addressable indices per region.
	KeyCount() int
	// Extent is the number of entries per region along each axis.
	Extent() geom.Vec3
	// Locate returns the region holding pos and pos's index inside it.
	Locate(pos geom.Vec3) (RegionKey, int)
	// Position is the inverse of Locate.
	Position(key RegionKey, index int) geom.Vec3
	// FileName returns the region file name for key.
	FileName(key RegionKey) string
	// ParseFileName parses a region file name produced by FileName.
	ParseFileName(name string) (RegionKey, bool)
}

// Column is the 2D layout: 32x32 columns per region, files named "x.z.2dr".
var Column Layout = columnLayout{}

// Cube is the 3D layout: 16x16x16 cubes per region, files named "x.y.z.3dr".
var Cube Layout = cubeLayout{}

// Anvil is the vanilla chunk layout: 32x32 chunks per "r.x.z.mca" file,
// indexed x-major within a row of z.
var Anvil Layout = anvilLayout{}

// AnvilSectorSize is the sector size of vanilla region files. Their header
// spans two sectors (offsets then timestamps); only the first is read.
const AnvilSectorSize = 4096

const (
	columnExtent = 32
	cubeExtent   = 16
)

type columnLayout struct{}

func (columnLayout) KeyCount() int { return columnExtent * columnExtent }

func (columnLayout) Extent() geom.Vec3 { return geom.V(columnExtent, 1, columnExtent) }

func (columnLayout) Locate(pos geom.Vec3) (RegionKey, int) {
	key := RegionKey{X: geom.FloorDiv(pos.X, columnExtent), Z: geom.FloorDiv(pos.Z, columnExtent)}
	lx := geom.FloorMod(pos.X, columnExtent)
	lz := geom.FloorMod(pos.Z, columnExtent)
	return key, lx<<5 | lz
}

func (columnLayout) Position(key RegionKey, index int) geom.Vec3 {
	return geom.V(key.X*columnExtent+(index>>5&31), 0, key.Z*columnExtent+(index&31))
}

func (columnLayout) FileName(key RegionKey) string {
	return fmt.Sprintf("%d.%d.2dr", key.X, key.Z)
}

func (columnLayout) ParseFileName(name string) (RegionKey, bool) {
	vals, ok := parseCoords(name, "", ".2dr", 2)
	if !ok {
		return RegionKey{}, false
	}
	return RegionKey{X: vals[0], Z: vals[1]}, true
}

type cubeLayout struct{}

func (cubeLayout) KeyCount() int { return cubeExtent * cubeExtent * cubeExtent }

func (cubeLayout) Extent() geom.Vec3 { return geom.V(cubeExtent, cubeExtent, cubeExtent) }

func (cubeLayout) Locate(pos geom.Vec3) (RegionKey, int) {
	key := RegionKey{
		X: geom.FloorDiv(pos.X, cubeExtent),
		Y: geom.FloorDiv(pos.Y, cubeExtent),
		Z: geom.FloorDiv(pos.Z, cubeExtent),
	}
	lx := geom.FloorMod(pos.X, cubeExtent)
	ly := geom.FloorMod(pos.Y, cubeExtent)
	lz := geom.FloorMod(pos.Z, cubeExtent)
	return key, lx<<8 | ly<<4 | lz
}

func (cubeLayout) Position(key RegionKey, index int) geom.Vec3 {
	return geom.V(
		key.X*cubeExtent+(index>>8&15),
		key.Y*cubeExtent+(index>>4&15),
		key.Z*cubeExtent+(index&15),
	)
}

func (cubeLayout) FileName(key RegionKey) string {
	return fmt.Sprintf("%d.%d.%d.3dr", key.X, key.Y, key.Z)
}

func (cubeLayout) ParseFileName(name string) (RegionKey, bool) {
	vals, ok := parseCoords(name, "", ".3dr", 3)
	if !ok {
		return RegionKey{}, false
	}
	return RegionKey{X: vals[0], Y: vals[1], Z: vals[2]}, true
}

type anvilLayout struct{}

func (anvilLayout) KeyCount() int { return columnExtent * columnExtent }

func (anvilLayout) Extent() geom.Vec3 { return geom.V(columnExtent, 1, columnExtent) }

func (anvilLayout) Locate(pos geom.Vec3) (RegionKey, int) {
	key := RegionKey{X: geom.FloorDiv(pos.X, columnExtent), Z: geom.FloorDiv(pos.Z, columnExtent)}
	lx := geom.FloorMod(pos.X, columnExtent)
	lz := geom.FloorMod(pos.Z, columnExtent)
	return key, lz<<5 | lx
}

func (anvilLayout) Position(key RegionKey, index int) geom.Vec3 {
	return geom.V(key.X*columnExtent+(index&31), 0, key.Z*columnExtent+(index>>5&31))
}

func (anvilLayout) FileName(key RegionKey) string {
	return fmt.Sprintf("r.%d.%d.mca", key.X, key.Z)
}

func (anvilLayout) ParseFileName(name string) (RegionKey, bool) {
	vals, ok := parseCoords(name, "r.", ".mca", 2)
	if !ok {
		return RegionKey{}, false
	}
	return RegionKey{X: vals[0], Z: vals[1]}, true
}

func parseCoords(name, prefix, suffix string, n int) ([]int, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) || len(name) < len(prefix)+len(suffix) {
		return nil, false
	}
	parts := strings.Split(name[len(prefix):len(name)-len(suffix)], ".")
	if len(parts) != n {
		return nil, false
	}
	vals := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

package cubic

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/codec"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/edittask"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/nbt"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/region"
)

// AnvilReader reads the chunks of a vanilla save, one unit per chunk.
type AnvilReader struct {
	*sources
}

var _ codec.Reader[codec.AnvilColumn] = (*AnvilReader)(nil)

// NewAnvilReader returns a reader of the vanilla save at root.
func NewAnvilReader(root string, opts ReaderOptions) *AnvilReader {
	return &AnvilReader{sources: newSources(opts, root)}
}

// CountUnits lists every chunk of every dimension that has a region directory.
func (r *AnvilReader) CountUnits(ctx context.Context, inc func()) (err error) {
	var wl []dimensionWork
	defer func() {
		if err != nil {
			r.publish(nil)
			return
		}
		r.publish(wl)
	}()
	for _, dim := range r.opts.Dimensions.All() {
		dir := dim.Path(r.roots[0])
		if _, err := os.Stat(filepath.Join(dir, region.AnvilDir)); errors.Is(err, os.ErrNotExist) {
			continue
		}
		sec := region.OpenAnvil(dir, r.opts.Save.CacheSize)
		r.mu.Lock()
		r.sections = append(r.sections, sec)
		r.mu.Unlock()

		work := dimensionWork{dim: dim, anvil: sec}
		err := sec.ForEachRegion(func(key region.RegionKey) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return sec.ForEachKeyIn(key, func(p geom.Vec3) error {
				work.columns = append(work.columns, columnWork{pos: codec.ColumnOf(p)})
				inc()
				return nil
			})
		})
		if err != nil {
			return fmt.Errorf("counting %s: %w", dim, err)
		}
		r.logger.Debug("counted dimension", zap.Stringer("dimension", dim), zap.Int("chunks", len(work.columns)))
		wl = append(wl, work)
	}
	return ctx.Err()
}

// LoadUnits reads every counted chunk.
func (r *AnvilReader) LoadUnits(ctx context.Context, consume func(codec.AnvilColumn) error, onError codec.ErrorHandler) error {
	return r.load(ctx, onError, func(dw dimensionWork, cw columnWork) error {
		data, ok, err := dw.anvil.Load(cw.pos.Vec())
		if err != nil {
			return fmt.Errorf("loading chunk %s in %s: %w", cw.pos, dw.dim, err)
		}
		if !ok {
			return fmt.Errorf("chunk %s in %s vanished since counting", cw.pos, dw.dim)
		}
		if err := consume(codec.AnvilColumn{Dim: dw.dim, Pos: cw.pos, Data: data}); err != nil {
			return &consumeError{err: err}
		}
		return nil
	})
}

// tileEntityIDs maps legacy block ids to the tile entity vanilla keeps for them.
var tileEntityIDs = map[int]string{
	61:  "furnace",
	62:  "furnace",
	54:  "chest",
	146: "chest",
	130: "ender_chest",
	84:  "jukebox",
	23:  "dispenser",
	158: "dropper",
	63:  "sign",
	68:  "sign",
	52:  "mob_spawner",
	25:  "noteblock",
	117: "brewing_stand",
	116: "enchanting_table",
	119: "end_portal",
	138: "beacon",
	144: "skull",
	151: "daylight_detector",
	178: "daylight_detector",
	154: "hopper",
	149: "comparator",
	150: "comparator",
	140: "flower_pot",
	176: "banner",
	177: "banner",
	255: "structure_block",
	209: "end_gateway",
	137: "command_block",
	210: "command_block",
	211: "command_block",
	26:  "bed",
}

func init() {
	for id := 219; id <= 234; id++ {
		tileEntityIDs[id] = "shulker_box"
	}
}

const (
	blockBedrock = 7
	blockStone   = 1
	// vanillaCubes is the number of cubes of a vanilla column.
	vanillaCubes = 16
)

// Anvil2CC splits a vanilla chunk into a cubic column and one cube per
// section. Heights 0 to 15 that have no section get an empty cube.
type Anvil2CC struct {
	// FixMissingTileEntities adds a bare tile entity for every block whose id
	// needs one but has none.
	FixMissingTileEntities bool
}

var _ codec.Converter[codec.AnvilColumn, codec.CubicColumn] = (*Anvil2CC)(nil)

// Convert splits one chunk.
func (a *Anvil2CC) Convert(in codec.AnvilColumn) ([]codec.CubicColumn, error) {
	root, err := nbt.Read(nbt.FamilyPrefixed, in.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding chunk %s in %s: %w", in.Pos, in.Dim, err)
	}
	level, ok := root.Compound("Level")
	if !ok {
		return nil, fmt.Errorf("chunk %s in %s has no Level compound", in.Pos, in.Dim)
	}
	x, okX := level.Int("xPos")
	z, okZ := level.Int("zPos")
	if !okX || !okZ {
		return nil, fmt.Errorf("chunk %s in %s has no position", in.Pos, in.Dim)
	}
	heights, _ := level.IntArray("HeightMap")

	column, err := nbt.Write(nbt.FamilyCubic, anvilColumn(root, level, heights))
	if err != nil {
		return nil, fmt.Errorf("encoding column %s: %w", in.Pos, err)
	}
	out := codec.CubicColumn{Dim: in.Dim, Pos: codec.ColumnPos{X: int(x), Z: int(z)}, Column: column, Cubes: map[int][]byte{}}

	sections, _ := level.List("Sections")
	for _, sec := range sections.Compounds() {
		y, ok := sec.Byte("Y")
		if !ok {
			continue
		}
		cube := a.anvilCube(root, level, sec, int(x), int(y), int(z), heights)
		data, err := nbt.Write(nbt.FamilyCubic, cube)
		if err != nil {
			return nil, fmt.Errorf("encoding cube %s: %w", out.Pos.Cube(int(y)), err)
		}
		out.Cubes[int(y)] = data
	}
	for y := 0; y < vanillaCubes; y++ {
		if _, ok := out.Cubes[y]; ok {
			continue
		}
		data, err := nbt.Write(nbt.FamilyCubic, edittask.EmptyCube(out.Pos.Cube(y)))
		if err != nil {
			return nil, fmt.Errorf("encoding cube %s: %w", out.Pos.Cube(y), err)
		}
		out.Cubes[y] = data
	}
	return []codec.CubicColumn{out}, nil
}

func anvilColumn(root, level nbt.Compound, heights []int32) nbt.Compound {
	x, _ := level.Int("xPos")
	z, _ := level.Int("zPos")
	col := nbt.Compound{
		"v":             nbt.Int(1),
		"x":             nbt.Int(x),
		"z":             nbt.Int(z),
		"InhabitedTime": nbt.Int(0),
		"OpacityIndex":  opacityIndex(heights),
	}
	if t, ok := level["InhabitedTime"]; ok {
		col["InhabitedTime"] = nbt.Clone(t)
	}
	if t, ok := level["Biomes"]; ok {
		col["Biomes"] = nbt.Clone(t)
	}
	out := nbt.Compound{"Level": col}
	if t, ok := root["DataVersion"]; ok {
		out["DataVersion"] = t
	}
	return out
}

// opacityIndex builds an index with no segments whose top per block column
// is the highest block. Vanilla heights are one above it.
func opacityIndex(heights []int32) nbt.ByteArray {
	const entry = 4 + 4 + 2
	out := make(nbt.ByteArray, 256*entry)
	for i := 0; i < 256; i++ {
		var h int32
		if i < len(heights) {
			h = heights[i]
		}
		binary.BigEndian.PutUint32(out[i*entry+4:], uint32(h-1))
	}
	return out
}

func (a *Anvil2CC) anvilCube(root, level, sec nbt.Compound, x, y, z int, heights []int32) nbt.Compound {
	populated, _ := level.Byte("TerrainPopulated")
	lit, _ := level.Byte("LightPopulated")

	sec = sec.Clone()
	if blocks, ok := sec.ByteArray("Blocks"); ok {
		for i, b := range blocks {
			if b == blockBedrock {
				blocks[i] = blockStone
			}
		}
	}

	minY, maxY := y*16, y*16+16
	entities := nbt.NewList(nbt.TagCompound)
	if l, ok := level.List("Entities"); ok {
		for _, e := range l.Compounds() {
			pos, ok := e.List("Pos")
			if !ok || pos.Len() < 2 {
				continue
			}
			if py, ok := pos.Items[1].(nbt.Double); ok && float64(py) >= float64(minY) && float64(py) < float64(maxY) {
				entities.Items = append(entities.Items, e.Clone())
			}
		}
	}
	tiles := filterByY(level, "TileEntities", minY, maxY)
	if a.FixMissingTileEntities {
		addMissingTileEntities(tiles, sec, x, y, z)
	}

	cube := nbt.Compound{
		"v":                nbt.Byte(1),
		"x":                nbt.Int(x),
		"y":                nbt.Int(y),
		"z":                nbt.Int(z),
		"populated":        nbt.Byte(populated),
		"fullyPopulated":   nbt.Byte(populated),
		"isSurfaceTracked": nbt.Byte(0),
		"initLightDone":    nbt.Byte(lit),
		"Sections":         nbt.NewList(nbt.TagCompound, sec),
		"Entities":         entities,
		"TileEntities":     tiles,
		"LightingInfo": nbt.Compound{
			"LastHeightMap": append(nbt.IntArray(nil), heights...),
		},
	}
	if level.Has("TileTicks", nbt.TagList) {
		cube["TileTicks"] = filterByY(level, "TileTicks", minY, maxY)
	}
	out := nbt.Compound{"Level": cube}
	if t, ok := root["DataVersion"]; ok {
		out["DataVersion"] = t
	}
	return out
}

// filterByY copies the compounds of list name whose "y" is in [minY, maxY).
func filterByY(level nbt.Compound, name string, minY, maxY int) *nbt.List {
	out := nbt.NewList(nbt.TagCompound)
	l, _ := level.List(name)
	for _, c := range l.Compounds() {
		if y, ok := c.Int("y"); ok && int(y) >= minY && int(y) < maxY {
			out.Items = append(out.Items, c.Clone())
		}
	}
	return out
}

// addMissingTileEntities appends a bare tile entity for every block of sec
// whose id needs one and has none in tiles. Block ids combine Blocks with the
// Add and Add2 nibbles.
func addMissingTileEntities(tiles *nbt.List, sec nbt.Compound, cx, cy, cz int) {
	blocks, ok := sec.ByteArray("Blocks")
	if !ok || len(blocks) < 4096 {
		return
	}
	add, _ := sec.ByteArray("Add")
	add2, _ := sec.ByteArray("Add2")

	have := make(map[int]bool, tiles.Len())
	for _, te := range tiles.Compounds() {
		x, _ := te.Int("x")
		y, _ := te.Int("y")
		z, _ := te.Int("z")
		have[int(y&15)<<8|int(z&15)<<4|int(x&15)] = true
	}
	for i := 0; i < 4096; i++ {
		id := int(blocks[i])
		if len(add) >= 2048 {
			id |= nibbleAt(add, i) << 8
		}
		if len(add2) >= 2048 {
			id |= nibbleAt(add2, i) << 12
		}
		name, ok := tileEntityIDs[id]
		if !ok || have[i] {
			continue
		}
		have[i] = true
		tiles.Items = append(tiles.Items, nbt.Compound{
			"id": nbt.String(name),
			"x":  nbt.Int(cx*16 + i&15),
			"y":  nbt.Int(cy*16 + i>>8&15),
			"z":  nbt.Int(cz*16 + i>>4&15),
		})
	}
}

func nibbleAt(arr []byte, i int) int {
	b := arr[i>>1]
	if i&1 == 0 {
		return int(b & 0xf)
	}
	return int(b >> 4)
}

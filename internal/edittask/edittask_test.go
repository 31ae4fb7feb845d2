package edittask

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/geom"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/nbt"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/schematic"
)

// testCube returns a cube at pos whose voxels are all stone, with one entity
// and one tile entity at the cube's minimum corner.
func testCube(pos geom.Vec3) nbt.Compound {
	c := EmptyCube(pos)
	level, _ := c.Compound("Level")
	sec := section(level)
	blocks, _ := sec.ByteArray("Blocks")
	for i := range blocks {
		blocks[i] = 1
	}
	base := pos.Scale(16)
	level.Put("Entities", nbt.NewList(nbt.TagCompound, nbt.Compound{
		"id": nbt.String("minecraft:pig"),
		"Pos": nbt.NewList(nbt.TagDouble,
			nbt.Double(float64(base.X)+0.5), nbt.Double(float64(base.Y)), nbt.Double(float64(base.Z)+0.5)),
		"UUIDMost":  nbt.Long(1),
		"UUIDLeast": nbt.Long(2),
	}))
	level.Put("TileEntities", nbt.NewList(nbt.TagCompound, nbt.Compound{
		"id": nbt.String("minecraft:chest"),
		"x":  nbt.Int(base.X),
		"y":  nbt.Int(base.Y),
		"z":  nbt.Int(base.Z),
	}))
	return c
}

func section(level nbt.Compound) nbt.Compound {
	l, _ := level.List("Sections")
	return l.Items[0].(nbt.Compound)
}

func levelAt(t *testing.T, cube nbt.Compound) nbt.Compound {
	t.Helper()
	require.NotNil(t, cube)
	level, ok := cube.Compound("Level")
	require.True(t, ok)
	return level
}

func posOf(t *testing.T, cube nbt.Compound) geom.Vec3 {
	t.Helper()
	p, ok := cubePos(levelAt(t, cube))
	require.True(t, ok)
	return p
}

func byPos(outs []Output) map[geom.Vec3]Output {
	m := make(map[geom.Vec3]Output, len(outs))
	for _, o := range outs {
		m[o.Pos] = o
	}
	return m
}

func TestMove_ZeroOffsetIsKeep(t *testing.T) {
	pos := geom.V(2, 3, 4)
	cube := testCube(pos)
	want := cube.Clone()

	outs := Relocate([]Task{Move(geom.Box(0, 0, 0, 5, 5, 5), geom.Vec3{})}, pos, 3, cube, DefaultConfig(), nil)

	require.Len(t, outs, 1)
	assert.Equal(t, pos, outs[0].Pos)
	assert.Equal(t, int64(4), outs[0].Priority)
	assert.Equal(t, want, outs[0].Cube, "payload must be untouched")
}

func TestMove_DeletesVacatedCube(t *testing.T) {
	pos := geom.V(0, 0, 0)
	outs := Relocate([]Task{Move(geom.Box(0, 0, 0, 0, 0, 0), geom.V(3, 0, 0))}, pos, 0, testCube(pos), DefaultConfig(), nil)

	m := byPos(outs)
	require.Len(t, m, 2)
	assert.Nil(t, m[pos].Cube, "source is deleted")
	moved := m[geom.V(3, 0, 0)]
	assert.Equal(t, geom.V(3, 0, 0), posOf(t, moved.Cube))
	assert.Equal(t, int64(1), moved.Priority)

	level := levelAt(t, moved.Cube)
	te := level["TileEntities"].(*nbt.List).Compounds()[0]
	x, _ := te.Int("x")
	assert.Equal(t, int32(48), x)
	ent := level["Entities"].(*nbt.List).Compounds()[0]
	epos, _ := ent.List("Pos")
	assert.Equal(t, nbt.Double(48.5), epos.Items[0])
	most, _ := ent.Long("UUIDMost")
	assert.Equal(t, int64(1), most, "moved entities keep their identity")
}

func TestMove_OverlappingDestinationKeepsNoDeletion(t *testing.T) {
	task := Move(geom.Box(0, 0, 0, 3, 0, 0), geom.V(1, 0, 0))
	pos := geom.V(2, 0, 0)
	outs, err := task.Apply(pos, 0, testCube(pos), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, geom.V(3, 0, 0), outs[0].Pos)
}

func TestCut_FullOverlap(t *testing.T) {
	off := geom.V(1, 0, 0)
	task := Cut(geom.Box(0, 0, 0, 3, 0, 0), &off)

	inner := geom.V(1, 0, 0)
	outs, err := task.Apply(inner, 0, testCube(inner), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, outs, 1, "a source re-covered by the destination emits only the translated cube")
	assert.Equal(t, geom.V(2, 0, 0), outs[0].Pos)

	edge := geom.V(0, 0, 0)
	outs, err = task.Apply(edge, 0, testCube(edge), DefaultConfig())
	require.NoError(t, err)
	m := byPos(outs)
	require.Len(t, m, 2)

	cleared := levelAt(t, m[edge].Cube)
	sec := section(cleared)
	blocks, _ := sec.ByteArray("Blocks")
	assert.Equal(t, make([]byte, cubeVolume), blocks)
	assert.Equal(t, 0, cleared["Entities"].(*nbt.List).Len())
	assert.Equal(t, 0, cleared["TileEntities"].(*nbt.List).Len())
	lightDone, _ := cleared.Byte("initLightDone")
	assert.Equal(t, int8(0), lightDone)
	pop, _ := cleared.Byte("populated")
	assert.Equal(t, int8(1), pop)

	moved := levelAt(t, m[geom.V(1, 0, 0)].Cube)
	movedBlocks, _ := section(moved).ByteArray("Blocks")
	assert.Equal(t, byte(1), movedBlocks[0], "translated cube keeps its voxels")
}

func TestCut_NoOffsetClearsInPlace(t *testing.T) {
	pos := geom.V(5, 5, 5)
	outs, err := Cut(geom.AllBox(), nil).Apply(pos, 9, testCube(pos), Config{})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, pos, outs[0].Pos)
	assert.Equal(t, int64(10), outs[0].Priority)
	tracked, _ := levelAt(t, outs[0].Cube).Byte("isSurfaceTracked")
	assert.Equal(t, int8(1), tracked, "relightSrc off leaves surface tracking alone")
}

func TestCopy_FreshUUIDsAndUntouchedSource(t *testing.T) {
	pos := geom.V(0, 0, 0)
	orig := testCube(pos)
	want := orig.Clone()
	outs, err := Copy(geom.Box(0, 0, 0, 0, 0, 0), geom.V(0, 2, 0)).Apply(pos, 0, orig, DefaultConfig())
	require.NoError(t, err)
	m := byPos(outs)
	require.Len(t, m, 2)
	assert.Equal(t, want, m[pos].Cube)

	cp := levelAt(t, m[geom.V(0, 2, 0)].Cube)
	ent := cp["Entities"].(*nbt.List).Compounds()[0]
	most, _ := ent.Long("UUIDMost")
	least, _ := ent.Long("UUIDLeast")
	assert.False(t, most == 1 && least == 2, "copied entity needs a fresh identity")
	epos, _ := ent.List("Pos")
	assert.Equal(t, nbt.Double(32), epos.Items[1])
}

func TestSetAndReplace(t *testing.T) {
	pos := geom.V(0, 0, 0)
	set, err := Set(geom.AllBox(), 7, 3)
	require.NoError(t, err)
	outs, err := set.Apply(pos, 0, testCube(pos), DefaultConfig())
	require.NoError(t, err)
	sec := section(levelAt(t, outs[0].Cube))
	blocks, _ := sec.ByteArray("Blocks")
	data, _ := sec.ByteArray("Data")
	assert.Equal(t, byte(7), blocks[4095])
	assert.Equal(t, byte(0x33), data[10])

	rep, err := Replace(geom.AllBox(), 7, AnyMeta, 9, 1)
	require.NoError(t, err)
	outs, err = rep.Apply(pos, 1, outs[0].Cube, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(2), outs[0].Priority)
	sec = section(levelAt(t, outs[0].Cube))
	blocks, _ = sec.ByteArray("Blocks")
	data, _ = sec.ByteArray("Data")
	assert.Equal(t, byte(9), blocks[100])
	assert.Equal(t, 1, nibble(data, 100))

	_, err = Set(geom.AllBox(), 256, 0)
	assert.ErrorIs(t, err, ErrInvalidTask)
	_, err = Replace(geom.AllBox(), 1, 16, 2, 0)
	assert.ErrorIs(t, err, ErrInvalidTask)
}

func TestReplace_MetaMustMatch(t *testing.T) {
	pos := geom.V(0, 0, 0)
	cube := testCube(pos)
	data, _ := section(levelAt(t, cube)).ByteArray("Data")
	setNibble(data, 0, 4)
	rep, err := Replace(geom.AllBox(), 1, 4, 2, 0)
	require.NoError(t, err)
	outs, err := rep.Apply(pos, 0, cube, DefaultConfig())
	require.NoError(t, err)
	blocks, _ := section(levelAt(t, outs[0].Cube)).ByteArray("Blocks")
	assert.Equal(t, byte(2), blocks[0])
	assert.Equal(t, byte(1), blocks[1])
}

func TestRotate(t *testing.T) {
	_, err := Rotate(geom.AllBox(), geom.Vec3{}, 45)
	assert.ErrorIs(t, err, ErrInvalidTask)

	full, err := Rotate(geom.Box(0, 0, 0, 3, 0, 3), geom.Vec3{}, 360)
	require.NoError(t, err)
	pos := geom.V(1, 0, 2)
	cube := testCube(pos)
	blocks, _ := section(levelAt(t, cube)).ByteArray("Blocks")
	blocks[5] = 53
	want, _ := section(levelAt(t, cube.Clone())).ByteArray("Blocks")
	outs, err := full.Apply(pos, 0, cube, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, pos, outs[0].Pos)
	got, _ := section(levelAt(t, outs[0].Cube)).ByteArray("Blocks")
	assert.Equal(t, want, got)

	quarter, err := Rotate(geom.Box(0, 0, 0, 3, 0, 3), geom.Vec3{}, 90)
	require.NoError(t, err)
	cube = testCube(pos)
	sec := section(levelAt(t, cube))
	blocks, _ = sec.ByteArray("Blocks")
	blocks[0] = 53 // stairs at x=0 z=0 facing east
	outs, err = quarter.Apply(pos, 0, cube, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, geom.V(2, 0, -1), outs[0].Pos)
	sec = section(levelAt(t, outs[0].Cube))
	blocks, _ = sec.ByteArray("Blocks")
	data, _ := sec.ByteArray("Data")
	idx := rotatedIndex(0)
	assert.Equal(t, byte(53), blocks[idx])
	assert.Equal(t, 3, nibble(data, idx), "east-facing stairs face north after a quarter turn")
	assert.Equal(t, geom.Box(0, 0, -3, 3, 0, 0), quarter.DstBoxes()[0])
}

func TestRotate_FourQuartersAreIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		i := rapid.IntRange(0, cubeVolume-1).Draw(t, "index")
		j := i
		for k := 0; k < 4; k++ {
			j = rotatedIndex(j)
		}
		if i != j {
			t.Fatalf("index %d rotated to %d", i, j)
		}
		p := geom.V(rapid.IntRange(-1000, 1000).Draw(t, "x"), 0, rapid.IntRange(-1000, 1000).Draw(t, "z"))
		o := geom.V(rapid.IntRange(-50, 50).Draw(t, "ox"), 0, rapid.IntRange(-50, 50).Draw(t, "oz"))
		q := p
		for k := 0; k < 4; k++ {
			q = rotatePos(q, o)
		}
		if p != q {
			t.Fatalf("%s rotated to %s about %s", p, q, o)
		}
	})
	for id, table := range metaRotations {
		for m := 0; m < 16; m++ {
			v := byte(m)
			for k := 0; k < 4; k++ {
				v = table[v]
			}
			assert.Equal(t, byte(m), v, "block %d meta %d", id, m)
		}
	}
}

func TestNibble(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		arr := rapid.SliceOfN(rapid.Byte(), nibbleLen, nibbleLen).Draw(t, "arr")
		i := rapid.IntRange(0, cubeVolume-1).Draw(t, "index")
		v := rapid.IntRange(0, 15).Draw(t, "value")
		neighbor := i ^ 1
		before := nibble(arr, neighbor)
		setNibble(arr, i, v)
		if got := nibble(arr, i); got != v {
			t.Fatalf("nibble(%d) = %d, want %d", i, got, v)
		}
		if got := nibble(arr, neighbor); got != before {
			t.Fatalf("neighbor %d changed from %d to %d", neighbor, before, got)
		}
	})
}

func TestSchematicPaste(t *testing.T) {
	s := &schematic.Schematic{
		Width: 2, Height: 1, Length: 1,
		Blocks: []byte{4, 0},
		Data:   []byte{2, 0},
	}
	task, err := PasteAt(s, geom.V(16, 0, 0), true, "DIM1")
	require.NoError(t, err)
	assert.True(t, task.CreatesMissing())
	assert.True(t, task.HandlesDimension("DIM1"))
	assert.False(t, task.HandlesDimension(""))
	assert.True(t, geom.AnyContains(task.SrcBoxes(), geom.V(1, 0, 0)))

	pos := geom.V(1, 0, 0)
	cube := EmptyCube(pos)
	blocks, _ := section(levelAt(t, cube)).ByteArray("Blocks")
	blocks[1] = 3
	outs, err := task.Apply(pos, 0, cube, DefaultConfig())
	require.NoError(t, err)
	sec := section(levelAt(t, outs[0].Cube))
	blocks, _ = sec.ByteArray("Blocks")
	data, _ := sec.ByteArray("Data")
	assert.Equal(t, byte(4), blocks[0])
	assert.Equal(t, 2, nibble(data, 0))
	assert.Equal(t, byte(3), blocks[1], "air is skipped")
}

func TestSchematicPaste_AddsSectionWhenMissing(t *testing.T) {
	s := &schematic.Schematic{Width: 1, Height: 1, Length: 1, Blocks: []byte{5}, Data: []byte{0}}
	task, err := PasteAt(s, geom.V(0, 0, 0), false, "")
	require.NoError(t, err)
	cube := EmptyCube(geom.Vec3{})
	levelAt(t, cube).Remove("Sections")
	outs, err := task.Apply(geom.Vec3{}, 0, cube, DefaultConfig())
	require.NoError(t, err)
	blocks, _ := section(levelAt(t, outs[0].Cube)).ByteArray("Blocks")
	assert.Equal(t, byte(5), blocks[0])
}

func TestSchematicPaste_HighIDCreatesAddArray(t *testing.T) {
	s := &schematic.Schematic{
		Width: 1, Height: 1, Length: 1,
		Blocks:    []byte{5},
		AddBlocks: []byte{0x30},
		Data:      []byte{1},
	}
	task, err := PasteAt(s, geom.V(0, 0, 0), false, "")
	require.NoError(t, err)
	cube := EmptyCube(geom.Vec3{})
	_, has := section(levelAt(t, cube)).ByteArray("Add")
	require.False(t, has)

	outs, err := task.Apply(geom.Vec3{}, 0, cube, DefaultConfig())
	require.NoError(t, err)
	sec := section(levelAt(t, outs[0].Cube))
	add, ok := sec.ByteArray("Add")
	require.True(t, ok, "a high id nibble adds the Add array")
	require.Len(t, add, 2048)
	assert.Equal(t, 3, nibble(add, 0))
	assert.Equal(t, 0, nibble(add, 1))
	blocks, _ := sec.ByteArray("Blocks")
	assert.Equal(t, byte(5), blocks[0])
}

func TestRelocate(t *testing.T) {
	pos := geom.V(0, 0, 0)
	set, err := Set(geom.Box(0, 0, 0, 0, 0, 0), 2, 0)
	require.NoError(t, err)
	off := false
	tasks := []Task{
		ConfigTask(nil, &off),
		set,
		Move(geom.Box(0, 0, 0, 0, 0, 0), geom.V(0, 1, 0)),
		Remove(geom.Box(0, 1, 0, 0, 1, 0)),
	}
	outs := Relocate(tasks, pos, 0, testCube(pos), DefaultConfig(), nil)
	m := byPos(outs)
	require.Len(t, m, 2)
	assert.Nil(t, m[pos].Cube)
	assert.Equal(t, int64(2), m[pos].Priority)
	moved := m[geom.V(0, 1, 0)]
	assert.Equal(t, int64(2), moved.Priority, "outputs at other positions are final")
	level := levelAt(t, moved.Cube)
	blocks, _ := section(level).ByteArray("Blocks")
	assert.Equal(t, byte(2), blocks[0])
	tracked, _ := level.Byte("isSurfaceTracked")
	assert.Equal(t, int8(1), tracked, "relighting was switched off")
}

func TestRelocate_UntouchedAndMalformed(t *testing.T) {
	pos := geom.V(9, 9, 9)
	cube := testCube(pos)
	outs := Relocate([]Task{Remove(geom.Box(0, 0, 0, 1, 1, 1))}, pos, 4, cube, DefaultConfig(), nil)
	require.Len(t, outs, 1)
	assert.Equal(t, Output{Pos: pos, Priority: 4, Cube: cube}, outs[0])

	bad := nbt.Compound{"Level": nbt.Compound{"x": nbt.Int(0)}}
	set, err := Set(geom.AllBox(), 1, 0)
	require.NoError(t, err)
	assert.Empty(t, Relocate([]Task{set}, pos, 0, bad, DefaultConfig(), nil))

	_, err = set.Apply(pos, 0, bad, DefaultConfig())
	assert.ErrorIs(t, err, ErrMalformedCube)
}

func TestInverse(t *testing.T) {
	inv := Move(geom.Box(0, 0, 0, 1, 1, 1), geom.V(5, 0, 0)).Inverse()
	require.Len(t, inv, 2)
	for _, task := range inv {
		assert.Equal(t, KindMove, task.Kind)
		assert.True(t, task.Offset.IsZero())
	}
	assert.Equal(t, geom.Box(5, 0, 0, 6, 1, 1), inv[0].Box)
	assert.Equal(t, geom.Box(0, 0, 0, 1, 1, 1), inv[1].Box)
	assert.Empty(t, ConfigTask(nil, nil).Inverse())
}

func TestInvert_RestoresEveryWrittenBox(t *testing.T) {
	tasks := []Task{
		Copy(geom.Box(0, 0, 0, 1, 1, 1), geom.V(0, 4, 0)),
		ConfigTask(nil, nil),
		Remove(geom.Box(8, 8, 8, 9, 9, 9)),
	}
	inv := Invert(tasks)
	require.Len(t, inv, 2)
	assert.Equal(t, geom.Box(0, 4, 0, 1, 5, 1), inv[0].Box)
	assert.Equal(t, geom.Box(8, 8, 8, 9, 9, 9), inv[1].Box)

	var written []geom.BoundingBox
	for _, task := range tasks {
		written = append(written, task.DstBoxes()...)
	}
	var restored []geom.BoundingBox
	for _, task := range inv {
		assert.Equal(t, KindMove, task.Kind)
		restored = append(restored, task.SrcBoxes()...)
	}
	for _, b := range written {
		assert.Contains(t, restored, b)
	}
	assert.Empty(t, Invert(nil))
}

func TestParse(t *testing.T) {
	script := `
# relocate spawn
keep all
cut 0 0 0 1 1 1
mv 0 0 0 1 1 1 to 10 0 10
cp 0 0 0 1 1 1 by 0 5 0
// comments either way
del 4 4 4 5 5 5
set 0 0 0 1 1 1 35 14
replace all like 1 * with 3 0
rotate 0 0 0 2 2 2 around 1 0 1 180
relight 0 0 0 1 1 1
config relight dst off
`
	tasks, err := NewParser("").Parse(strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, tasks, 10)

	kinds := make([]Kind, len(tasks))
	for i, task := range tasks {
		kinds[i] = task.Kind
	}
	assert.Equal(t, []Kind{KindKeep, KindCut, KindMove, KindCopy, KindRemove, KindSet, KindReplace, KindRotate, KindRetrack, KindConfig}, kinds)
	assert.Equal(t, geom.AllBox(), tasks[0].Box)
	assert.Nil(t, tasks[1].Offset)
	assert.Equal(t, geom.V(10, 0, 10), *tasks[2].Offset)
	assert.Equal(t, geom.V(0, 5, 0), *tasks[3].Offset)
	assert.Equal(t, AnyMeta, tasks[6].InMeta)
	assert.Equal(t, 180, tasks[7].Degrees)
	assert.Nil(t, tasks[9].RelightSrc)
	require.NotNil(t, tasks[9].RelightDst)
	assert.False(t, *tasks[9].RelightDst)
}

func TestParse_ReportsLine(t *testing.T) {
	_, err := NewParser("").Parse(strings.NewReader("keep all\n\nmove 0 0 0 1 1 1 sideways 1 1 1\n"))
	require.Error(t, err)
	var le *LineError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 3, le.Line)
	assert.ErrorIs(t, err, ErrSyntax)

	_, err = NewParser("").Parse(strings.NewReader("explode all"))
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 1, le.Line)

	_, err = NewParser("").Parse(strings.NewReader("set all 300 0"))
	assert.ErrorIs(t, err, ErrInvalidTask)

	_, err = NewParser("").Parse(strings.NewReader("remove all extra"))
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestParse_Schematic(t *testing.T) {
	s := &schematic.Schematic{Width: 1, Height: 1, Length: 1, Blocks: []byte{1}, Data: []byte{0}}
	var loaded string
	p := NewParser("/maps")
	p.LoadSchematic = func(path string) (*schematic.Schematic, error) {
		loaded = path
		return s, nil
	}
	tasks, err := p.Parse(strings.NewReader(
		"schematic house.schematic dim 0 at 32 64 32 skipAir\n" +
			"schematic /abs.schematic dim DIM-1 transform 1 0 0 0 0 1 0 0 0 0 1 0 0 0 0 1\n"))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "/abs.schematic", loaded)
	assert.Equal(t, "", tasks[0].Dimension)
	assert.True(t, tasks[0].SkipAir)
	assert.Equal(t, geom.Box(2, 4, 2, 3, 5, 3), tasks[0].SrcBoxes()[0])
	assert.Equal(t, "DIM-1", tasks[1].Dimension)
}

func TestNewRegistry_Collisions(t *testing.T) {
	noop := func(*Parser, *Args) ([]Task, error) { return nil, nil }
	_, err := NewRegistry([]Command{{Name: "a", Build: noop}, {Name: "a", Build: noop}})
	assert.Error(t, err)
	_, err = NewRegistry([]Command{{Name: "a", Aliases: []string{"b"}, Build: noop}, {Name: "b", Build: noop}})
	assert.Error(t, err)
	_, err = NewRegistry([]Command{{Name: "a"}})
	assert.Error(t, err)

	r := DefaultRegistry()
	for alias, name := range map[string]string{"mv": "move", "cp": "copy", "rm": "remove", "del": "remove", "relight": "retrack", "MOVE": "move"} {
		cmd, ok := r.Resolve(alias)
		require.True(t, ok, alias)
		assert.Equal(t, name, cmd.Name)
	}
}

func TestLoadYAML(t *testing.T) {
	doc := `
config:
  relight_src: false
tasks:
  - op: keep
    box: all
  - op: move
    box: [0, 0, 0, 1, 1, 1]
    to: [4, 0, 0]
  - op: rm
    box: [2, 2, 2, 3, 3, 3]
  - op: replace
    box: all
    in_id: 1
    in_meta: "*"
    out_id: 2
    out_meta: 0
  - op: rotate
    box: [0, 0, 0, 1, 0, 1]
    origin: [0, 0, 0]
    degrees: 270
`
	tasks, err := NewParser("").LoadYAML([]byte(doc))
	require.NoError(t, err)
	require.Len(t, tasks, 6)
	assert.Equal(t, KindConfig, tasks[0].Kind)
	require.NotNil(t, tasks[0].RelightSrc)
	assert.False(t, *tasks[0].RelightSrc)
	assert.Equal(t, geom.AllBox(), tasks[1].Box)
	assert.Equal(t, geom.V(4, 0, 0), *tasks[2].Offset)
	assert.Equal(t, KindRemove, tasks[3].Kind)
	assert.Equal(t, AnyMeta, tasks[4].InMeta)
	assert.Equal(t, 270, tasks[5].Degrees)

	_, err = NewParser("").LoadYAML([]byte("tasks:\n  - op: move\n    box: [0, 0, 0]\n"))
	assert.Error(t, err)
	_, err = NewParser("").LoadYAML([]byte("tasks:\n  - op: copy\n    box: all\n"))
	assert.Error(t, err)
}

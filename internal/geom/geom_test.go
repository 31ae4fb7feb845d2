package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewBox_Normalizes(t *testing.T) {
	b := Box(5, -1, 3, 1, 2, -3)
	assert.Equal(t, V(1, -1, -3), b.Min)
	assert.Equal(t, V(5, 2, 3), b.Max)
}

func TestBox_ContainsInclusive(t *testing.T) {
	b := Box(0, 0, 0, 2, 2, 2)
	assert.True(t, b.Contains(V(0, 0, 0)))
	assert.True(t, b.Contains(V(2, 2, 2)))
	assert.False(t, b.Contains(V(3, 2, 2)))
	assert.False(t, b.Contains(V(0, -1, 0)))
}

func TestBox_Intersects(t *testing.T) {
	a := Box(0, 0, 0, 4, 4, 4)
	assert.True(t, a.Intersects(Box(4, 4, 4, 8, 8, 8)))
	assert.False(t, a.Intersects(Box(5, 0, 0, 8, 4, 4)))
}

func TestBox_RegionCoordsNegative(t *testing.T) {
	b := Box(-17, 0, 15, 16, 31, 32).RegionCoords(V(16, 16, 16))
	assert.Equal(t, V(-2, 0, 0), b.Min)
	assert.Equal(t, V(1, 1, 2), b.Max)
}

func TestFloorDivMod(t *testing.T) {
	assert.Equal(t, -1, FloorDiv(-1, 32))
	assert.Equal(t, 31, FloorMod(-1, 32))
	assert.Equal(t, 0, FloorDiv(31, 32))
	assert.Equal(t, 8, CeilDiv(4096, 512))
	assert.Equal(t, 1, CeilDiv(104, 512))
}

func TestMatrix_TranslateAndInverse(t *testing.T) {
	m := Translation(V(10, -5, 3))
	assert.Equal(t, V(11, -4, 4), m.Apply(V(1, 1, 1)))

	inv, err := m.Inverse()
	require.NoError(t, err)
	assert.Equal(t, V(1, 1, 1), inv.Apply(V(11, -4, 4)))
}

func TestMatrix_SingularInverse(t *testing.T) {
	var m Matrix4
	_, err := m.Inverse()
	assert.ErrorIs(t, err, ErrSingular)
}

func TestPropertyNewBoxAlwaysNormalized(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := rapid.IntRange(-1000, 1000)
		b := Box(c.Draw(t, "x1"), c.Draw(t, "y1"), c.Draw(t, "z1"), c.Draw(t, "x2"), c.Draw(t, "y2"), c.Draw(t, "z2"))
		if b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z {
			t.Fatalf("box not normalized: %s", b)
		}
		if !b.Contains(b.Min) || !b.Contains(b.Max) {
			t.Fatalf("box %s does not contain its corners", b)
		}
	})
}

func TestPropertyTranslationInverseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := rapid.IntRange(-10000, 10000)
		off := V(c.Draw(t, "ox"), c.Draw(t, "oy"), c.Draw(t, "oz"))
		p := V(c.Draw(t, "x"), c.Draw(t, "y"), c.Draw(t, "z"))
		m := Translation(off)
		inv, err := m.Inverse()
		if err != nil {
			t.Fatal(err)
		}
		if got := inv.Apply(m.Apply(p)); got != p {
			t.Fatalf("round trip of %s through %s gave %s", p, off, got)
		}
	})
}

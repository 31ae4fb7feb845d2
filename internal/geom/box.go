package geom

import "fmt"

// allExtent bounds the "all" box. Kept well inside int32 so translating the
// box by any cube offset cannot wrap.
const allExtent = 1 << 30

// BoundingBox is an inclusive, axis-aligned integer box. Min is always <= Max
// component-wise; construct it through NewBox or Box to keep that invariant.
type BoundingBox struct {
	Min Vec3
	Max Vec3
}

// NewBox returns the normalized box spanning the two corners.
//
// Postcondition: result.Min <= result.Max on every axis.
func NewBox(a, b Vec3) BoundingBox {
	return BoundingBox{
		Min: Vec3{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: Vec3{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

// Box is shorthand for NewBox(V(x1, y1, z1), V(x2, y2, z2)).
func Box(x1, y1, z1, x2, y2, z2 int) BoundingBox {
	return NewBox(V(x1, y1, z1), V(x2, y2, z2))
}

// AllBox returns a box covering every reachable cube coordinate.
func AllBox() BoundingBox {
	return Box(-allExtent, -allExtent, -allExtent, allExtent, allExtent, allExtent)
}

// Contains reports whether the point p lies inside the box.
func (b BoundingBox) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Intersects reports whether the two boxes share at least one point.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

// Translate returns the box moved by offset.
func (b BoundingBox) Translate(offset Vec3) BoundingBox {
	return BoundingBox{Min: b.Min.Add(offset), Max: b.Max.Add(offset)}
}

// RegionCoords projects the box onto the region grid of the given extent.
//
// Precondition: every extent component is > 0.
func (b BoundingBox) RegionCoords(extent Vec3) BoundingBox {
	return BoundingBox{
		Min: Vec3{
			X: FloorDiv(b.Min.X, extent.X),
			Y: FloorDiv(b.Min.Y, extent.Y),
			Z: FloorDiv(b.Min.Z, extent.Z),
		},
		Max: Vec3{
			X: FloorDiv(b.Max.X, extent.X),
			Y: FloorDiv(b.Max.Y, extent.Y),
			Z: FloorDiv(b.Max.Z, extent.Z),
		},
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%s -> %s]", b.Min, b.Max)
}

// AnyContains reports whether any of boxes contains p.
func AnyContains(boxes []BoundingBox, p Vec3) bool {
	for _, b := range boxes {
		if b.Contains(p) {
			return true
		}
	}
	return false
}

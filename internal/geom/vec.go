// Package geom provides the integer vector, bounding box, and affine
// transform primitives used by edit tasks and the region store.
package geom

import "fmt"

// Vec3 is an integer 3-component vector. Depending on context it holds cube,
// block, or region coordinates.
type Vec3 struct {
	X, Y, Z int
}

// V returns the vector (x, y, z).
func V(x, y, z int) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v multiplied component-wise by k.
func (v Vec3) Scale(k int) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// IsZero reports whether all components are zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%d, %d, %d)", v.X, v.Y, v.Z)
}

// FloorDiv divides a by b rounding toward negative infinity.
//
// Precondition: b > 0.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && (a < 0) {
		q--
	}
	return q
}

// FloorMod returns a mod b in [0, b).
//
// Precondition: b > 0.
func FloorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// CeilDiv divides a by b rounding toward positive infinity.
//
// Precondition: b > 0.
func CeilDiv(a, b int) int {
	return -FloorDiv(-a, b)
}

package geom

import (
	"errors"
	"math"
)

// ErrSingular is returned when inverting a matrix with zero determinant.
var ErrSingular = errors.New("geom: matrix is not invertible")

// Matrix4 is a row-major 4x4 affine transform applied to column vectors:
// p' = M * (x, y, z, 1).
type Matrix4 [4][4]float64

// Identity returns the identity transform.
func Identity() Matrix4 {
	var m Matrix4
	for i := 0; i < 4; i++ {
		m[i][i] = 1
	}
	return m
}

// Translation returns the transform that adds v.
func Translation(v Vec3) Matrix4 {
	return Identity().Translate(v)
}

// FromRows builds a matrix from 16 row-major values.
//
// Precondition: len(vals) == 16.
func FromRows(vals []float64) Matrix4 {
	var m Matrix4
	for i, v := range vals[:16] {
		m[i/4][i%4] = v
	}
	return m
}

// Mul returns m * o.
func (m Matrix4) Mul(o Matrix4) Matrix4 {
	var r Matrix4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var s float64
			for k := 0; k < 4; k++ {
				s += m[i][k] * o[k][j]
			}
			r[i][j] = s
		}
	}
	return r
}

// Translate returns m * Translation(v), so v is applied before m.
func (m Matrix4) Translate(v Vec3) Matrix4 {
	x, y, z := float64(v.X), float64(v.Y), float64(v.Z)
	for r := 0; r < 4; r++ {
		m[r][3] += m[r][0]*x + m[r][1]*y + m[r][2]*z
	}
	return m
}

// Apply transforms p and rounds each component half-up to the nearest integer.
func (m Matrix4) Apply(p Vec3) Vec3 {
	x, y, z := float64(p.X), float64(p.Y), float64(p.Z)
	return Vec3{
		X: roundHalfUp(m[0][0]*x + m[0][1]*y + m[0][2]*z + m[0][3]),
		Y: roundHalfUp(m[1][0]*x + m[1][1]*y + m[1][2]*z + m[1][3]),
		Z: roundHalfUp(m[2][0]*x + m[2][1]*y + m[2][2]*z + m[2][3]),
	}
}

// Inverse returns the inverse of m computed by Gauss-Jordan elimination with
// partial pivoting.
func (m Matrix4) Inverse() (Matrix4, error) {
	a := m
	inv := Identity()
	for col := 0; col < 4; col++ {
		pivot := col
		for r := col + 1; r < 4; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return Matrix4{}, ErrSingular
		}
		a[col], a[pivot] = a[pivot], a[col]
		inv[col], inv[pivot] = inv[pivot], inv[col]

		p := a[col][col]
		for c := 0; c < 4; c++ {
			a[col][c] /= p
			inv[col][c] /= p
		}
		for r := 0; r < 4; r++ {
			if r == col {
				continue
			}
			f := a[r][col]
			if f == 0 {
				continue
			}
			for c := 0; c < 4; c++ {
				a[r][c] -= f * a[col][c]
				inv[r][c] -= f * inv[col][c]
			}
		}
	}
	return inv, nil
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

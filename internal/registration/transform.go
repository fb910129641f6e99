// Package registration computes the similarity transform (rotation,
// uniform scale, translation) that best aligns a phantom's defined
// landmarks with their recorded tracker-frame positions, and the mean
// residual alignment error.
package registration

import (
	"math"

	"github.com/banshee-data/phantom.register/internal/landmark"
)

// MatrixValidationTolerance is the tolerance used when checking that a
// transform's rotation block is a proper (non-reflective) rotation.
const MatrixValidationTolerance = 1e-6

// Transform is a 4x4 homogeneous similarity transform stored row-major
// as [16]float64: m00,m01,m02,m03, m10,... The upper-left 3x3 block is
// scale*rotation, column 3 (rows 0-2) is the translation, and the last
// row is [0 0 0 1]. It maps a defined-frame (phantom) point into the
// recorded (tracker reference) frame.
type Transform struct {
	T [16]float64 `json:"matrix"`
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{T: [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}}
}

// Apply maps a defined-frame point into the recorded frame, treating p
// as a homogeneous point with fourth coordinate 1.
func (tr Transform) Apply(p landmark.Point3) landmark.Point3 {
	T := tr.T
	return landmark.Point3{
		X: T[0]*p.X + T[1]*p.Y + T[2]*p.Z + T[3],
		Y: T[4]*p.X + T[5]*p.Y + T[6]*p.Z + T[7],
		Z: T[8]*p.X + T[9]*p.Y + T[10]*p.Z + T[11],
	}
}

// Scale returns the isotropic scale factor, recovered as the cube root
// of the determinant of the upper-left 3x3 block (det(s*R) = s^3 for a
// proper rotation R).
func (tr Transform) Scale() float64 {
	return math.Cbrt(tr.det3())
}

// Translation returns the translation component.
func (tr Transform) Translation() landmark.Point3 {
	return landmark.Point3{X: tr.T[3], Y: tr.T[7], Z: tr.T[11]}
}

// Rotation returns the pure rotation block (scale divided out) as a
// row-major [9]float64. Only meaningful for a valid similarity
// transform with positive scale.
func (tr Transform) Rotation() [9]float64 {
	s := tr.Scale()
	if s == 0 {
		return [9]float64{}
	}
	T := tr.T
	return [9]float64{
		T[0] / s, T[1] / s, T[2] / s,
		T[4] / s, T[5] / s, T[6] / s,
		T[8] / s, T[9] / s, T[10] / s,
	}
}

func (tr Transform) det3() float64 {
	T := tr.T
	return T[0]*(T[5]*T[10]-T[6]*T[9]) -
		T[1]*(T[4]*T[10]-T[6]*T[8]) +
		T[2]*(T[4]*T[9]-T[5]*T[8])
}

// IsValidSimilarity checks that the matrix is a well-formed similarity
// transform: positive scale, orthonormal rotation once the scale is
// divided out (never a reflection), and homogeneous last row.
func (tr Transform) IsValidSimilarity() bool {
	T := tr.T
	if T[12] != 0 || T[13] != 0 || T[14] != 0 || math.Abs(T[15]-1.0) > MatrixValidationTolerance {
		return false
	}

	s := tr.Scale()
	if !(s > 0) || math.IsInf(s, 0) || math.IsNaN(s) {
		return false
	}

	// With the scale divided out, rows of the rotation block must be
	// orthonormal: R * R^T = I.
	r := tr.Rotation()
	rows := [3][3]float64{
		{r[0], r[1], r[2]},
		{r[3], r[4], r[5]},
		{r[6], r[7], r[8]},
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dot := rows[i][0]*rows[j][0] + rows[i][1]*rows[j][1] + rows[i][2]*rows[j][2]
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(dot-want) > 1e-3 {
				return false
			}
		}
	}
	return true
}

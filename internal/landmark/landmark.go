// Package landmark holds the point-correspondence model used by phantom
// registration: a set of defined landmarks (known positions in the
// phantom's own coordinate frame) paired by index with recorded
// landmarks (the same physical points as digitized in the tracker's
// reference frame).
package landmark

import "math"

// Point3 is a 3D point or vector in some coordinate frame.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p - q.
func (p Point3) Sub(q Point3) Point3 {
	return Point3{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Add returns p + q.
func (p Point3) Add(q Point3) Point3 {
	return Point3{p.X + q.X, p.Y + q.Y, p.Z + q.Z}
}

// Scale returns s*p.
func (p Point3) Scale(s float64) Point3 {
	return Point3{s * p.X, s * p.Y, s * p.Z}
}

// Dot returns the dot product p·q.
func (p Point3) Dot(q Point3) float64 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

// Distance returns the Euclidean distance between p and q.
func (p Point3) Distance(q Point3) float64 {
	d := p.Sub(q)
	return math.Sqrt(d.Dot(d))
}

// Landmark is a named 3D point. Recorded landmarks are anonymous
// measurements, so Name is only meaningful on the defined side.
type Landmark struct {
	Name     string `json:"name,omitempty"`
	Position Point3 `json:"position"`
}

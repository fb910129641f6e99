package registration

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/phantom.register/internal/landmark"
)

// degeneracyTolerance is the relative singular-value floor for the
// centered cross-covariance. The rotation is ambiguous when the
// defined points span less than a plane, i.e. when the second singular
// value collapses relative to the first. A rank-2 (planar) spectrum is
// the minimum legal configuration and is accepted.
const degeneracyTolerance = 1e-9

// Residual is the per-correspondence alignment error after applying
// the estimated transform.
type Residual struct {
	Name     string  `json:"name,omitempty"`
	Distance float64 `json:"distance"`
}

// Result is a successful registration: the phantom-to-reference
// similarity transform, the mean Euclidean residual across all
// correspondences (same length units as the input positions), the
// per-landmark residuals and the quality tier derived from the error.
type Result struct {
	Transform Transform  `json:"transform"`
	Error     float64    `json:"error"`
	Residuals []Residual `json:"residuals"`
	Quality   Quality    `json:"quality"`
}

// Estimate computes the least-squares similarity transform mapping the
// defined landmarks onto the recorded ones, minimizing
// sum_i ||s*R*d_i + t - r_i||^2 over proper rotations R, scales s > 0
// and translations t (closed-form SVD absolute orientation). The
// computation is deterministic: estimating twice on an unchanged set
// yields the same result.
func Estimate(cs *landmark.CorrespondenceSet) (*Result, error) {
	n := cs.Count()
	if cs.DefinedCount() != n {
		return nil, fmt.Errorf("%w: %d defined vs %d recorded", ErrMismatchedCounts, cs.DefinedCount(), n)
	}
	if n < 3 {
		return nil, fmt.Errorf("%w: have %d, need 3", ErrInsufficientLandmarks, n)
	}

	// Centroids of both point sets.
	var dc, rc landmark.Point3
	for i := 0; i < n; i++ {
		dc = dc.Add(cs.Defined(i).Position)
		rc = rc.Add(cs.Recorded(i))
	}
	dc = dc.Scale(1.0 / float64(n))
	rc = rc.Scale(1.0 / float64(n))

	// Cross-covariance H = sum_i d_i * r_i^T over the centered sets,
	// and the defined-point variance for the scale estimate.
	h := mat.NewDense(3, 3, nil)
	var definedVariance float64
	for i := 0; i < n; i++ {
		d := cs.Defined(i).Position.Sub(dc)
		r := cs.Recorded(i).Sub(rc)
		h.Set(0, 0, h.At(0, 0)+d.X*r.X)
		h.Set(0, 1, h.At(0, 1)+d.X*r.Y)
		h.Set(0, 2, h.At(0, 2)+d.X*r.Z)
		h.Set(1, 0, h.At(1, 0)+d.Y*r.X)
		h.Set(1, 1, h.At(1, 1)+d.Y*r.Y)
		h.Set(1, 2, h.At(1, 2)+d.Y*r.Z)
		h.Set(2, 0, h.At(2, 0)+d.Z*r.X)
		h.Set(2, 1, h.At(2, 1)+d.Z*r.Y)
		h.Set(2, 2, h.At(2, 2)+d.Z*r.Z)
		definedVariance += d.Dot(d)
	}

	var svd mat.SVD
	if ok := svd.Factorize(h, mat.SVDFull); !ok {
		return nil, fmt.Errorf("%w: SVD of cross-covariance failed to converge", ErrDegenerateGeometry)
	}
	sigma := svd.Values(nil)
	if sigma[0] <= 0 || sigma[1] < degeneracyTolerance*sigma[0] {
		return nil, fmt.Errorf("%w: cross-covariance rank below 2 (singular values %.3g, %.3g, %.3g)",
			ErrDegenerateGeometry, sigma[0], sigma[1], sigma[2])
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// Candidate rotation R = V * U^T. A negative determinant means the
	// best orthogonal alignment is a reflection, which is physically
	// impossible for a rigid phantom; flipping the sign of the column
	// associated with the smallest singular value yields the best
	// proper rotation instead.
	var r mat.Dense
	r.Mul(&v, u.T())
	if mat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			v.Set(i, 2, -v.At(i, 2))
		}
		r.Mul(&v, u.T())
	}

	// Variance-ratio scale: s = sum_i r_i . (R d_i) / sum_i d_i . d_i.
	// definedVariance > 0 is guaranteed by the rank check above.
	var num float64
	for i := 0; i < n; i++ {
		d := cs.Defined(i).Position.Sub(dc)
		num += cs.Recorded(i).Sub(rc).Dot(rotate(&r, d))
	}
	scale := num / definedVariance
	if scale <= 0 {
		return nil, fmt.Errorf("%w: non-positive scale estimate %.6g", ErrDegenerateGeometry, scale)
	}

	// t = centroid(recorded) - s * R * centroid(defined).
	t := rc.Sub(rotate(&r, dc).Scale(scale))

	transform := Transform{T: [16]float64{
		scale * r.At(0, 0), scale * r.At(0, 1), scale * r.At(0, 2), t.X,
		scale * r.At(1, 0), scale * r.At(1, 1), scale * r.At(1, 2), t.Y,
		scale * r.At(2, 0), scale * r.At(2, 1), scale * r.At(2, 2), t.Z,
		0, 0, 0, 1,
	}}

	meanErr, err := MeanError(transform, cs)
	if err != nil {
		return nil, fmt.Errorf("computing registration error: %w", err)
	}

	return &Result{
		Transform: transform,
		Error:     meanErr,
		Residuals: Residuals(transform, cs),
		Quality:   QualityForError(meanErr),
	}, nil
}

// MeanError applies the transform to each defined landmark and returns
// the arithmetic mean of the Euclidean distances to the corresponding
// recorded positions. Mean, not RMS: acceptance thresholds downstream
// are calibrated against the mean. The guards are independent of
// Estimate because a caller may invoke this with a transform obtained
// elsewhere.
func MeanError(tr Transform, cs *landmark.CorrespondenceSet) (float64, error) {
	n := cs.Count()
	if n == 0 {
		return 0, ErrEmptyCorrespondenceSet
	}
	if cs.DefinedCount() != n {
		return 0, fmt.Errorf("%w: %d defined vs %d recorded", ErrMismatchedCounts, cs.DefinedCount(), n)
	}

	var sum float64
	for i := 0; i < n; i++ {
		predicted := tr.Apply(cs.Defined(i).Position)
		sum += predicted.Distance(cs.Recorded(i))
	}
	return sum / float64(n), nil
}

// Residuals returns the per-correspondence Euclidean distances after
// applying the transform, tagged with the defined landmark names.
func Residuals(tr Transform, cs *landmark.CorrespondenceSet) []Residual {
	n := cs.Count()
	if cs.DefinedCount() != n {
		return nil
	}
	out := make([]Residual, n)
	for i := 0; i < n; i++ {
		def := cs.Defined(i)
		out[i] = Residual{
			Name:     def.Name,
			Distance: tr.Apply(def.Position).Distance(cs.Recorded(i)),
		}
	}
	return out
}

func rotate(r *mat.Dense, p landmark.Point3) landmark.Point3 {
	return landmark.Point3{
		X: r.At(0, 0)*p.X + r.At(0, 1)*p.Y + r.At(0, 2)*p.Z,
		Y: r.At(1, 0)*p.X + r.At(1, 1)*p.Y + r.At(1, 2)*p.Z,
		Z: r.At(2, 0)*p.X + r.At(2, 1)*p.Y + r.At(2, 2)*p.Z,
	}
}

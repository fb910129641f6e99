package registration

import "errors"

// Registration failures are recoverable by the caller: a typed error
// means no transform was produced, which is distinct from a successful
// result whose Error field exceeds an acceptance threshold.
var (
	// ErrInsufficientLandmarks indicates fewer than 3 correspondences,
	// an under-determined 3D similarity problem.
	ErrInsufficientLandmarks = errors.New("fewer than 3 landmark correspondences")

	// ErrMismatchedCounts indicates the defined and recorded sequences
	// have different lengths.
	ErrMismatchedCounts = errors.New("defined and recorded landmark counts differ")

	// ErrDegenerateGeometry indicates the defined landmarks are
	// (near-)collinear or coincident, leaving the rotation ambiguous.
	ErrDegenerateGeometry = errors.New("degenerate landmark geometry")

	// ErrEmptyCorrespondenceSet indicates error computation was invoked
	// with zero correspondences.
	ErrEmptyCorrespondenceSet = errors.New("empty correspondence set")
)

package registration

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/phantom.register/internal/landmark"
)

func buildSet(t *testing.T, defined, recorded []landmark.Point3) *landmark.CorrespondenceSet {
	t.Helper()
	cs := landmark.NewCorrespondenceSet()
	for i, p := range defined {
		cs.AddDefined("", p, i)
	}
	for i, p := range recorded {
		cs.AddRecorded(p, i)
	}
	return cs
}

// rotZX returns the rotation matrix Rz(alpha)*Rx(beta) row-major.
func rotZX(alpha, beta float64) [9]float64 {
	ca, sa := math.Cos(alpha), math.Sin(alpha)
	cb, sb := math.Cos(beta), math.Sin(beta)
	return [9]float64{
		ca, -sa * cb, sa * sb,
		sa, ca * cb, -ca * sb,
		0, sb, cb,
	}
}

func applyRot(r [9]float64, p landmark.Point3) landmark.Point3 {
	return landmark.Point3{
		X: r[0]*p.X + r[1]*p.Y + r[2]*p.Z,
		Y: r[3]*p.X + r[4]*p.Y + r[5]*p.Z,
		Z: r[6]*p.X + r[7]*p.Y + r[8]*p.Z,
	}
}

func TestEstimateIdentity(t *testing.T) {
	points := []landmark.Point3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}
	cs := buildSet(t, points, points)

	result, err := Estimate(cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	identity := Identity()
	for i := range result.Transform.T {
		if math.Abs(result.Transform.T[i]-identity.T[i]) > 1e-9 {
			t.Errorf("T[%d] = %v, want %v", i, result.Transform.T[i], identity.T[i])
		}
	}
	if result.Error > 1e-9 {
		t.Errorf("error = %v, want ~0", result.Error)
	}
}

func TestEstimatePureTranslation(t *testing.T) {
	defined := []landmark.Point3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}
	offset := landmark.Point3{X: 5, Y: 0, Z: 0}
	recorded := make([]landmark.Point3, len(defined))
	for i, p := range defined {
		recorded[i] = p.Add(offset)
	}
	cs := buildSet(t, defined, recorded)

	result, err := Estimate(cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s := result.Transform.Scale(); math.Abs(s-1.0) > 1e-9 {
		t.Errorf("scale = %v, want 1", s)
	}
	tr := result.Transform.Translation()
	if math.Abs(tr.X-5) > 1e-9 || math.Abs(tr.Y) > 1e-9 || math.Abs(tr.Z) > 1e-9 {
		t.Errorf("translation = %+v, want (5,0,0)", tr)
	}
	if result.Error > 1e-9 {
		t.Errorf("error = %v, want ~0", result.Error)
	}
}

func TestEstimatePureScale(t *testing.T) {
	defined := []landmark.Point3{{X: 0, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 0, Y: 2, Z: 0}}
	recorded := make([]landmark.Point3, len(defined))
	for i, p := range defined {
		recorded[i] = p.Scale(0.5)
	}
	cs := buildSet(t, defined, recorded)

	result, err := Estimate(cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s := result.Transform.Scale(); math.Abs(s-0.5) > 1e-9 {
		t.Errorf("scale = %v, want 0.5", s)
	}
	if result.Error > 1e-9 {
		t.Errorf("error = %v, want ~0", result.Error)
	}
}

func TestEstimateRecoversKnownSimilarity(t *testing.T) {
	defined := []landmark.Point3{
		{X: 0, Y: 0, Z: 0},
		{X: 10, Y: 0, Z: 0},
		{X: 0, Y: 10, Z: 0},
		{X: 0, Y: 0, Z: 10},
		{X: 7, Y: 3, Z: 5},
	}
	r0 := rotZX(0.5, 0.3)
	s0 := 1.7
	t0 := landmark.Point3{X: 1.0, Y: -2.0, Z: 3.0}

	recorded := make([]landmark.Point3, len(defined))
	for i, p := range defined {
		recorded[i] = applyRot(r0, p).Scale(s0).Add(t0)
	}
	cs := buildSet(t, defined, recorded)

	result, err := Estimate(cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s := result.Transform.Scale(); math.Abs(s-s0) > 1e-9 {
		t.Errorf("scale = %v, want %v", s, s0)
	}
	tr := result.Transform.Translation()
	if tr.Distance(t0) > 1e-8 {
		t.Errorf("translation = %+v, want %+v", tr, t0)
	}
	rot := result.Transform.Rotation()
	for i := range rot {
		if math.Abs(rot[i]-r0[i]) > 1e-9 {
			t.Errorf("rotation[%d] = %v, want %v", i, rot[i], r0[i])
		}
	}
	if result.Error > 1e-8 {
		t.Errorf("error = %v, want ~0", result.Error)
	}
	if !result.Transform.IsValidSimilarity() {
		t.Error("expected a valid similarity transform")
	}
}

// A mirrored recorded set must still yield a proper rotation: a
// reflection is physically impossible for a rigid phantom.
func TestEstimateNeverReturnsReflection(t *testing.T) {
	defined := []landmark.Point3{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
	}
	recorded := make([]landmark.Point3, len(defined))
	for i, p := range defined {
		recorded[i] = landmark.Point3{X: -p.X, Y: p.Y, Z: p.Z}
	}
	cs := buildSet(t, defined, recorded)

	result, err := Estimate(cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rot := result.Transform.Rotation()
	det := rot[0]*(rot[4]*rot[8]-rot[5]*rot[7]) -
		rot[1]*(rot[3]*rot[8]-rot[5]*rot[6]) +
		rot[2]*(rot[3]*rot[7]-rot[4]*rot[6])
	if math.Abs(det-1.0) > 1e-6 {
		t.Errorf("det(R) = %v, want +1", det)
	}
	// Mirrored data cannot be aligned by a proper rotation, so the
	// residual must be clearly non-zero.
	if result.Error < 0.01 {
		t.Errorf("error = %v, expected substantial residual for mirrored set", result.Error)
	}
}

func TestEstimateInsufficientLandmarks(t *testing.T) {
	points := []landmark.Point3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}}
	cs := buildSet(t, points, points)

	_, err := Estimate(cs)
	if !errors.Is(err, ErrInsufficientLandmarks) {
		t.Errorf("err = %v, want ErrInsufficientLandmarks", err)
	}
}

func TestEstimateMismatchedCounts(t *testing.T) {
	defined := []landmark.Point3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}
	recorded := defined[:2]
	cs := buildSet(t, defined, recorded)

	_, err := Estimate(cs)
	if !errors.Is(err, ErrMismatchedCounts) {
		t.Errorf("err = %v, want ErrMismatchedCounts", err)
	}
}

func TestEstimateCollinearDefined(t *testing.T) {
	defined := []landmark.Point3{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 2, Y: 0, Z: 0},
		{X: 3, Y: 0, Z: 0},
	}
	recorded := []landmark.Point3{
		{X: 1, Y: 1, Z: 0},
		{X: 2, Y: 1, Z: 0},
		{X: 3, Y: 1, Z: 0},
		{X: 4, Y: 1, Z: 0},
	}
	cs := buildSet(t, defined, recorded)

	_, err := Estimate(cs)
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("err = %v, want ErrDegenerateGeometry", err)
	}
}

func TestEstimateCoincidentDefined(t *testing.T) {
	p := landmark.Point3{X: 1, Y: 2, Z: 3}
	defined := []landmark.Point3{p, p, p}
	cs := buildSet(t, defined, defined)

	_, err := Estimate(cs)
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("err = %v, want ErrDegenerateGeometry", err)
	}
}

func TestEstimateIdempotent(t *testing.T) {
	defined := []landmark.Point3{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0.2, Y: 0.1, Z: 0.9},
	}
	recorded := []landmark.Point3{
		{X: 0.05, Y: 0.02, Z: -0.01},
		{X: 1.03, Y: -0.01, Z: 0.02},
		{X: -0.02, Y: 0.98, Z: 0.01},
		{X: 0.21, Y: 0.12, Z: 0.93},
	}
	cs := buildSet(t, defined, recorded)

	first, err := Estimate(cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Estimate(cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated estimation differs (-first +second):\n%s", diff)
	}
}

func TestMeanErrorMatchesResultError(t *testing.T) {
	defined := []landmark.Point3{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
	}
	// Noisy recorded set: the residual is non-zero, and MeanError on
	// the returned transform must reproduce Result.Error exactly.
	recorded := []landmark.Point3{
		{X: 0.02, Y: -0.01, Z: 0.01},
		{X: 0.99, Y: 0.03, Z: -0.02},
		{X: 0.01, Y: 1.02, Z: 0.02},
		{X: -0.03, Y: 0.01, Z: 0.98},
	}
	cs := buildSet(t, defined, recorded)

	result, err := Estimate(cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recomputed, err := MeanError(result.Transform, cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(recomputed-result.Error) > 1e-12 {
		t.Errorf("MeanError = %v, Result.Error = %v", recomputed, result.Error)
	}

	var sum float64
	for _, res := range result.Residuals {
		sum += res.Distance
	}
	if mean := sum / float64(len(result.Residuals)); math.Abs(mean-result.Error) > 1e-12 {
		t.Errorf("mean of residuals = %v, Result.Error = %v", mean, result.Error)
	}
}

// The error metric is the arithmetic mean of the distances, not RMS;
// thresholds downstream are calibrated against the mean.
func TestMeanErrorIsMeanNotRMS(t *testing.T) {
	defined := []landmark.Point3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}
	recorded := []landmark.Point3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 3}}
	cs := buildSet(t, defined, recorded)

	got, err := MeanError(Identity(), cs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-1.0) > 1e-12 {
		t.Errorf("MeanError = %v, want 1.0 (distances 0,0,3)", got)
	}
}

func TestMeanErrorEmptySet(t *testing.T) {
	cs := landmark.NewCorrespondenceSet()

	_, err := MeanError(Identity(), cs)
	if !errors.Is(err, ErrEmptyCorrespondenceSet) {
		t.Errorf("err = %v, want ErrEmptyCorrespondenceSet", err)
	}
}

func TestMeanErrorMismatchedCounts(t *testing.T) {
	cs := landmark.NewCorrespondenceSet()
	cs.AddDefined("a", landmark.Point3{}, 0)
	cs.AddRecorded(landmark.Point3{}, 0)
	cs.AddRecorded(landmark.Point3{X: 1}, 1)

	_, err := MeanError(Identity(), cs)
	if !errors.Is(err, ErrMismatchedCounts) {
		t.Errorf("err = %v, want ErrMismatchedCounts", err)
	}
}

package registration

// Quality is the assessed quality tier of a registration, derived from
// the mean residual error.
type Quality string

const (
	// QualityExcellent indicates mean error < 0.5mm.
	QualityExcellent Quality = "excellent"
	// QualityGood indicates mean error 0.5-1.5mm, fine for routine use.
	QualityGood Quality = "good"
	// QualityFair indicates mean error 1.5-3.0mm, usable but consider
	// re-digitizing the landmarks.
	QualityFair Quality = "fair"
	// QualityPoor indicates mean error > 3.0mm, registration should be
	// repeated.
	QualityPoor Quality = "poor"
)

// Quality mean-error thresholds. Positions are unit-agnostic, but the
// thresholds are calibrated for phantom definitions in millimetres;
// callers working in other units should apply their own acceptance
// threshold to Result.Error instead.
const (
	ErrorThresholdExcellent = 0.5
	ErrorThresholdGood      = 1.5
	ErrorThresholdFair      = 3.0
)

// QualityForError maps a mean residual error to a quality tier.
func QualityForError(meanError float64) Quality {
	switch {
	case meanError < ErrorThresholdExcellent:
		return QualityExcellent
	case meanError < ErrorThresholdGood:
		return QualityGood
	case meanError < ErrorThresholdFair:
		return QualityFair
	default:
		return QualityPoor
	}
}

// IsAcceptable reports whether the registration should be accepted
// against a caller-defined mean-error threshold.
func IsAcceptable(result *Result, threshold float64) bool {
	return result != nil && result.Error <= threshold
}

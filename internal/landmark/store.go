package landmark

// CorrespondenceSet is the correspondence store for one registration
// attempt: two parallel ordered sequences related by shared index,
// defined[i] and recorded[i] referring to the same physical point.
//
// Insertion at an index beyond the current length grows the sequence
// with zero-valued placeholders; insertion at an already-used index
// overwrites it. No validation happens here: a store may transiently
// hold mismatched or too-few points, and the estimator rejects such a
// set when registration is attempted.
//
// A CorrespondenceSet is not safe for concurrent mutation; each
// registration request operates on its own instance.
type CorrespondenceSet struct {
	defined  []Landmark
	recorded []Point3
}

// NewCorrespondenceSet returns an empty correspondence store.
func NewCorrespondenceSet() *CorrespondenceSet {
	return &CorrespondenceSet{}
}

// Reset clears both sequences. Safe to call on an empty store.
func (cs *CorrespondenceSet) Reset() {
	cs.defined = cs.defined[:0]
	cs.recorded = cs.recorded[:0]
}

// AddDefined inserts a defined (phantom-frame) landmark at a 0-based
// index, overwriting any previous entry at that index.
func (cs *CorrespondenceSet) AddDefined(name string, position Point3, index int) {
	if index < 0 {
		return
	}
	for len(cs.defined) <= index {
		cs.defined = append(cs.defined, Landmark{})
	}
	cs.defined[index] = Landmark{Name: name, Position: position}
}

// AddRecorded inserts a recorded (tracker-frame) position at a 0-based
// index, overwriting any previous entry at that index.
func (cs *CorrespondenceSet) AddRecorded(position Point3, index int) {
	if index < 0 {
		return
	}
	for len(cs.recorded) <= index {
		cs.recorded = append(cs.recorded, Point3{})
	}
	cs.recorded[index] = position
}

// Count reports the number of recorded points, the operative count for
// registration. It is the caller's duty to have inserted a matching
// defined entry at every used index.
func (cs *CorrespondenceSet) Count() int {
	return len(cs.recorded)
}

// DefinedCount reports the number of defined landmarks held.
func (cs *CorrespondenceSet) DefinedCount() int {
	return len(cs.defined)
}

// Defined returns the defined landmark at index i.
func (cs *CorrespondenceSet) Defined(i int) Landmark {
	return cs.defined[i]
}

// Recorded returns the recorded position at index i.
func (cs *CorrespondenceSet) Recorded(i int) Point3 {
	return cs.recorded[i]
}

package phantom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/phantom.register/internal/landmark"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadDefinition(t *testing.T) {
	path := writeTemp(t, "phantom.yaml", `
phantom:
  name: fCal-2.1
  landmarks:
    - name: "#1"
      position: [95.0, 5.0, 15.0]
    - name: "#2"
      position: [95.0, 40.0, 15.0]
    - name: "#3"
      position: [25.0, 40.0, 15.0]
`)

	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.Name != "fCal-2.1" {
		t.Errorf("Name = %q", def.Name)
	}
	if len(def.Landmarks) != 3 {
		t.Fatalf("got %d landmarks, want 3", len(def.Landmarks))
	}
	if def.Landmarks[1].Index != 1 {
		t.Errorf("Index = %d, want 1", def.Landmarks[1].Index)
	}
	want := landmark.Point3{X: 95.0, Y: 40.0, Z: 15.0}
	if def.Landmarks[1].Landmark.Position != want {
		t.Errorf("Position = %+v, want %+v", def.Landmarks[1].Landmark.Position, want)
	}
}

// Malformed entries are skipped with a warning; the surviving entries
// keep their original document indices so recorded landmarks stay
// correlated.
func TestLoadDefinitionSkipsInvalidEntries(t *testing.T) {
	path := writeTemp(t, "phantom.yaml", `
phantom:
  name: partial
  landmarks:
    - name: ok-0
      position: [1.0, 0.0, 0.0]
    - name: missing-position
    - name: short-position
      position: [1.0, 2.0]
    - name: ok-3
      position: [0.0, 1.0, 0.0]
`)

	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(def.Landmarks) != 2 {
		t.Fatalf("got %d valid landmarks, want 2", len(def.Landmarks))
	}
	if def.Landmarks[0].Index != 0 || def.Landmarks[1].Index != 3 {
		t.Errorf("indices = %d,%d, want 0,3", def.Landmarks[0].Index, def.Landmarks[1].Index)
	}
	if def.Landmarks[1].Landmark.Name != "ok-3" {
		t.Errorf("Name = %q, want ok-3", def.Landmarks[1].Landmark.Name)
	}
}

func TestLoadDefinitionAllInvalid(t *testing.T) {
	path := writeTemp(t, "phantom.yaml", `
phantom:
  name: broken
  landmarks:
    - name: a
    - name: b
      position: [1.0]
`)

	if _, err := LoadDefinition(path); err == nil {
		t.Error("expected error when no valid landmarks remain")
	}
}

func TestLoadDefinitionMissingFile(t *testing.T) {
	if _, err := LoadDefinition(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadDefinitionNoLandmarks(t *testing.T) {
	path := writeTemp(t, "phantom.yaml", `
phantom:
  name: empty
`)
	if _, err := LoadDefinition(path); err == nil {
		t.Error("expected error for definition without landmarks")
	}
}

func TestLoadRecorded(t *testing.T) {
	path := writeTemp(t, "recorded.yaml", `
recorded:
  - [0.1, 0.2, 0.3]
  - [1.1, 1.2, 1.3]
`)

	points, err := LoadRecorded(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[1] != (landmark.Point3{X: 1.1, Y: 1.2, Z: 1.3}) {
		t.Errorf("points[1] = %+v", points[1])
	}
}

func TestLoadRecordedBadArity(t *testing.T) {
	path := writeTemp(t, "recorded.yaml", `
recorded:
  - [0.1, 0.2]
`)
	if _, err := LoadRecorded(path); err == nil {
		t.Error("expected error for 2-coordinate recorded position")
	}
}

func TestBuildCorrespondences(t *testing.T) {
	def := &Definition{
		Name: "p",
		Landmarks: []DefinedLandmark{
			{Index: 0, Landmark: landmark.Landmark{Name: "a", Position: landmark.Point3{X: 1}}},
			{Index: 2, Landmark: landmark.Landmark{Name: "c", Position: landmark.Point3{X: 3}}},
		},
	}
	recorded := []landmark.Point3{{X: 1.1}, {X: 2.1}, {X: 3.1}}

	cs := BuildCorrespondences(def, recorded)

	if cs.Count() != 3 {
		t.Errorf("Count = %d, want 3", cs.Count())
	}
	if cs.DefinedCount() != 3 {
		t.Errorf("DefinedCount = %d, want 3 (index 2 forces growth)", cs.DefinedCount())
	}
	if got := cs.Defined(2).Name; got != "c" {
		t.Errorf("Defined(2).Name = %q, want c", got)
	}
	// Index 1 was invalid in the definition, so it remains a zero
	// placeholder and the estimator will see the gap.
	if got := cs.Defined(1); got != (landmark.Landmark{}) {
		t.Errorf("Defined(1) = %+v, want placeholder", got)
	}
}

// Package phantom loads landmark documents: the phantom definition
// (named landmark positions in the phantom's own frame) and the
// recorded positions digitized in the tracker's reference frame.
package phantom

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/phantom.register/internal/landmark"
)

// DefinedLandmark is a valid phantom-definition entry together with
// its 0-based index in the source document. The index, not the
// position in the valid-entry slice, correlates it with a recorded
// landmark, so skipped invalid entries never shift the pairing.
type DefinedLandmark struct {
	Index    int
	Landmark landmark.Landmark
}

// Definition is a loaded phantom definition.
type Definition struct {
	Name      string
	Landmarks []DefinedLandmark
}

type definitionDoc struct {
	Phantom struct {
		Name      string      `yaml:"name"`
		Landmarks []yaml.Node `yaml:"landmarks"`
	} `yaml:"phantom"`
}

type landmarkEntry struct {
	Name     string    `yaml:"name"`
	Position []float64 `yaml:"position"`
}

// LoadDefinition loads a phantom definition from a YAML file.
//
// Loading is lenient per entry: a landmark with a malformed or
// missing position is logged and skipped rather than aborting the
// load, and only a document with no valid landmark at all is an
// error. Callers needing at least 3 non-collinear landmarks find out
// at registration time.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("phantom definition not found: %s", path)
		}
		return nil, fmt.Errorf("reading phantom definition: %w", err)
	}

	var doc definitionDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing phantom definition YAML: %w", err)
	}
	if len(doc.Phantom.Landmarks) == 0 {
		return nil, fmt.Errorf("phantom definition has no landmarks")
	}

	def := &Definition{Name: doc.Phantom.Name}
	for i, node := range doc.Phantom.Landmarks {
		var entry landmarkEntry
		if err := node.Decode(&entry); err != nil {
			log.Printf("Warning: invalid landmark definition at index %d: %v", i, err)
			continue
		}
		if len(entry.Position) != 3 {
			log.Printf("Warning: invalid landmark position at index %d (%q): want 3 coordinates, got %d",
				i, entry.Name, len(entry.Position))
			continue
		}
		def.Landmarks = append(def.Landmarks, DefinedLandmark{
			Index: i,
			Landmark: landmark.Landmark{
				Name: entry.Name,
				Position: landmark.Point3{
					X: entry.Position[0],
					Y: entry.Position[1],
					Z: entry.Position[2],
				},
			},
		})
	}

	if len(def.Landmarks) == 0 {
		return nil, fmt.Errorf("no valid landmarks in phantom definition %s", path)
	}
	if len(def.Landmarks) != len(doc.Phantom.Landmarks) {
		log.Printf("Warning: %d of %d landmark definitions were invalid and skipped",
			len(doc.Phantom.Landmarks)-len(def.Landmarks), len(doc.Phantom.Landmarks))
	}
	return def, nil
}

type recordedDoc struct {
	Recorded [][]float64 `yaml:"recorded"`
}

// LoadRecorded loads recorded landmark positions from a YAML file: an
// ordered list of 3-coordinate positions, one per defined landmark,
// correlated by order. Recorded positions are machine-produced, so a
// malformed entry is an error rather than a skip.
func LoadRecorded(path string) ([]landmark.Point3, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("recorded landmarks file not found: %s", path)
		}
		return nil, fmt.Errorf("reading recorded landmarks: %w", err)
	}

	var doc recordedDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing recorded landmarks YAML: %w", err)
	}

	points := make([]landmark.Point3, 0, len(doc.Recorded))
	for i, pos := range doc.Recorded {
		if len(pos) != 3 {
			return nil, fmt.Errorf("recorded landmark %d: want 3 coordinates, got %d", i, len(pos))
		}
		points = append(points, landmark.Point3{X: pos[0], Y: pos[1], Z: pos[2]})
	}
	return points, nil
}

// BuildCorrespondences assembles a correspondence store from a phantom
// definition and an ordered recorded sequence. Defined landmarks keep
// their document indices; recorded positions are inserted in order.
func BuildCorrespondences(def *Definition, recorded []landmark.Point3) *landmark.CorrespondenceSet {
	cs := landmark.NewCorrespondenceSet()
	for _, dl := range def.Landmarks {
		cs.AddDefined(dl.Landmark.Name, dl.Landmark.Position, dl.Index)
	}
	for i, p := range recorded {
		cs.AddRecorded(p, i)
	}
	return cs
}

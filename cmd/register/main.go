// Command register performs a one-shot phantom registration: it loads
// a phantom definition and a recorded-landmark document, estimates the
// phantom-to-reference similarity transform, and prints the transform
// with its mean residual error.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/phantom.register/internal/db"
	"github.com/banshee-data/phantom.register/internal/phantom"
	"github.com/banshee-data/phantom.register/internal/registration"
)

var (
	phantomPath  = flag.String("phantom", "", "Phantom definition YAML (required)")
	recordedPath = flag.String("recorded", "", "Recorded landmark positions YAML (required)")
	dbPath       = flag.String("db", "", "Optional registration history database to record the result into")
	plotPath     = flag.String("plot", "", "Optional PNG path for a per-landmark residual chart")
	threshold    = flag.Float64("threshold", 0, "Optional acceptance threshold for the mean error; exceeding it exits non-zero")
)

func main() {
	flag.Parse()

	if *phantomPath == "" || *recordedPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	definition, err := phantom.LoadDefinition(*phantomPath)
	if err != nil {
		log.Fatalf("failed to load phantom definition: %v", err)
	}

	recorded, err := phantom.LoadRecorded(*recordedPath)
	if err != nil {
		log.Fatalf("failed to load recorded landmarks: %v", err)
	}

	cs := phantom.BuildCorrespondences(definition, recorded)
	result, err := registration.Estimate(cs)
	if err != nil {
		log.Fatalf("registration failed: %v", err)
	}

	fmt.Printf("Phantom:     %s\n", definition.Name)
	fmt.Printf("Landmarks:   %d\n", cs.Count())
	fmt.Printf("Mean error:  %.4f\n", result.Error)
	fmt.Printf("Quality:     %s\n", result.Quality)
	fmt.Printf("Scale:       %.6f\n", result.Transform.Scale())
	fmt.Println("PhantomToReference transform:")
	for row := 0; row < 4; row++ {
		T := result.Transform.T
		fmt.Printf("  [% .6f % .6f % .6f % .6f]\n",
			T[row*4], T[row*4+1], T[row*4+2], T[row*4+3])
	}
	for _, res := range result.Residuals {
		name := res.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  residual %-16s %.4f\n", name, res.Distance)
	}

	if *plotPath != "" {
		if err := registration.SaveResidualPlot(result, *plotPath); err != nil {
			log.Fatalf("failed to write residual plot: %v", err)
		}
		log.Printf("residual plot written to %s", *plotPath)
	}

	if *dbPath != "" {
		database, err := db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()

		transformJSON, _ := json.Marshal(result.Transform)
		residualsJSON, _ := json.Marshal(result.Residuals)
		id, err := database.InsertRegistration(db.RegistrationRecord{
			PhantomName:   definition.Name,
			LandmarkCount: cs.Count(),
			Transform:     transformJSON,
			MeanError:     result.Error,
			Quality:       string(result.Quality),
			Residuals:     residualsJSON,
		})
		if err != nil {
			log.Fatalf("failed to record registration: %v", err)
		}
		log.Printf("recorded registration %s", id)
	}

	if *threshold > 0 && !registration.IsAcceptable(result, *threshold) {
		log.Fatalf("registration error %.4f exceeds acceptance threshold %.4f", result.Error, *threshold)
	}
}

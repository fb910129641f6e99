package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/phantom.register/internal/api"
	"github.com/banshee-data/phantom.register/internal/db"
	"github.com/banshee-data/phantom.register/internal/phantom"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbPath        = flag.String("db", "registrations.db", "Path to the registration history database")
	phantomPath   = flag.String("phantom", "", "Optional phantom definition YAML; requests may then omit defined landmarks")
	migrationsDir = flag.String("migrations", "migrations", "Path to the schema migrations directory")
)

// Main
func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	var definition *phantom.Definition
	if *phantomPath != "" {
		var err error
		definition, err = phantom.LoadDefinition(*phantomPath)
		if err != nil {
			log.Fatalf("failed to load phantom definition: %v", err)
		}
		log.Printf("loaded phantom %q with %d landmarks", definition.Name, len(definition.Landmarks))
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Apply any schema upgrades beyond the baseline. A missing
	// migrations directory is fine for a fresh install; NewDB already
	// created the base schema.
	if _, err := os.Stat(*migrationsDir); err == nil {
		if err := database.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(database, definition).ServeMux()

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// Package api exposes phantom registration over HTTP/JSON: a
// registration endpoint consuming landmark correspondences and
// history endpoints over the persisted results.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/phantom.register/internal/db"
	"github.com/banshee-data/phantom.register/internal/landmark"
	"github.com/banshee-data/phantom.register/internal/phantom"
	"github.com/banshee-data/phantom.register/internal/registration"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db      *db.DB
	phantom *phantom.Definition // optional preloaded definition
}

// NewServer creates an API server. definition may be nil; requests
// must then carry their own defined landmarks.
func NewServer(database *db.DB, definition *phantom.Definition) *Server {
	return &Server{
		db:      database,
		phantom: definition,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/registrations", s.listRegistrations)
	mux.HandleFunc("/api/registrations/", s.showRegistration)
	mux.HandleFunc("/api/error_history", s.handleErrorHistoryChart)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RegisterRequest carries one registration attempt. Defined landmarks
// may be omitted when the server was started with a phantom
// definition; recorded positions are always required and are paired
// with the defined landmarks by index.
type RegisterRequest struct {
	PhantomName string              `json:"phantom_name,omitempty"`
	Defined     []landmark.Landmark `json:"defined,omitempty"`
	Recorded    []landmark.Point3   `json:"recorded"`
	Persist     bool                `json:"persist"`
}

// RegisterResponse is a successful registration result.
type RegisterResponse struct {
	RegistrationID string                  `json:"registration_id,omitempty"`
	PhantomName    string                  `json:"phantom_name,omitempty"`
	Transform      registration.Transform  `json:"transform"`
	Error          float64                 `json:"error"`
	Quality        registration.Quality    `json:"quality"`
	Residuals      []registration.Residual `json:"residuals"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	// Each request gets its own correspondence store; nothing is
	// shared between concurrent registrations.
	cs := landmark.NewCorrespondenceSet()
	phantomName := req.PhantomName
	switch {
	case len(req.Defined) > 0:
		for i, lm := range req.Defined {
			cs.AddDefined(lm.Name, lm.Position, i)
		}
	case s.phantom != nil:
		for _, dl := range s.phantom.Landmarks {
			cs.AddDefined(dl.Landmark.Name, dl.Landmark.Position, dl.Index)
		}
		if phantomName == "" {
			phantomName = s.phantom.Name
		}
	default:
		s.writeJSONError(w, http.StatusBadRequest, "No defined landmarks in request and no phantom definition loaded")
		return
	}
	for i, p := range req.Recorded {
		cs.AddRecorded(p, i)
	}

	result, err := registration.Estimate(cs)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registration.ErrInsufficientLandmarks) ||
			errors.Is(err, registration.ErrMismatchedCounts) ||
			errors.Is(err, registration.ErrDegenerateGeometry) ||
			errors.Is(err, registration.ErrEmptyCorrespondenceSet) {
			status = http.StatusUnprocessableEntity
		}
		s.writeJSONError(w, status, fmt.Sprintf("Registration failed: %v", err))
		return
	}

	resp := RegisterResponse{
		PhantomName: phantomName,
		Transform:   result.Transform,
		Error:       result.Error,
		Quality:     result.Quality,
		Residuals:   result.Residuals,
	}

	if req.Persist {
		transformJSON, _ := json.Marshal(result.Transform)
		residualsJSON, _ := json.Marshal(result.Residuals)
		id, err := s.db.InsertRegistration(db.RegistrationRecord{
			PhantomName:   phantomName,
			LandmarkCount: cs.Count(),
			Transform:     transformJSON,
			MeanError:     result.Error,
			Quality:       string(result.Quality),
			Residuals:     residualsJSON,
		})
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to persist registration: %v", err))
			return
		}
		resp.RegistrationID = id
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write registration result")
	}
}

func (s *Server) listRegistrations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	records, err := s.db.ListRegistrations(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list registrations: %v", err))
		return
	}
	if records == nil {
		records = []db.RegistrationRecord{}
	}

	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write registrations")
	}
}

// showRegistration serves /api/registrations/{id} and
// /api/registrations/{id}/plot (residual chart PNG).
func (s *Server) showRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/registrations/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusBadRequest, "Missing registration id")
		return
	}

	record, err := s.db.GetRegistration(id)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Registration not found: %s", id))
		return
	}

	switch sub {
	case "":
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(record); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to write registration")
		}
	case "plot":
		s.serveResidualPlot(w, record)
	default:
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Unknown resource %q", sub))
	}
}

func (s *Server) serveResidualPlot(w http.ResponseWriter, record *db.RegistrationRecord) {
	var residuals []registration.Residual
	if err := json.Unmarshal(record.Residuals, &residuals); err != nil || len(residuals) == 0 {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusNotFound, "No residuals stored for this registration")
		return
	}

	result := &registration.Result{Error: record.MeanError, Residuals: residuals}
	w.Header().Set("Content-Type", "image/png")
	if err := registration.WriteResidualPlotPNG(result, w); err != nil {
		log.Printf("failed to render residual plot for %s: %v", record.ID, err)
	}
}

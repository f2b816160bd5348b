// Package api exposes the read-only HTTP surface: health metrics, service
// stats, profiles, the suspect board and the detection ledger.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	repository "github.com/okian/warden/internal/adapters/repository"
	"github.com/okian/warden/internal/adapters/sink"
	service "github.com/okian/warden/internal/app"
	"github.com/okian/warden/internal/domain/detection"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ProfileDependencies
	SuspectDependencies
	DetectionDependencies
	StatsProvider
}

// Suspect is the JSON shape of one suspect board entry.
type Suspect struct {
	Rank       int                 `json:"rank"`
	Entity     uuid.UUID           `json:"entity"`
	Certainty  float64             `json:"certainty"`
	Check      detection.CheckType `json:"check"`
	Detections int                 `json:"detections"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

func toSuspect(s repository.Suspect) Suspect {
	return Suspect{
		Rank:       s.Rank,
		Entity:     s.Entity,
		Certainty:  s.Certainty,
		Check:      s.Check,
		Detections: s.Detections,
		UpdatedAt:  s.UpdatedAt,
	}
}

// Server wires HTTP routes for the read API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	profilesHandler   *ProfilesHandler
	suspectsHandler   *SuspectsHandler
	detectionsHandler *DetectionsHandler
}

// NewServer creates a new API server with all handlers. maxLimit bounds
// GET /suspects?limit=N.
func NewServer(deps Dependencies, maxLimit int) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(deps),
		profilesHandler:   NewProfilesHandler(deps),
		suspectsHandler:   NewSuspectsHandler(deps, maxLimit),
		detectionsHandler: NewDetectionsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/profiles/", MetricsMiddleware(s.profilesHandler.HandleGetProfile, "profiles"))
	mux.HandleFunc("/suspects", MetricsMiddleware(s.suspectsHandler.HandleGetSuspects, "suspects"))
	mux.HandleFunc("/suspects/", MetricsMiddleware(s.suspectsHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/detections", MetricsMiddleware(s.detectionsHandler.HandleExport, "detections"))
	mux.HandleFunc("/detections/summary", MetricsMiddleware(s.detectionsHandler.HandleSummary, "detections_summary"))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	s.Register(ctx, mux)
	return mux
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound translates upstream not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, service.ErrUnknownEntity) ||
		errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrProfileNotFound)
}

// DetectionDependencies defines the ledger reads.
type DetectionDependencies interface {
	Summary(ctx context.Context) sink.LedgerSummary
	ExportDetections(w io.Writer) error
}

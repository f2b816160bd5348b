package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	repository "github.com/okian/warden/internal/adapters/repository"
)

const defaultSuspectsLimit = 10

// SuspectDependencies defines the interface for suspect board reads.
type SuspectDependencies interface {
	TopN(ctx context.Context, n int) ([]repository.Suspect, error)
	Rank(ctx context.Context, id uuid.UUID) (repository.Suspect, error)
}

// SuspectsHandler handles suspect board requests.
type SuspectsHandler struct {
	deps     SuspectDependencies
	maxLimit int
}

// NewSuspectsHandler creates a new suspects handler.
func NewSuspectsHandler(deps SuspectDependencies, maxLimit int) *SuspectsHandler {
	if maxLimit < 1 {
		maxLimit = defaultSuspectsLimit
	}
	return &SuspectsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetSuspects handles GET /suspects?limit=N requests. A missing limit
// means the default page size.
func (h *SuspectsHandler) HandleGetSuspects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := min(defaultSuspectsLimit, h.maxLimit)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("limit %q: %w", limitStr, ErrBadRequest))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%d > %d: %w", n, h.maxLimit, ErrLimitExceeded))
		return
	}
	entries, err := h.deps.TopN(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	out := make([]Suspect, len(entries))
	for i, e := range entries {
		out[i] = toSuspect(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetRank handles GET /suspects/{entity} requests.
func (h *SuspectsHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, err := entityFromPath(r.URL.Path, "/suspects/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	entry, err := h.deps.Rank(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, toSuspect(entry))
}

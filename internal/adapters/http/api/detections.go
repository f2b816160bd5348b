package api

import (
	"bytes"
	"net/http"
)

// DetectionsHandler serves the detection ledger.
type DetectionsHandler struct {
	deps DetectionDependencies
}

// NewDetectionsHandler creates a new detections handler.
func NewDetectionsHandler(deps DetectionDependencies) *DetectionsHandler {
	return &DetectionsHandler{deps: deps}
}

// HandleSummary handles GET /detections/summary requests.
func (h *DetectionsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Summary(r.Context()))
}

// HandleExport handles GET /detections, the live ledger entries newest first.
func (h *DetectionsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	if err := h.deps.ExportDetections(&buf); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

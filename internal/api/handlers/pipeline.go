package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hearthlabs/kinship/internal/domain"
	"github.com/hearthlabs/kinship/internal/service"
)

type PipelineHandler struct {
	svc *service.PipelineService
}

func NewPipelineHandler(svc *service.PipelineService) *PipelineHandler {
	return &PipelineHandler{svc: svc}
}

type processTextRequest struct {
	Text string `json:"text"`
}

// ProcessText runs extraction on raw text and pushes the batch through the
// full pipeline. The response is the complete pipeline result, including the
// per-person decisions, groups, storage outcome and the run's trajectory.
func (h *PipelineHandler) ProcessText(w http.ResponseWriter, r *http.Request) {
	var req processTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := h.svc.ProcessText(r.Context(), req.Text)
	if err != nil {
		var exErr *domain.ExtractionError
		switch {
		case errors.Is(err, service.ErrNoExtractionProvider):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.As(err, &exErr):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "pipeline run failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Run accepts an already-extracted batch and pushes it through the pipeline,
// bypassing the extraction provider. Useful for replaying batches and for
// clients that do their own extraction.
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req domain.ExtractionResult
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Run(r.Context(), &req)
	if err != nil {
		var exErr *domain.ExtractionError
		if errors.As(err, &exErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

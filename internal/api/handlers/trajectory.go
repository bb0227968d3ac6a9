package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hearthlabs/kinship/internal/domain"
	"github.com/hearthlabs/kinship/internal/service"
)

type TrajectoryHandler struct {
	trajectories domain.TrajectoryStore
}

func NewTrajectoryHandler(trajectories domain.TrajectoryStore) *TrajectoryHandler {
	return &TrajectoryHandler{trajectories: trajectories}
}

type trajectoryResponse struct {
	SessionID uuid.UUID               `json:"session_id"`
	Steps     []domain.TrajectoryStep `json:"steps"`
	Count     int                     `json:"count"`
}

// GetBySession replays an archived run's trajectory. With format=text the
// response is the plain-text session report instead of JSON.
func (h *TrajectoryHandler) GetBySession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	steps, err := h.trajectories.GetBySession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trajectory")
		return
	}
	if len(steps) == 0 {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(service.FormatSessionReport(id, steps)))
		return
	}

	writeJSON(w, http.StatusOK, trajectoryResponse{
		SessionID: id,
		Steps:     steps,
		Count:     len(steps),
	})
}

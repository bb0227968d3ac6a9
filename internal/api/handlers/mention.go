package handlers

import (
	"net/http"
	"strconv"

	"github.com/hearthlabs/kinship/internal/domain"
)

type MentionHandler struct {
	mentions domain.MentionStore
	embedder domain.EmbeddingClient
}

func NewMentionHandler(mentions domain.MentionStore, embedder domain.EmbeddingClient) *MentionHandler {
	return &MentionHandler{mentions: mentions, embedder: embedder}
}

type searchMentionsResponse struct {
	Mentions []domain.MentionWithScore `json:"mentions"`
	Query    string                    `json:"query"`
	Count    int                       `json:"count"`
}

// Search embeds the query and returns the closest archived mentions.
func (h *MentionHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	if h.embedder == nil {
		writeError(w, http.StatusServiceUnavailable, "no embedding client configured")
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	emb, err := h.embedder.Embed(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to embed query")
		return
	}

	results, err := h.mentions.SearchSimilar(r.Context(), emb, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search mentions")
		return
	}
	if results == nil {
		results = []domain.MentionWithScore{}
	}

	writeJSON(w, http.StatusOK, searchMentionsResponse{
		Mentions: results,
		Query:    query,
		Count:    len(results),
	})
}

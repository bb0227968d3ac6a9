package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hearthlabs/kinship/internal/domain"
	"github.com/hearthlabs/kinship/internal/store"
)

type PersonHandler struct {
	persons       domain.PersonStore
	relationships domain.RelationshipStore
	mentions      domain.MentionStore
}

func NewPersonHandler(persons domain.PersonStore, relationships domain.RelationshipStore, mentions domain.MentionStore) *PersonHandler {
	return &PersonHandler{persons: persons, relationships: relationships, mentions: mentions}
}

type searchPersonsResponse struct {
	Matches []domain.CandidateMatch `json:"matches"`
	Query   string                  `json:"query"`
	Count   int                     `json:"count"`
}

// Search returns duplicate candidates for a name, the same retrieval the
// pipeline's resolver uses. Scores are retrieval ranking, not merge
// confidence.
func (h *PersonHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	attrs := domain.SearchAttributes{
		Surname:  r.URL.Query().Get("surname"),
		Location: r.URL.Query().Get("location"),
		Limit:    10,
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			attrs.Limit = limit
		}
	}

	matches, err := h.persons.Search(r.Context(), query, attrs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search persons")
		return
	}
	if matches == nil {
		matches = []domain.CandidateMatch{}
	}

	writeJSON(w, http.StatusOK, searchPersonsResponse{
		Matches: matches,
		Query:   query,
		Count:   len(matches),
	})
}

type getPersonResponse struct {
	*domain.PersonRecord
	Relationships []domain.RelationshipRecord `json:"relationships"`
}

func (h *PersonHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid person id")
		return
	}

	person, err := h.persons.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "person not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get person")
		return
	}

	rels, err := h.relationships.GetByPerson(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load relationships")
		return
	}
	if rels == nil {
		rels = []domain.RelationshipRecord{}
	}

	writeJSON(w, http.StatusOK, getPersonResponse{
		PersonRecord:  person,
		Relationships: rels,
	})
}

type personMentionsResponse struct {
	Mentions []domain.Mention `json:"mentions"`
	Count    int              `json:"count"`
}

func (h *PersonHandler) Mentions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid person id")
		return
	}

	if _, err := h.persons.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "person not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get person")
		return
	}

	mentions, err := h.mentions.GetByPerson(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load mentions")
		return
	}
	if mentions == nil {
		mentions = []domain.Mention{}
	}

	writeJSON(w, http.StatusOK, personMentionsResponse{
		Mentions: mentions,
		Count:    len(mentions),
	})
}

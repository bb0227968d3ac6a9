package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthlabs/kinship/internal/domain"
	"github.com/hearthlabs/kinship/internal/store"
)

type FamilyHandler struct {
	families domain.FamilyStore
	persons  domain.PersonStore
}

func NewFamilyHandler(families domain.FamilyStore, persons domain.PersonStore) *FamilyHandler {
	return &FamilyHandler{families: families, persons: persons}
}

type listFamiliesResponse struct {
	Families []domain.FamilyRecord `json:"families"`
	Count    int                   `json:"count"`
}

func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	families, err := h.families.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list families")
		return
	}
	if families == nil {
		families = []domain.FamilyRecord{}
	}

	writeJSON(w, http.StatusOK, listFamiliesResponse{
		Families: families,
		Count:    len(families),
	})
}

type getFamilyResponse struct {
	*domain.FamilyRecord
	Members     []domain.PersonRecord `json:"members"`
	MemberCount int                   `json:"member_count"`
}

func (h *FamilyHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !domain.ValidFamilyCode(code) {
		writeError(w, http.StatusBadRequest, "invalid family code")
		return
	}

	family, err := h.families.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "family not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get family")
		return
	}

	members, err := h.persons.ListByFamilyCode(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load members")
		return
	}
	if members == nil {
		members = []domain.PersonRecord{}
	}

	writeJSON(w, http.StatusOK, getFamilyResponse{
		FamilyRecord: family,
		Members:      members,
		MemberCount:  len(members),
	})
}

type familyMembersResponse struct {
	Code    string                `json:"code"`
	Members []domain.PersonRecord `json:"members"`
	Count   int                   `json:"count"`
}

func (h *FamilyHandler) Members(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !domain.ValidFamilyCode(code) {
		writeError(w, http.StatusBadRequest, "invalid family code")
		return
	}

	members, err := h.persons.ListByFamilyCode(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load members")
		return
	}
	if members == nil {
		members = []domain.PersonRecord{}
	}

	writeJSON(w, http.StatusOK, familyMembersResponse{
		Code:    code,
		Members: members,
		Count:   len(members),
	})
}

type previewCodeResponse struct {
	Surname  string `json:"surname"`
	Location string `json:"location"`
	Code     string `json:"code,omitempty"`
	Exists   bool   `json:"exists"`
}

// PreviewCode normalizes a (surname, location) pair the way the pipeline does
// and reports whether a family code is already registered for it. No sequence
// number is consumed; codes are only minted during persistence.
func (h *FamilyHandler) PreviewCode(w http.ResponseWriter, r *http.Request) {
	surname := r.URL.Query().Get("surname")
	location := r.URL.Query().Get("location")
	if surname == "" && location == "" {
		writeError(w, http.StatusBadRequest, "surname or location parameter is required")
		return
	}

	surnameToken := domain.NormalizeCodeToken(surname)
	locationToken := domain.NormalizeCodeToken(location)

	resp := previewCodeResponse{
		Surname:  surnameToken,
		Location: locationToken,
	}

	code, err := h.families.FindExisting(r.Context(), surnameToken, locationToken)
	switch {
	case err == nil:
		resp.Code = code
		resp.Exists = true
	case errors.Is(err, store.ErrNotFound):
		// Leave Exists false; the code would be minted on the next run.
	default:
		writeError(w, http.StatusInternalServerError, "failed to look up family code")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

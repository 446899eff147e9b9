package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/google/uuid"
)

const defaultMatchLimit = 10

// ScholarshipCatalog is implemented by services.ScholarshipService.
type ScholarshipCatalog interface {
	Create(ctx context.Context, in models.ScholarshipInput) (*models.Scholarship, error)
	FindAll(ctx context.Context, filter models.ScholarshipFilter, randomize bool) ([]models.Scholarship, error)
	FindOne(ctx context.Context, id uuid.UUID) (*models.Scholarship, error)
	Search(ctx context.Context, q string) ([]models.Scholarship, error)
	Matches(ctx context.Context, limit int) ([]models.Scholarship, error)
	Update(ctx context.Context, id uuid.UUID, upd models.ScholarshipUpdate) (*models.Scholarship, error)
	Remove(ctx context.Context, id uuid.UUID) error
	RemoveAll(ctx context.Context) (int64, error)
}

// ScholarshipHandler serves /api/v1/scholarships. Reads are open to every
// authenticated user; writes are mounted behind RequireRole(ADMIN).
type ScholarshipHandler struct {
	scholarships ScholarshipCatalog
}

func NewScholarshipHandler(scholarships ScholarshipCatalog) *ScholarshipHandler {
	return &ScholarshipHandler{scholarships: scholarships}
}

// parseFilter reads the list filters from the query string.
//
//	GET /api/v1/scholarships?is_active=true&country=Nigeria&degree_level=Masters&randomize=true
func parseFilter(r *http.Request) (models.ScholarshipFilter, bool, error) {
	q := r.URL.Query()
	filter := models.ScholarshipFilter{
		Country:      strings.TrimSpace(q.Get("country")),
		Category:     strings.TrimSpace(q.Get("category")),
		FieldOfStudy: strings.TrimSpace(q.Get("field_of_study")),
		DegreeLevel:  strings.TrimSpace(q.Get("degree_level")),
	}

	if raw := q.Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, false, err
		}
		filter.IsActive = &active
	}

	randomize := false
	if raw := q.Get("randomize"); raw != "" {
		var err error
		if randomize, err = strconv.ParseBool(raw); err != nil {
			return filter, false, err
		}
	}
	return filter, randomize, nil
}

// List returns one page of scholarships, ordered by deadline unless
// randomize is set.
//
// @Router /api/v1/scholarships [get]
func (h *ScholarshipHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, randomize, err := parseFilter(r)
	if err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid filter")
		return
	}

	list, err := h.scholarships.FindAll(r.Context(), filter, randomize)
	if err != nil {
		respondWithServiceError(w, r, err, "list scholarships")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, utils.Paginate(list, utils.ParsePageParams(r)))
}

// Search matches q against name, organization and description.
//
// @Router /api/v1/scholarships/search [get]
func (h *ScholarshipHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	list, err := h.scholarships.Search(r.Context(), q)
	if err != nil {
		respondWithServiceError(w, r, err, "search scholarships")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, list)
}

// Matches returns a shuffled selection of active scholarships.
//
// @Router /api/v1/scholarships/matches [get]
func (h *ScholarshipHandler) Matches(w http.ResponseWriter, r *http.Request) {
	limit := defaultMatchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.RespondWithError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, utils.MaxPageSize)
	}

	list, err := h.scholarships.Matches(r.Context(), limit)
	if err != nil {
		respondWithServiceError(w, r, err, "match scholarships")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, list)
}

// @Router /api/v1/scholarships/{id} [get]
func (h *ScholarshipHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s, err := h.scholarships.FindOne(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "get scholarship")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, s)
}

// @Router /api/v1/scholarships [post]
func (h *ScholarshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.ScholarshipInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.scholarships.Create(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, r, err, "create scholarship")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusCreated, s)
}

// @Router /api/v1/scholarships/{id} [patch]
func (h *ScholarshipHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var upd models.ScholarshipUpdate
	if err := utils.DecodeJSON(w, r, &upd); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.scholarships.Update(r.Context(), id, upd)
	if err != nil {
		respondWithServiceError(w, r, err, "update scholarship")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, s)
}

// @Router /api/v1/scholarships/{id} [delete]
func (h *ScholarshipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.scholarships.Remove(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err, "delete scholarship")
		return
	}
	utils.RespondWithMessage(w, r, http.StatusOK, "Scholarship deleted successfully")
}

// DeleteAll removes every scholarship and reports how many were removed.
//
// @Router /api/v1/scholarships [delete]
func (h *ScholarshipHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.scholarships.RemoveAll(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "delete scholarships")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
		"message": "Scholarships deleted successfully",
		"count":   n,
	})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/google/uuid"
)

// ApplicationStore is implemented by services.ApplicationService.
type ApplicationStore interface {
	Create(ctx context.Context, ownerID uuid.UUID, in models.ApplicationInput) (*models.Application, error)
	FindAll(ctx context.Context, ownerID *uuid.UUID) ([]models.Application, error)
	FindOne(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) (*models.Application, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, upd models.ApplicationUpdate) (*models.Application, error)
	Remove(ctx context.Context, id, ownerID uuid.UUID) error
}

// ApplicationHandler serves /api/v1/applications. Every operation is scoped
// to the caller; admins may list across owners with ?all=true and read any
// single application.
type ApplicationHandler struct {
	applications ApplicationStore
}

func NewApplicationHandler(applications ApplicationStore) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

// Create starts an application for the caller.
//
//	POST /api/v1/applications
//	{"scholarship_id": "...", "priority": "HIGH", "notes": "ask Prof. Okafor for a letter"}
//
// @Router /api/v1/applications [post]
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var in models.ApplicationInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	app, err := h.applications.Create(r.Context(), actor.UserID, in)
	if err != nil {
		respondWithServiceError(w, r, err, "create application")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusCreated, app)
}

// List returns one page of applications, newest first.
//
// @Router /api/v1/applications [get]
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	apps, err := h.applications.FindAll(r.Context(), ownerScope(r, actor))
	if err != nil {
		respondWithServiceError(w, r, err, "list applications")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, utils.Paginate(apps, utils.ParsePageParams(r)))
}

// Get returns one application. A foreign application is 403, a missing
// one 404.
//
// @Router /api/v1/applications/{id} [get]
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	app, err := h.applications.FindOne(r.Context(), id, readScope(actor))
	if err != nil {
		respondWithServiceError(w, r, err, "get application")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, app)
}

// Update patches an application. A concurrent write wins with 409.
//
// @Router /api/v1/applications/{id} [patch]
func (h *ApplicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var upd models.ApplicationUpdate
	if err := utils.DecodeJSON(w, r, &upd); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	app, err := h.applications.Update(r.Context(), id, actor.UserID, upd)
	if err != nil {
		respondWithServiceError(w, r, err, "update application")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, app)
}

// @Router /api/v1/applications/{id} [delete]
func (h *ApplicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.applications.Remove(r.Context(), id, actor.UserID); err != nil {
		respondWithServiceError(w, r, err, "delete application")
		return
	}
	utils.RespondWithMessage(w, r, http.StatusOK, "Application deleted successfully")
}

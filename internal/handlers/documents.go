package handlers

import (
	"context"
	"net/http"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/google/uuid"
)

// DocumentStore is implemented by services.DocumentService.
type DocumentStore interface {
	Create(ctx context.Context, ownerID uuid.UUID, in models.DocumentInput) (*models.Document, error)
	FindAll(ctx context.Context, ownerID *uuid.UUID) ([]models.Document, error)
	FindOne(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) (*models.Document, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, upd models.DocumentUpdate) (*models.Document, error)
	Remove(ctx context.Context, id, ownerID uuid.UUID) error
}

// DocumentHandler serves /api/v1/documents with the same scoping rules as
// ApplicationHandler.
type DocumentHandler struct {
	documents DocumentStore
}

func NewDocumentHandler(documents DocumentStore) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// @Router /api/v1/documents [post]
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	var in models.DocumentInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.documents.Create(r.Context(), actor.UserID, in)
	if err != nil {
		respondWithServiceError(w, r, err, "create document")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusCreated, doc)
}

// @Router /api/v1/documents [get]
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	docs, err := h.documents.FindAll(r.Context(), ownerScope(r, actor))
	if err != nil {
		respondWithServiceError(w, r, err, "list documents")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, utils.Paginate(docs, utils.ParsePageParams(r)))
}

// @Router /api/v1/documents/{id} [get]
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.documents.FindOne(r.Context(), id, readScope(actor))
	if err != nil {
		respondWithServiceError(w, r, err, "get document")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, doc)
}

// @Router /api/v1/documents/{id} [patch]
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var upd models.DocumentUpdate
	if err := utils.DecodeJSON(w, r, &upd); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.documents.Update(r.Context(), id, actor.UserID, upd)
	if err != nil {
		respondWithServiceError(w, r, err, "update document")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, doc)
}

// @Router /api/v1/documents/{id} [delete]
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.documents.Remove(r.Context(), id, actor.UserID); err != nil {
		respondWithServiceError(w, r, err, "delete document")
		return
	}
	utils.RespondWithMessage(w, r, http.StatusOK, "Document deleted successfully")
}

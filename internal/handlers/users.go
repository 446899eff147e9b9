package handlers

import (
	"context"
	"net/http"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/internal/services"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/google/uuid"
)

// UserManager is implemented by services.UserService.
type UserManager interface {
	FindAll(ctx context.Context) ([]models.User, error)
	FindOne(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, actor services.Actor, id uuid.UUID, upd models.UserUpdate) (*models.User, error)
	Remove(ctx context.Context, id uuid.UUID) error
	CreateProfile(ctx context.Context, userID uuid.UUID, in models.ProfileInput) (*models.UserProfile, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, in models.ProfileInput) (*models.UserProfile, error)
}

// UserHandler serves /api/v1/users.
type UserHandler struct {
	users UserManager
}

func NewUserHandler(users UserManager) *UserHandler {
	return &UserHandler{users: users}
}

// List returns one page of users. Mounted behind RequireRole(ADMIN).
//
// @Router /api/v1/users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.FindAll(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "list users")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, utils.Paginate(users, utils.ParsePageParams(r)))
}

// Get returns a user. Students may only read themselves.
//
// @Router /api/v1/users/{id} [get]
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if id != actor.UserID && !actor.IsAdmin() {
		respondWithServiceError(w, r, services.ErrForbidden, "get user")
		return
	}

	user, err := h.users.FindOne(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "get user")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, user)
}

// Update patches a user. Role and activation changes need ADMIN.
//
// @Router /api/v1/users/{id} [patch]
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var upd models.UserUpdate
	if err := utils.DecodeJSON(w, r, &upd); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Update(r.Context(), actor, id, upd)
	if err != nil {
		respondWithServiceError(w, r, err, "update user")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, user)
}

// Delete removes a user. Mounted behind RequireRole(ADMIN).
//
// @Router /api/v1/users/{id} [delete]
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.users.Remove(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err, "delete user")
		return
	}
	utils.RespondWithMessage(w, r, http.StatusOK, "User deleted successfully")
}

// GetProfile returns the caller's profile, creating an empty one on first
// access.
//
// @Router /api/v1/users/me/profile [get]
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	profile, err := h.users.GetProfile(r.Context(), actor.UserID)
	if err != nil {
		respondWithServiceError(w, r, err, "get profile")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, profile)
}

// GetProfileByID returns the profile of the user in the path. Students may
// only read their own; the user must exist.
//
// @Router /api/v1/users/{id}/profile [get]
func (h *UserHandler) GetProfileByID(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if id != actor.UserID && !actor.IsAdmin() {
		respondWithServiceError(w, r, services.ErrForbidden, "get profile")
		return
	}

	if _, err := h.users.FindOne(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err, "get profile")
		return
	}
	profile, err := h.users.GetProfile(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "get profile")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, profile)
}

// CreateProfile creates the caller's profile. A second call is 409.
//
// @Router /api/v1/users/me/profile [post]
func (h *UserHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r, http.StatusCreated, h.users.CreateProfile, "create profile")
}

// UpdateProfile patches the caller's profile. 404 when none exists.
//
// @Router /api/v1/users/me/profile [patch]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	h.writeProfile(w, r, http.StatusOK, h.users.UpdateProfile, "update profile")
}

func (h *UserHandler) writeProfile(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	op func(context.Context, uuid.UUID, models.ProfileInput) (*models.UserProfile, error),
	action string,
) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var in models.ProfileInput
	if err := utils.DecodeJSON(w, r, &in); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := op(r.Context(), actor.UserID, in)
	if err != nil {
		respondWithServiceError(w, r, err, action)
		return
	}
	utils.RespondWithJSON(w, r, status, profile)
}

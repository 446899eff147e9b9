// Package handlers contains the HTTP handlers of the ScholarHunter API.
//
// Handlers are thin: they decode the request, read the caller identity set
// by middleware.JWTAuth, call one service operation and map its domain error
// onto a status code with respondWithServiceError.
package handlers

import (
	"errors"
	"net/http"

	"github.com/Folexy13/scholarhunter-sub001/internal/middleware"
	"github.com/Folexy13/scholarhunter-sub001/internal/services"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// respondWithServiceError maps a service error onto an HTTP response.
//
//	ErrInvalidInput        -> 400 (message carries the validation detail)
//	ErrInvalidCredentials  -> 401
//	ErrInvalidToken        -> 401
//	ErrInactiveUser        -> 403
//	ErrForbidden           -> 403
//	ErrNotFound            -> 404
//	ErrConflict            -> 409
//	ErrUnavailable         -> 503
//
// Anything else is logged and reported as 500 without detail.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, services.ErrInvalidToken):
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, services.ErrInactiveUser):
		utils.RespondWithError(w, r, http.StatusForbidden, "User account is deactivated")
	case errors.Is(err, services.ErrForbidden):
		utils.RespondWithError(w, r, http.StatusForbidden, "You do not have access to this resource")
	case errors.Is(err, services.ErrNotFound):
		utils.RespondWithError(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, services.ErrConflict):
		utils.RespondWithError(w, r, http.StatusConflict, "Resource conflict")
	case errors.Is(err, services.ErrUnavailable):
		log.Warn().
			Err(err).
			Str("request_id", utils.GetRequestID(r.Context())).
			Msg("Upstream unavailable during " + action)
		utils.RespondWithError(w, r, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		log.Error().
			Err(err).
			Str("request_id", utils.GetRequestID(r.Context())).
			Msg("Failed to " + action)
		utils.RespondWithError(w, r, http.StatusInternalServerError, "Failed to "+action)
	}
}

// currentActor returns the authenticated caller. It writes a 401 and
// reports false when the request carries no identity.
func currentActor(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	userID, ok := middleware.GetUserUUID(r.Context())
	if !ok {
		utils.RespondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return services.Actor{}, false
	}
	role, _ := middleware.GetUserRole(r.Context())
	return services.Actor{UserID: userID, Role: role}, true
}

// pathID parses the {id} URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// ownerScope returns the owner filter for a list or read. Admins may pass
// ?all=true to read across owners; everybody else is scoped to themselves.
func ownerScope(r *http.Request, actor services.Actor) *uuid.UUID {
	if actor.IsAdmin() && r.URL.Query().Get("all") == "true" {
		return nil
	}
	id := actor.UserID
	return &id
}

// readScope is the owner filter for reading a single record. Admins read
// any record.
func readScope(actor services.Actor) *uuid.UUID {
	if actor.IsAdmin() {
		return nil
	}
	id := actor.UserID
	return &id
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/silviutimaru/mivton-presence/pkg/errors"
	"github.com/silviutimaru/mivton-presence/pkg/http/middleware"
	"github.com/silviutimaru/mivton-presence/pkg/models"
	"github.com/silviutimaru/mivton-presence/pkg/services"
)

// PresenceHandlers handles presence-related HTTP requests
type PresenceHandlers struct {
	service    services.PresenceService
	errHandler *errors.Handler
}

// NewPresenceHandlers creates new presence handlers
func NewPresenceHandlers(service services.PresenceService, errHandler *errors.Handler) *PresenceHandlers {
	return &PresenceHandlers{service: service, errHandler: errHandler}
}

// GetMe handles GET /api/presence/me — the caller's true record
func (ph *PresenceHandlers) GetMe(w http.ResponseWriter, r *http.Request) {
	rec := ph.service.GetSelf(r.Context(), middleware.UserID(r))
	writeJSON(w, http.StatusOK, rec)
}

type setStatusRequest struct {
	Status          models.Status `json:"status"`
	ActivityMessage *string       `json:"activity_message,omitempty"`
}

// PutStatus handles PUT /api/presence/status
func (ph *PresenceHandlers) PutStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ph.errHandler.Handle(w, errors.BadRequest("invalid request body"), chimw.GetReqID(r.Context()))
		return
	}

	rec, err := ph.service.SetStatus(r.Context(), middleware.UserID(r), req.Status, req.ActivityMessage)
	if err != nil {
		ph.errHandler.Handle(w, err, chimw.GetReqID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetUser handles GET /api/presence/users/{userID} — the subject's
// presence as this viewer may see it. Never errors: absence and privacy
// both present as offline.
func (ph *PresenceHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "userID")
	profile := ph.service.ResolveUser(r.Context(), middleware.UserID(r), subjectID)
	writeJSON(w, http.StatusOK, profile)
}

// GetFriends handles GET /api/presence/friends
func (ph *PresenceHandlers) GetFriends(w http.ResponseWriter, r *http.Request) {
	result, err := ph.service.FriendsFiltered(r.Context(), middleware.UserID(r))
	if err != nil {
		ph.errHandler.Handle(w, err, chimw.GetReqID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type activityRequest struct {
	Kind models.ActivityKind `json:"kind"`
}

// PostActivity handles POST /api/presence/activity — an explicit activity
// signal from an API client (keyboard/mouse signals arrive over the
// socket instead).
func (ph *PresenceHandlers) PostActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.Kind = models.ActivityAPICall
	}
	if req.Kind == "" {
		req.Kind = models.ActivityAPICall
	}
	ph.service.RecordActivity(r.Context(), middleware.UserID(r), req.Kind)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

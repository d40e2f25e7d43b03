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

// SettingsHandlers handles visibility settings, contact restrictions and
// DND exception requests. All routes operate on the authenticated user's
// own rows; there is no cross-user settings access.
type SettingsHandlers struct {
	service    services.PresenceService
	errHandler *errors.Handler
}

// NewSettingsHandlers creates new settings handlers
func NewSettingsHandlers(service services.PresenceService, errHandler *errors.Handler) *SettingsHandlers {
	return &SettingsHandlers{service: service, errHandler: errHandler}
}

// GetSettings handles GET /api/presence/settings
func (sh *SettingsHandlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := sh.service.GetSettings(r.Context(), middleware.UserID(r))
	if err != nil {
		sh.errHandler.Handle(w, err, chimw.GetReqID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// PatchSettings handles PATCH /api/presence/settings. Only the named
// fields of the patch may change; unknown keys are ignored by decoding
// into the fixed-shape patch struct.
func (sh *SettingsHandlers) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch models.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		sh.errHandler.Handle(w, errors.BadRequest("invalid request body"), chimw.GetReqID(r.Context()))
		return
	}

	settings, err := sh.service.UpdateSettings(r.Context(), middleware.UserID(r), &patch)
	if err != nil {
		sh.errHandler.Handle(w, err, chimw.GetReqID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// ListRestrictions handles GET /api/presence/restrictions
func (sh *SettingsHandlers) ListRestrictions(w http.ResponseWriter, r *http.Request) {
	restrictions, err := sh.service.ListRestrictions(r.Context(), middleware.UserID(r))
	if err != nil {
		sh.errHandler.Handle(w, err, chimw.GetReqID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"restrictions": restrictions,
		"total":        len(restrictions),
	})
}

// PutRestriction handles PUT /api/presence/restrictions/{contactID}
func (sh *SettingsHandlers) PutRestriction(w http.ResponseWriter, r *http.Request) {
	var restriction models.ContactRestriction
	if err := json.NewDecoder(r.Body).Decode(&restriction); err != nil {
		sh.errHandler.Handle(w, errors.BadRequest("invalid request body"), chimw.GetReqID(r.Context()))
		return
	}
	restriction.OwnerID = middleware.UserID(r)
	restriction.ContactID = chi.URLParam(r, "contactID")

	if err := sh.service.UpsertRestriction(r.Context(), &restriction); err != nil {
		sh.errHandler.Handle(w, err, chimw.GetReqID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, restriction)
}

// DeleteRestriction handles DELETE /api/presence/restrictions/{contactID}
func (sh *SettingsHandlers) DeleteRestriction(w http.ResponseWriter, r *http.Request) {
	err := sh.service.DeleteRestriction(r.Context(), middleware.UserID(r), chi.URLParam(r, "contactID"))
	if err != nil {
		sh.errHandler.Handle(w, err, chimw.GetReqID(r.Context()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDndExceptions handles GET /api/presence/dnd-exceptions
func (sh *SettingsHandlers) ListDndExceptions(w http.ResponseWriter, r *http.Request) {
	exceptions, err := sh.service.ListDndExceptions(r.Context(), middleware.UserID(r))
	if err != nil {
		sh.errHandler.Handle(w, err, chimw.GetReqID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exceptions": exceptions,
		"total":      len(exceptions),
	})
}

// PostDndException handles POST /api/presence/dnd-exceptions
func (sh *SettingsHandlers) PostDndException(w http.ResponseWriter, r *http.Request) {
	var exception models.DndException
	if err := json.NewDecoder(r.Body).Decode(&exception); err != nil {
		sh.errHandler.Handle(w, errors.BadRequest("invalid request body"), chimw.GetReqID(r.Context()))
		return
	}
	exception.UserID = middleware.UserID(r)

	if err := sh.service.CreateDndException(r.Context(), &exception); err != nil {
		sh.errHandler.Handle(w, err, chimw.GetReqID(r.Context()))
		return
	}
	writeJSON(w, http.StatusCreated, exception)
}

// DeleteDndException handles DELETE /api/presence/dnd-exceptions/{id}
func (sh *SettingsHandlers) DeleteDndException(w http.ResponseWriter, r *http.Request) {
	err := sh.service.DeleteDndException(r.Context(), middleware.UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		sh.errHandler.Handle(w, err, chimw.GetReqID(r.Context()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

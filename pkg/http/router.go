package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/silviutimaru/mivton-presence/pkg/errors"
	"github.com/silviutimaru/mivton-presence/pkg/http/handlers"
	"github.com/silviutimaru/mivton-presence/pkg/http/middleware"
	"github.com/silviutimaru/mivton-presence/pkg/logging"
	"github.com/silviutimaru/mivton-presence/pkg/metrics"
	"github.com/silviutimaru/mivton-presence/pkg/services"
)

// NewRouter wires the presence API. The socket handler is passed in as a
// plain http.Handler so the router stays independent of the websocket
// package.
func NewRouter(
	service services.PresenceService,
	wsHandler http.Handler,
	errHandler *errors.Handler,
	log *logging.Logger,
) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.RequestLogger(log))

	presenceHandlers := handlers.NewPresenceHandlers(service, errHandler)
	settingsHandlers := handlers.NewSettingsHandlers(service, errHandler)

	// Health check
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Prometheus scrape endpoint
	router.Handle("/metrics", metrics.HTTPHandler())

	// WebSocket endpoint: identity is checked inside the handler because
	// browser clients pass it as a query parameter on the upgrade request.
	router.Handle("/ws", wsHandler)

	router.Route("/api/presence", func(r chi.Router) {
		r.Use(middleware.RequireUser)

		r.Get("/me", presenceHandlers.GetMe)
		r.Put("/status", presenceHandlers.PutStatus)
		r.Post("/activity", presenceHandlers.PostActivity)
		r.Get("/friends", presenceHandlers.GetFriends)
		r.Get("/users/{userID}", presenceHandlers.GetUser)

		r.Route("/settings", func(sr chi.Router) {
			sr.Get("/", settingsHandlers.GetSettings)
			sr.Patch("/", settingsHandlers.PatchSettings)
		})

		r.Route("/restrictions", func(rr chi.Router) {
			rr.Get("/", settingsHandlers.ListRestrictions)
			rr.Put("/{contactID}", settingsHandlers.PutRestriction)
			rr.Delete("/{contactID}", settingsHandlers.DeleteRestriction)
		})

		r.Route("/dnd-exceptions", func(dr chi.Router) {
			dr.Get("/", settingsHandlers.ListDndExceptions)
			dr.Post("/", settingsHandlers.PostDndException)
			dr.Delete("/{id}", settingsHandlers.DeleteDndException)
		})
	})

	return router
}

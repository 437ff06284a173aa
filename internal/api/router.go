package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/home"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Get("/health", s.handleHealth)
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			if s.hub != nil {
				r.Get("/ws", s.handleWebSocket)
			}

			r.Group(func(r chi.Router) {
				r.Use(s.operatorOnly)

				r.Get("/system", s.handleSystem)
				if s.audit != nil {
					r.Get("/audit", s.handleAudit)
				}

				for _, res := range s.resources() {
					r.Route(res.path, func(r chi.Router) {
						r.Get("/", s.handleList(res))
						r.Post("/", s.handleCreate(res))

						r.Route("/{id}", func(r chi.Router) {
							r.Get("/", s.handleGet(res))
							r.Patch("/", s.handleUpdate(res, res.patch))
							if res.put != nil {
								r.Put("/", s.handleUpdate(res, res.put))
							}
							r.Delete("/", s.handleDelete(res))

							if res.entityType == entity.TypeSmartHome {
								r.Get("/position", s.handlePosition)
								r.Get("/analytics", s.handleAnalytics)
								r.Get("/services", s.handleServices)
							}
						})
					})
				}
			})
		})
	})

	return r
}

// resources declares the CRUD surface of each entity type.
func (s *Server) resources() []resource {
	m := s.homes
	return []resource{
		{
			path:       "/doors",
			entityType: entity.TypeDoor,
			plural:     "doors",
			create:     m.CreateDoor,
			patch:      m.UpdateDoor,
			remove:     m.DeleteDoor,
		},
		{
			path:       "/rooms",
			entityType: entity.TypeRoom,
			plural:     "rooms",
			create:     m.CreateRoom,
			patch:      m.UpdateRoom,
			remove:     m.DeleteRoom,
		},
		{
			path:       "/smart-homes",
			entityType: entity.TypeSmartHome,
			plural:     "smart_homes",
			create:     m.CreateSmartHome,
			patch:      smartHomeUpdate(m, home.ListAppend),
			put:        smartHomeUpdate(m, home.ListReplace),
			remove:     m.DeleteSmartHome,
		},
	}
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

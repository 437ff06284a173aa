package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pettracker-core/internal/entity"
)

// customer resolves the {id} smart home to its customer nick, writing the
// error response on failure.
func (s *Server) customer(w http.ResponseWriter, r *http.Request) (string, bool) {
	h, err := s.homes.Get(r.Context(), entity.TypeSmartHome, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return "", false
	}
	return h.ProfileString(entity.FieldUser), true
}

// handlePosition returns the room the pet is in.
func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.customer(w, r)
	if !ok {
		return
	}

	roomID, err := s.homes.Position(r.Context(), customer)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := map[string]any{"room_id": nil}
	if roomID != "" {
		resp["room_id"] = roomID
		if room, err := s.homes.Get(r.Context(), entity.TypeRoom, roomID); err == nil {
			resp["room_name"] = room.Name()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAnalytics computes and exports the room statistics of a smart home.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.customer(w, r)
	if !ok {
		return
	}

	stats, err := s.homes.Analytics(r.Context(), customer)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": stats, "count": len(stats)})
}

// handleServices lists the services a smart home's twin offers.
func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	customer, ok := s.customer(w, r)
	if !ok {
		return
	}

	names, err := s.homes.Services(r.Context(), customer)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": names})
}

package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pettracker-core/internal/audit"
	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/home"
)

type (
	createFunc func(ctx context.Context, in entity.Input) (*entity.Entity, error)
	updateFunc func(ctx context.Context, id string, patch entity.Patch) (*entity.Entity, error)
	deleteFunc func(ctx context.Context, id string) error
)

// resource binds an entity type to the manager operations serving it.
type resource struct {
	path       string
	entityType string
	plural     string
	create     createFunc
	patch      updateFunc
	put        updateFunc // nil when the type has no replace semantics
	remove     deleteFunc
}

func smartHomeUpdate(m *home.Manager, mode home.ListMode) updateFunc {
	return func(ctx context.Context, id string, patch entity.Patch) (*entity.Entity, error) {
		return m.UpdateSmartHome(ctx, id, patch, mode)
	}
}

// handleList returns every entity of the resource's type matching the
// query string filters, e.g. GET /rooms?denial_status=true.
func (s *Server) handleList(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := home.ListOptions{}
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				opts[key] = values[0]
			}
		}

		items, err := s.homes.List(r.Context(), res.entityType, opts)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		if items == nil {
			items = []entity.Entity{}
		}
		writeJSON(w, http.StatusOK, map[string]any{res.plural: items, "count": len(items)})
	}
}

// handleGet returns a single entity by ID.
func (s *Server) handleGet(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := s.homes.Get(r.Context(), res.entityType, chi.URLParam(r, "id"))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// handleCreate creates an entity from a {"profile", "data"} body.
func (s *Server) handleCreate(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in entity.Input
		if !decodeBody(w, r, &in) {
			return
		}

		e, err := res.create(r.Context(), in)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		s.record(r, audit.ActionCreate, res.entityType, e)
		writeJSON(w, http.StatusCreated, e)
	}
}

// handleUpdate applies a {"profile", "data"} patch with the given operation.
func (s *Server) handleUpdate(res resource, update updateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch entity.Patch
		if !decodeBody(w, r, &patch) {
			return
		}

		e, err := update(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		s.record(r, audit.ActionUpdate, res.entityType, e)
		writeJSON(w, http.StatusOK, e)
	}
}

// handleDelete deletes an entity by ID.
func (s *Server) handleDelete(res resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		// The smart home is gone after the delete; keep its customer.
		var before *entity.Entity
		if s.audit != nil {
			before, _ = s.homes.Get(r.Context(), res.entityType, id) //nolint:errcheck // remove reports the error
		}
		if err := res.remove(r.Context(), id); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		if before == nil {
			before = &entity.Entity{ID: id, Type: res.entityType}
		}
		s.record(r, audit.ActionDelete, res.entityType, before)
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeBody decodes a JSON request body into v, writing a 400 response
// and returning false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/pettracker-core/internal/audit"
	"github.com/nerrad567/pettracker-core/internal/entity"
)

// record appends an API change to the audit trail. Failures are logged; the
// change itself already succeeded.
func (s *Server) record(r *http.Request, action, entityType string, e *entity.Entity) {
	if s.audit == nil {
		return
	}

	customer := ""
	if action == audit.ActionDelete && entityType == entity.TypeSmartHome {
		customer = e.ProfileString(entity.FieldUser)
	} else if action != audit.ActionDelete {
		c, err := s.homes.CustomerOf(r.Context(), e)
		if err != nil {
			s.logger.Warn("audit customer lookup failed", "entity_id", e.ID, "error", err)
		}
		customer = c
	}

	entry := &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   e.ID,
		Customer:   customer,
		Source:     audit.SourceAPI,
		Details:    map[string]any{"request_id": r.Context().Value(ctxKeyRequestID)},
	}
	if claims := claimsFrom(r.Context()); claims != nil {
		entry.Actor = claims.Subject
	}
	if err := s.audit.Create(r.Context(), entry); err != nil {
		s.logger.Warn("audit write failed", "action", action, "entity_id", e.ID, "error", err)
	}
}

// handleAudit lists the audit trail, newest first. Query parameters:
// customer, action, entity_type, entity_id, limit, offset.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Customer:   q.Get("customer"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit logs failed", "error", err)
		writeInternalError(w, "listing audit logs failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

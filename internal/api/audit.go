package api

import (
	"net/http"
	"strconv"

	"github.com/bluewidget/bluewidget/internal/audit"
	"github.com/bluewidget/bluewidget/internal/coordinator"
	"github.com/bluewidget/bluewidget/internal/device"
)

// handleListAudit returns a page of recorded command outcomes.
//
// Query parameters: op, device_id, outcome, limit (default 50, max 200)
// and offset. A malformed device_id, outcome, or number is a 400.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "command audit not enabled")
		return
	}

	filter, msg := parseAuditFilter(r)
	if msg != "" {
		writeBadRequest(w, msg)
		return
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing command audit failed", "error", err)
		writeInternalError(w, "failed to list command audit")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parseAuditFilter returns the filter or a message describing the first
// bad parameter.
func parseAuditFilter(r *http.Request) (audit.Filter, string) {
	q := r.URL.Query()
	f := audit.Filter{Op: q.Get("op")}

	if v := q.Get("device_id"); v != "" {
		id, err := device.NormaliseID(v)
		if err != nil {
			return f, err.Error()
		}
		f.DeviceID = id
	}

	switch o := coordinator.Outcome(q.Get("outcome")); o {
	case "", coordinator.OutcomeOK, coordinator.OutcomeSimulated, coordinator.OutcomeFailed, coordinator.OutcomeDropped:
		f.Outcome = string(o)
	default:
		return f, "unknown outcome: " + string(o)
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, p.name + " must be a non-negative integer"
		}
		*p.dst = n
	}
	return f, ""
}

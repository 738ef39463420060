package audithandler

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/middleware"
	"perfreview/internal/transport/http/shared"
)

type Handler struct {
	Service *audit.Service
	Log     *zap.Logger
}

func NewHandler(service *audit.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: service, Log: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.RequireCapability(auth.CapAuditRead))
		r.Get("/", h.handleList)
		r.Get("/export", h.handleExport)
	})
}

// parseFilter reads the shared query parameters. Both bounds are inclusive for callers: a
// date-only to covers that whole day and a timestamp to covers that instant.
func parseFilter(w http.ResponseWriter, r *http.Request) (audit.Filter, bool) {
	query := r.URL.Query()
	filter := audit.Filter{
		Action:     query.Get("action"),
		EntityType: query.Get("entityType"),
		EntityID:   query.Get("entityId"),
		UserID:     query.Get("userId"),
	}
	v := shared.NewValidator()
	if raw := query.Get("from"); raw != "" {
		if from, _, ok := v.Instant("from", raw); ok {
			filter.From = &from
		}
	}
	if raw := query.Get("to"); raw != "" {
		if to, dateOnly, ok := v.Instant("to", raw); ok {
			if dateOnly {
				to = to.AddDate(0, 0, 1)
			} else {
				// created_at is stored with microsecond precision
				to = to.Add(time.Microsecond)
			}
			filter.To = &to
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return audit.Filter{}, false
	}
	return filter, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	v := shared.NewValidator()
	page := shared.ParsePagination(r, v, 50, 500)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	includeDetails := r.URL.Query().Get("includeDetails") == "true"

	result, err := h.Service.Query(r.Context(), actor.CompanyID, filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

var exportColumns = []string{"id", "created_at", "user_id", "user_role", "action", "entity_type", "entity_id", "reason", "ip_address", "request_id"}

func exportRow(e audit.Entry) []string {
	return []string{
		e.ID,
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.UserID,
		e.UserRole,
		string(e.Action),
		string(e.EntityType),
		e.EntityID,
		e.Reason,
		e.IPAddress,
		e.RequestID,
	}
}

// handleExport streams every matching entry as CSV. Spreadsheet rendering is left to the
// consumer.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	switch r.URL.Query().Get("format") {
	case "", "csv":
		h.exportCSV(w, r, actor.CompanyID, filter)
	default:
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "format", Reason: "must be csv"}})
	}
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request, companyID string, filter audit.Filter) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-log.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write(exportColumns); err != nil {
		h.Log.Warn("audit export header failed", zap.Error(err))
		return
	}
	err := h.Service.Export(r.Context(), companyID, filter, func(e audit.Entry) error {
		return writer.Write(exportRow(e))
	})
	writer.Flush()
	if err == nil {
		err = writer.Error()
	}
	if err != nil {
		// headers are already sent; the truncated file is the only signal the client gets
		h.Log.Warn("audit export failed", zap.Error(err), zap.String("companyId", companyID))
	}
}

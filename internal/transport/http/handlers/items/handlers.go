package itemshandler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"perfreview/internal/domain/auth"
	"perfreview/internal/domain/review"
	"perfreview/internal/platform/metrics"
	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/middleware"
	"perfreview/internal/transport/http/shared"
)

type Handler struct {
	Service *review.Service
	Metrics *metrics.Collector
	Log     *zap.Logger
}

func NewHandler(service *review.Service, collector *metrics.Collector, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: service, Metrics: collector, Log: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.With(middleware.RequireCapability(auth.CapCatalogRead)).Get("/", h.handleList)
		r.With(middleware.RequireCapability(auth.CapCatalogTeam)).Post("/", h.handleCreate)
		r.With(middleware.RequireCapability(auth.CapCatalogRead)).Get("/{itemID}", h.handleGet)
		r.With(middleware.RequireCapability(auth.CapCatalogTeam)).Patch("/{itemID}", h.handleUpdate)
		r.With(middleware.RequireCapability(auth.CapCatalogTeam)).Post("/{itemID}/activate", h.handleSetActive(true))
		r.With(middleware.RequireCapability(auth.CapCatalogTeam)).Post("/{itemID}/deactivate", h.handleSetActive(false))
		r.With(middleware.RequireCapability(auth.CapCatalogTeam)).Put("/{itemID}/deadline", h.handleDeadline)
		r.With(middleware.RequireCapability(auth.CapCatalogTeam)).Post("/{itemID}/archive", h.handleArchive)
		r.With(middleware.RequireCapability(auth.CapCatalogTeam)).Post("/{itemID}/unarchive", h.handleUnarchive)
		r.With(middleware.RequireCapability(auth.CapCatalogTeam)).Delete("/{itemID}", h.handleDelete)
		r.With(middleware.RequireCapability(auth.CapCatalogRead)).Get("/{itemID}/assignments", h.handleItemAssignments)
		r.With(middleware.RequireCapability(auth.CapCatalogAssign)).Post("/{itemID}/assignments", h.handleAssign)
		r.With(middleware.RequireCapability(auth.CapCatalogAssign)).Delete("/{itemID}/assignments/{employeeID}", h.handleUnassign)
	})
	r.With(middleware.RequireCapability(auth.CapCatalogRead)).Get("/assignments", h.handleAssignments)
	r.With(middleware.RequireCapability(auth.CapEvaluationView)).Get("/employees/{employeeID}/items", h.handleResolve)
}

type itemWithCascade struct {
	Item    review.EvaluationItem `json:"item"`
	Cascade review.CascadeReport  `json:"cascade"`
}

func (h *Handler) recordCascade(report review.CascadeReport) {
	if h.Metrics != nil && report.Reason != "" {
		h.Metrics.RecordCascade(report.Touched())
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	query := r.URL.Query()
	filter := review.ItemFilter{
		Level:           query.Get("level"),
		AssignedTo:      query.Get("assignedTo"),
		IncludeInactive: query.Get("includeInactive") == "true",
		IncludeArchived: query.Get("includeArchived") == "true",
	}
	items, err := h.Service.ListItems(r.Context(), actor, filter)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload struct {
		Title              string  `json:"title"`
		Description        string  `json:"description"`
		Type               string  `json:"type"`
		Level              string  `json:"level"`
		AssignedTo         *string `json:"assignedTo"`
		SortOrder          int     `json:"sortOrder"`
		EvaluationDeadline string  `json:"evaluationDeadline"`
	}
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}

	in := review.ItemInput{
		Title:       payload.Title,
		Description: payload.Description,
		Type:        payload.Type,
		Level:       payload.Level,
		AssignedTo:  payload.AssignedTo,
		SortOrder:   payload.SortOrder,
	}
	if strings.TrimSpace(payload.EvaluationDeadline) != "" {
		v := shared.NewValidator()
		deadline, ok := v.Date("evaluationDeadline", payload.EvaluationDeadline)
		if v.Reject(w, middleware.GetRequestID(r.Context())) || !ok {
			return
		}
		in.EvaluationDeadline = &deadline
	}

	item, report, err := h.Service.CreateItem(r.Context(), actor, in)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	h.recordCascade(report)
	api.Created(w, itemWithCascade{Item: item, Cascade: report}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	item, err := h.Service.GetItem(r.Context(), actor, chi.URLParam(r, "itemID"))
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, item, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload review.ItemPatch
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}
	item, err := h.Service.UpdateItem(r.Context(), actor, chi.URLParam(r, "itemID"), payload)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, item, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.GetActor(r.Context())
		item, report, err := h.Service.SetItemActive(r.Context(), actor, chi.URLParam(r, "itemID"), active)
		if err != nil {
			shared.FailService(w, r, h.Log, err)
			return
		}
		h.recordCascade(report)
		api.Success(w, itemWithCascade{Item: item, Cascade: report}, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) handleDeadline(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload struct {
		Deadline string `json:"deadline"`
	}
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}
	var deadline *time.Time
	if strings.TrimSpace(payload.Deadline) != "" {
		v := shared.NewValidator()
		parsed, ok := v.Date("deadline", payload.Deadline)
		if v.Reject(w, middleware.GetRequestID(r.Context())) || !ok {
			return
		}
		deadline = &parsed
	}
	item, err := h.Service.SetItemDeadline(r.Context(), actor, chi.URLParam(r, "itemID"), deadline)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, item, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}
	item, report, err := h.Service.ArchiveItem(r.Context(), actor, chi.URLParam(r, "itemID"), payload.Reason)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	h.recordCascade(report)
	api.Success(w, itemWithCascade{Item: item, Cascade: report}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUnarchive(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	item, err := h.Service.UnarchiveItem(r.Context(), actor, chi.URLParam(r, "itemID"))
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, item, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	itemID := chi.URLParam(r, "itemID")
	if err := h.Service.DeleteItem(r.Context(), actor, itemID); err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, map[string]string{"id": itemID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleItemAssignments(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	assignments, err := h.Service.ListAssignments(r.Context(), actor, review.AssignmentFilter{ItemID: chi.URLParam(r, "itemID")})
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, assignments, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAssignments(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	filter := review.AssignmentFilter{
		ItemID:     r.URL.Query().Get("itemId"),
		EmployeeID: r.URL.Query().Get("employeeId"),
	}
	assignments, err := h.Service.ListAssignments(r.Context(), actor, filter)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, assignments, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload struct {
		EmployeeIDs []string `json:"employeeIds"`
	}
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}
	assignments, report, err := h.Service.AssignItem(r.Context(), actor, chi.URLParam(r, "itemID"), payload.EmployeeIDs)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	h.recordCascade(report)
	api.Success(w, map[string]any{"assignments": assignments, "cascade": report}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUnassign(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	itemID := chi.URLParam(r, "itemID")
	employeeID := chi.URLParam(r, "employeeID")
	if err := h.Service.UnassignItem(r.Context(), actor, itemID, employeeID); err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, map[string]string{"itemId": itemID, "employeeId": employeeID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	items, err := h.Service.ResolveItems(r.Context(), actor, chi.URLParam(r, "employeeID"))
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

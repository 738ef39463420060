package usershandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"perfreview/internal/domain/auth"
	"perfreview/internal/domain/review"
	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/middleware"
	"perfreview/internal/transport/http/shared"
)

type Handler struct {
	Service *review.Service
	Log     *zap.Logger
}

func NewHandler(service *review.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: service, Log: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.Route("/users", func(r chi.Router) {
		r.With(middleware.RequireCapability(auth.CapUsersRead)).Get("/", h.handleList)
		r.With(middleware.RequireCapability(auth.CapUsersManage)).Post("/", h.handleCreate)
		r.With(middleware.RequireCapability(auth.CapUsersManage)).Post("/bulk-archive", h.handleBulkArchive)
		r.Get("/{userID}", h.handleGet)
		r.With(middleware.RequireCapability(auth.CapUsersManage)).Patch("/{userID}", h.handleUpdate)
		r.With(middleware.RequireCapability(auth.CapUsersRead)).Get("/{userID}/reports", h.handleReports)
		r.With(middleware.RequireCapability(auth.CapUsersManage)).Post("/{userID}/archive", h.handleArchive)
		r.With(middleware.RequireCapability(auth.CapUsersManage)).Post("/{userID}/unarchive", h.handleUnarchive)
		r.With(middleware.RequireCapability(auth.CapUsersManage)).Delete("/{userID}", h.handleDelete)
		r.With(middleware.RequireCapability(auth.CapUsersForceDelete)).Post("/{userID}/force-delete", h.handleForceDelete)
	})
}

const maxBulkArchive = 200

type reasonPayload struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	user, err := h.Service.GetUser(r.Context(), actor, actor.UserID)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, user, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	query := r.URL.Query()
	filter := review.UserFilter{
		IncludeArchived: query.Get("includeArchived") == "true",
		Department:      query.Get("department"),
		ManagerID:       query.Get("managerId"),
		Role:            query.Get("role"),
	}
	users, err := h.Service.ListUsers(r.Context(), actor, filter)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, users, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload review.UserInput
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}
	user, err := h.Service.CreateUser(r.Context(), actor, payload)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Created(w, user, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	user, err := h.Service.GetUser(r.Context(), actor, chi.URLParam(r, "userID"))
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, user, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload review.UserPatch
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}
	user, err := h.Service.UpdateUser(r.Context(), actor, chi.URLParam(r, "userID"), payload)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, user, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	users, err := h.Service.DirectReports(r.Context(), actor, chi.URLParam(r, "userID"))
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, users, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload reasonPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}
	user, err := h.Service.ArchiveUser(r.Context(), actor, chi.URLParam(r, "userID"), payload.Reason)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, user, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUnarchive(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	user, err := h.Service.UnarchiveUser(r.Context(), actor, chi.URLParam(r, "userID"))
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, user, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	userID := chi.URLParam(r, "userID")
	if err := h.Service.DeleteUser(r.Context(), actor, userID); err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, map[string]string{"id": userID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleForceDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload reasonPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}
	result, err := h.Service.ForceDeleteUser(r.Context(), actor, chi.URLParam(r, "userID"), payload.Reason)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleBulkArchive(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload struct {
		IDs    []string `json:"ids"`
		Reason string   `json:"reason"`
	}
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}
	v := shared.NewValidator()
	v.Count("ids", len(payload.IDs), 1, maxBulkArchive)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	outcomes, err := h.Service.BulkArchiveUsers(r.Context(), actor, payload.IDs, payload.Reason)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, outcomes, middleware.GetRequestID(r.Context()))
}

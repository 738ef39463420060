package evaluationshandler

import (
	"context"
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
	r.Route("/evaluations", func(r chi.Router) {
		r.With(middleware.RequireCapability(auth.CapEvaluationView)).Get("/", h.handleList)
		r.With(middleware.RequireCapability(auth.CapEvaluationRate)).Post("/", h.handleCreate)
		r.With(middleware.RequireCapability(auth.CapEvaluationView)).Get("/{evaluationID}", h.handleGet)
		r.With(middleware.RequireCapability(auth.CapEvaluationRate)).Patch("/{evaluationID}", h.handleUpdate)
		r.With(middleware.RequireCapability(auth.CapEvaluationRate)).Post("/{evaluationID}/submit", h.handleTransition(h.Service.Submit))
		r.With(middleware.RequireCapability(auth.CapEvaluationComplete)).Post("/{evaluationID}/complete", h.handleTransition(h.Service.Complete))
		r.With(middleware.RequireCapability(auth.CapEvaluationAcknowledge)).Post("/{evaluationID}/acknowledge", h.handleTransition(h.Service.Acknowledge))
		r.With(middleware.RequireCapability(auth.CapEvaluationReopen)).Post("/{evaluationID}/reopen", h.handleReopen)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	query := r.URL.Query()
	v := shared.NewValidator()
	v.Enum("status", query.Get("status"), review.Statuses, "must be draft, submitted or completed")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	filter := review.EvaluationFilter{
		EmployeeID: query.Get("employeeId"),
		ManagerID:  query.Get("managerId"),
		CycleID:    query.Get("cycleId"),
		Status:     query.Get("status"),
	}
	evaluations, err := h.Service.ListEvaluations(r.Context(), actor, filter)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, evaluations, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload review.CreateDraftInput
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}
	evaluation, err := h.Service.CreateDraft(r.Context(), actor, payload)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Created(w, evaluation, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	evaluation, err := h.Service.GetEvaluation(r.Context(), actor, chi.URLParam(r, "evaluationID"))
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, evaluation, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload review.DraftUpdate
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}
	evaluation, err := h.Service.UpdateDraft(r.Context(), actor, chi.URLParam(r, "evaluationID"), payload)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, evaluation, middleware.GetRequestID(r.Context()))
}

type transition func(ctx context.Context, actor auth.Actor, id string) (review.Evaluation, error)

func (h *Handler) handleTransition(fn transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.GetActor(r.Context())
		evaluation, err := fn(r.Context(), actor, chi.URLParam(r, "evaluationID"))
		if err != nil {
			shared.FailService(w, r, h.Log, err)
			return
		}
		api.Success(w, evaluation, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) handleReopen(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}
	evaluation, err := h.Service.Reopen(r.Context(), actor, chi.URLParam(r, "evaluationID"), payload.Reason)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, evaluation, middleware.GetRequestID(r.Context()))
}

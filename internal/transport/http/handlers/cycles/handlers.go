package cycleshandler

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
	r.Route("/cycles", func(r chi.Router) {
		r.With(middleware.RequireCapability(auth.CapCyclesRead)).Get("/", h.handleList)
		r.With(middleware.RequireCapability(auth.CapCyclesManage)).Post("/", h.handleCreate)
		r.With(middleware.RequireCapability(auth.CapCyclesRead)).Get("/active", h.handleActive)
		r.With(middleware.RequireCapability(auth.CapCyclesRead)).Get("/{cycleID}", h.handleGet)
		r.With(middleware.RequireCapability(auth.CapCyclesManage)).Post("/{cycleID}/close", h.handleTransition(h.Service.CloseCycle))
		r.With(middleware.RequireCapability(auth.CapCyclesManage)).Post("/{cycleID}/reopen", h.handleTransition(h.Service.ReopenCycle))
		r.With(middleware.RequireCapability(auth.CapCyclesManage)).Post("/{cycleID}/archive", h.handleTransition(h.Service.ArchiveCycle))
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	cycles, err := h.Service.ListCycles(r.Context(), actor)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, cycles, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	var payload struct {
		Name      string `json:"name"`
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	}
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailDecode(w, r, err)
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	start, _ := v.Date("startDate", payload.StartDate)
	end, _ := v.Date("endDate", payload.EndDate)
	v.DateOrder("startDate", start, "endDate", end)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	cycle, err := h.Service.CreateCycle(r.Context(), actor, review.CycleInput{Name: payload.Name, StartDate: start, EndDate: end})
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Created(w, cycle, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	cycle, err := h.Service.ActiveCycle(r.Context(), actor)
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, cycle, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetActor(r.Context())
	cycle, err := h.Service.GetCycle(r.Context(), actor, chi.URLParam(r, "cycleID"))
	if err != nil {
		shared.FailService(w, r, h.Log, err)
		return
	}
	api.Success(w, cycle, middleware.GetRequestID(r.Context()))
}

type cycleTransition func(ctx context.Context, actor auth.Actor, id string) (review.PerformanceCycle, error)

func (h *Handler) handleTransition(fn cycleTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.GetActor(r.Context())
		cycle, err := fn(r.Context(), actor, chi.URLParam(r, "cycleID"))
		if err != nil {
			shared.FailService(w, r, h.Log, err)
			return
		}
		api.Success(w, cycle, middleware.GetRequestID(r.Context()))
	}
}

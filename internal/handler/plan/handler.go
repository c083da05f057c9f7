package plan

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-finance/internal/handler"
	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/service/plan"
	"github.com/jwalitptl/clinic-finance/pkg/httputil"
)

type Handler struct {
	service *plan.Service
}

func NewHandler(service *plan.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard ...gin.HandlerFunc) {
	plans := r.Group("/plans")
	{
		plans.GET("/:id", h.GetPlan)
		plans.POST("", handler.Guarded(guard, h.CreatePlan)...)
		plans.PUT("/:id", handler.Guarded(guard, h.UpdatePlan)...)
		plans.PATCH("/:id/status", handler.Guarded(guard, h.UpdateStatus)...)
	}
	r.GET("/patients/:id/plans", h.ListPatientPlans)
}

func (h *Handler) CreatePlan(c *gin.Context) {
	var req model.CreatePlanRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, p)
}

func (h *Handler) GetPlan(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

func (h *Handler) ListPatientPlans(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	plans, err := h.service.ListByPatient(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, plans)
}

func (h *Handler) UpdatePlan(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.UpdatePlanRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.UpdatePlanStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

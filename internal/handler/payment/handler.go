package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-finance/internal/handler"
	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/service/payment"
	"github.com/jwalitptl/clinic-finance/pkg/httputil"
)

type Handler struct {
	service *payment.Service
}

func NewHandler(service *payment.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts payment routes. Payments are corrected by update,
// never deleted.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard ...gin.HandlerFunc) {
	payments := r.Group("/payments")
	{
		payments.GET("/:id", h.GetPayment)
		payments.POST("", handler.Guarded(guard, h.RecordPayment)...)
		payments.PUT("/:id", handler.Guarded(guard, h.UpdatePayment)...)
	}
	r.GET("/patients/:id/payments", h.ListPatientPayments)
}

func (h *Handler) RecordPayment(c *gin.Context) {
	var req model.CreatePaymentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Record(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, p)
}

func (h *Handler) GetPayment(c *gin.Context) {
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

func (h *Handler) UpdatePayment(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.UpdatePaymentRequest
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

func (h *Handler) ListPatientPayments(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	payments, err := h.service.ListByPatient(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, payments)
}

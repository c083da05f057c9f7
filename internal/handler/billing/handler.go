package billing

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-finance/internal/handler"
	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/service/billing"
	"github.com/jwalitptl/clinic-finance/pkg/httputil"
)

type Handler struct {
	service *billing.Service
}

func NewHandler(service *billing.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard ...gin.HandlerFunc) {
	r.GET("/patients/:id/balance", h.PatientBalance)
	r.GET("/reports/overdue", h.OverdueReport)

	invoices := r.Group("/plans/:id/invoice")
	{
		invoices.GET("/preview", h.PreviewInvoice)
		invoices.POST("", handler.Guarded(guard, h.GenerateInvoice)...)
		invoices.POST("/email", handler.Guarded(guard, h.EmailInvoice)...)
	}
}

func (h *Handler) PatientBalance(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	summary, err := h.service.PatientBalance(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, summary)
}

func (h *Handler) OverdueReport(c *gin.Context) {
	var filters model.OverdueReportFilters
	if !handler.BindQuery(c, &filters) {
		return
	}

	report, err := h.service.OverdueReport(c.Request.Context(), &filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, report)
}

func (h *Handler) PreviewInvoice(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	preview, err := h.service.Preview(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, preview)
}

// GenerateInvoice streams the rendered document back to the caller.
func (h *Handler) GenerateInvoice(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.GenerateInvoiceRequest
	if !bindOptional(c, &req) {
		return
	}

	inv, err := h.service.GenerateInvoice(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.pdf"`, id))
	c.Header("X-Invoice-Rescaled", strconv.FormatBool(inv.Preview.Rescaled))
	c.Header("X-Invoice-Discrepancy", inv.Preview.Discrepancy.StringFixed(2))
	c.Data(http.StatusOK, inv.Document.ContentType, inv.Document.Body)
}

func (h *Handler) EmailInvoice(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.GenerateInvoiceRequest
	if !bindOptional(c, &req) {
		return
	}

	inv, err := h.service.EmailInvoice(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusAccepted, gin.H{
		"sent_to": inv.Patient.Email,
		"preview": inv.Preview,
	})
}

// bindOptional accepts an empty body as the zero request.
func bindOptional(c *gin.Context, req *model.GenerateInvoiceRequest) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return handler.BindJSON(c, req)
}

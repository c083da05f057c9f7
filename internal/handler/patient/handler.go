package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-finance/internal/handler"
	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/service/patient"
	"github.com/jwalitptl/clinic-finance/pkg/httputil"
)

type Handler struct {
	service *patient.Service
}

func NewHandler(service *patient.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the patient routes; guard runs before mutations.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard ...gin.HandlerFunc) {
	patients := r.Group("/patients")
	{
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.POST("", handler.Guarded(guard, h.CreatePatient)...)
		patients.PATCH("/:id/status", handler.Guarded(guard, h.UpdateStatus)...)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
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

func (h *Handler) GetPatient(c *gin.Context) {
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

func (h *Handler) ListPatients(c *gin.Context) {
	var filters model.PatientFilters
	if !handler.BindQuery(c, &filters) {
		return
	}

	patients, total, err := h.service.List(c.Request.Context(), &filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	httputil.RespondWithPagination(c, patients, page, filters.Limit(), total)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.UpdatePatientStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.UpdateStatus(c.Request.Context(), id, model.PatientStatus(req.Status))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

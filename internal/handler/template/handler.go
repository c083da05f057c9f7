package template

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-finance/internal/handler"
	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/service/template"
	"github.com/jwalitptl/clinic-finance/pkg/httputil"
)

type Handler struct {
	service *template.Service
}

func NewHandler(service *template.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard ...gin.HandlerFunc) {
	templates := r.Group("/templates")
	{
		templates.GET("", h.ListTemplates)
		templates.GET("/:id", h.GetTemplate)
		templates.POST("", handler.Guarded(guard, h.CreateTemplate)...)
		templates.PUT("/:id", handler.Guarded(guard, h.UpdateTemplate)...)
		templates.POST("/:id/deactivate", handler.Guarded(guard, h.DeactivateTemplate)...)
	}
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var req model.CreateTemplateRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tmpl, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, tmpl)
}

func (h *Handler) GetTemplate(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	tmpl, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, tmpl)
}

func (h *Handler) ListTemplates(c *gin.Context) {
	var filters model.TemplateFilters
	if !handler.BindQuery(c, &filters) {
		return
	}

	templates, err := h.service.List(c.Request.Context(), &filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, templates)
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateTemplateRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tmpl, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, tmpl)
}

func (h *Handler) DeactivateTemplate(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	tmpl, err := h.service.Deactivate(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, tmpl)
}

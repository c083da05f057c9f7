// Package handler holds helpers shared by the per-resource HTTP handlers.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-finance/internal/finance"
	"github.com/jwalitptl/clinic-finance/internal/middleware"
	apperrors "github.com/jwalitptl/clinic-finance/pkg/errors"
	"github.com/jwalitptl/clinic-finance/pkg/httputil"
)

// RespondError translates service and domain errors to AppErrors and writes
// the error envelope.
func RespondError(c *gin.Context, err error) {
	httputil.RespondWithError(c, toAppError(err))
}

func toAppError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var verr *finance.ValidationError
	switch {
	case errors.As(err, &verr):
		return apperrors.Unprocessable("invalid financial data", err)
	case errors.Is(err, apperrors.ErrRecordNotFound):
		return &apperrors.AppError{Code: apperrors.ErrNotFound, Message: err.Error()}
	case errors.Is(err, apperrors.ErrVersionConflict):
		return apperrors.Conflict("plan was modified by another request; reload and retry", err)
	case errors.Is(err, context.DeadlineExceeded):
		return &apperrors.AppError{Code: apperrors.ErrUpstream, Message: "request timed out", Err: err}
	}
	return apperrors.Internal(err)
}

// ParseID reads a UUID path parameter, writing a 400 when it is malformed.
func ParseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid "+param, nil))
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON binds and validates the request body, writing a 400 with
// per-field messages on failure.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

// BindQuery is BindJSON for query parameters.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

func respondBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, httputil.Response{
		Status:  "error",
		Message: "invalid request",
		Data:    gin.H{"errors": middleware.BindingErrors(err)},
	})
}

// Guarded returns guard followed by h in a slice of its own, so routes
// registered from the same guard never share a backing array.
func Guarded(guard []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(guard)+1)
	chain = append(chain, guard...)
	return append(chain, h)
}

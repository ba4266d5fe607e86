package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/resq-training/checklist-service/internal/repositories"
	"github.com/resq-training/checklist-service/internal/services"
	"github.com/resq-training/checklist-service/internal/utils"
	"github.com/resq-training/checklist-service/internal/validator"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps a payload with a message for write endpoints.
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries helpers shared by all handlers.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs an incoming request with the request-scoped logger.
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.FromContext(c, h.logger).Info(msg, args...)
}

// LogError logs a handler-level failure with the request-scoped logger.
func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	utils.FromContext(c, h.logger).Error(msg, append(args, "error", err)...)
}

// parseIDParam parses a positive integer path parameter. On failure it
// writes the 400 response itself and returns 0.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
			Details: raw,
		})
		return 0
	}
	return uint(id)
}

// handleServiceError maps service-layer errors onto HTTP statuses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound) || repositories.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Resource not found",
		})

	case isCompulsoryError(err):
		var ce *services.CompulsoryIncompleteError
		errors.As(err, &ce)
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Compulsory items incomplete",
			Details: ce.Missing,
		})

	case isRequestValidationError(err):
		var ves validator.ValidationErrors
		if errors.As(err, &ves) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Validation failed",
				Details: ves,
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})

	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}

func isCompulsoryError(err error) bool {
	var ce *services.CompulsoryIncompleteError
	return errors.As(err, &ce)
}

func isRequestValidationError(err error) bool {
	var ves validator.ValidationErrors
	var ve *services.ValidationError
	return errors.As(err, &ves) || errors.As(err, &ve)
}

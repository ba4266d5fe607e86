package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/resq-training/checklist-service/internal/models"
	"github.com/resq-training/checklist-service/internal/repositories"
	"github.com/resq-training/checklist-service/internal/services"
	"github.com/resq-training/checklist-service/internal/utils"
	"github.com/resq-training/checklist-service/internal/validator"
)

type ResultHandler struct {
	BaseHandler
	resultService services.ResultService
	validator     *validator.Validator
}

func NewResultHandler(
	resultService services.ResultService,
	v *validator.Validator,
	logger utils.Logger,
) *ResultHandler {
	return &ResultHandler{
		BaseHandler:   NewBaseHandler(logger),
		resultService: resultService,
		validator:     v,
	}
}

// SubmitResult scores and persists an assessment submission.
func (h *ResultHandler) SubmitResult(c *gin.Context) {
	var req services.SubmitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Submitting checklist result",
		"participant_id", req.ParticipantID,
		"checklist_type", req.ChecklistType)

	result, err := h.resultService.Submit(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetResult returns one result by ID.
func (h *ResultHandler) GetResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	result, err := h.resultService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListResults returns results matching the query filters.
func (h *ResultHandler) ListResults(c *gin.Context) {
	filters := h.parseResultFilters(c)

	h.LogRequest(c, "Listing checklist results")

	resp, err := h.resultService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetStats returns aggregate result statistics.
func (h *ResultHandler) GetStats(c *gin.Context) {
	h.LogRequest(c, "Getting result stats")

	stats, err := h.resultService.Stats(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// DeleteResult tombstones a result.
func (h *ResultHandler) DeleteResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.SoftDeleteResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Deleting checklist result", "result_id", id, "deleted_by", req.DeletedBy)

	if err := h.resultService.SoftDelete(c.Request.Context(), id, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Checklist result deleted"})
}

// AnnotateResult replaces the instructor comments on a result.
func (h *ResultHandler) AnnotateResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.AnnotateResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.resultService.Annotate(c.Request.Context(), id, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Comments updated"})
}

// ExportResults streams the filtered results as an xlsx workbook.
func (h *ResultHandler) ExportResults(c *gin.Context) {
	filters := h.parseResultFilters(c)

	h.LogRequest(c, "Exporting checklist results")

	data, err := h.resultService.Export(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("checklist-results-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *ResultHandler) parseResultFilters(c *gin.Context) repositories.ResultFilters {
	filters := repositories.ResultFilters{
		SortBy:    c.DefaultQuery("sort_by", "submitted_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if v := c.Query("participant_id"); v != "" {
		filters.ParticipantID = &v
	}
	if v := c.Query("checklist_type"); v != "" {
		t := models.ChecklistType(v)
		filters.ChecklistType = &t
	}
	if v := c.Query("verdict"); v != "" {
		verdict := models.Verdict(v)
		filters.Verdict = &verdict
	}
	if v := c.Query("date_from"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filters.DateFrom = &ts
		}
	}
	if v := c.Query("date_to"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filters.DateTo = &ts
		}
	}
	if v := c.Query("include_deleted"); v == "true" {
		filters.IncludeDeleted = true
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	filters.Limit = limit

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	filters.Offset = offset

	return filters
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resq-training/checklist-service/internal/models"
	"github.com/resq-training/checklist-service/internal/services"
	"github.com/resq-training/checklist-service/internal/utils"
	"github.com/resq-training/checklist-service/internal/validator"
)

type ChecklistHandler struct {
	BaseHandler
	checklistService services.ChecklistService
	validator        *validator.Validator
}

func NewChecklistHandler(
	checklistService services.ChecklistService,
	v *validator.Validator,
	logger utils.Logger,
) *ChecklistHandler {
	return &ChecklistHandler{
		BaseHandler:      NewBaseHandler(logger),
		checklistService: checklistService,
		validator:        v,
	}
}

// ListTypes returns the fixed set of checklist types.
func (h *ChecklistHandler) ListTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"types": models.ChecklistTypes})
}

// GetItems returns the items of one checklist type, grouped flat.
func (h *ChecklistHandler) GetItems(c *gin.Context) {
	checklistType := models.ChecklistType(c.Param("type"))

	h.LogRequest(c, "Getting checklist items", "checklist_type", checklistType)

	items, err := h.checklistService.GetItems(c.Request.Context(), checklistType)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checklist_type": checklistType,
		"items":          items,
	})
}

// GetSections returns the items of one checklist type grouped into
// ordered sections.
func (h *ChecklistHandler) GetSections(c *gin.Context) {
	checklistType := models.ChecklistType(c.Param("type"))

	h.LogRequest(c, "Getting checklist sections", "checklist_type", checklistType)

	sections, err := h.checklistService.GetSections(c.Request.Context(), checklistType)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checklist_type": checklistType,
		"sections":       sections,
	})
}

// PreviewScore scores a completion state without persisting anything.
func (h *ChecklistHandler) PreviewScore(c *gin.Context) {
	checklistType := models.ChecklistType(c.Param("type"))

	var req struct {
		CompletedItemIDs []uint `json:"completed_item_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	preview, err := h.checklistService.Preview(c.Request.Context(), checklistType, req.CompletedItemIDs)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

// CreateItem adds a checklist item.
func (h *ChecklistHandler) CreateItem(c *gin.Context) {
	var req services.CreateChecklistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating checklist item", "checklist_type", req.ChecklistType, "section", req.Section)

	item, err := h.checklistService.CreateItem(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// UpdateItem partially updates a checklist item.
func (h *ChecklistHandler) UpdateItem(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateChecklistItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating checklist item", "item_id", id)

	item, err := h.checklistService.UpdateItem(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// DeleteItem removes a checklist item.
func (h *ChecklistHandler) DeleteItem(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting checklist item", "item_id", id)

	if err := h.checklistService.DeleteItem(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Checklist item deleted"})
}

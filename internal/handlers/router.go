package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resq-training/checklist-service/internal/services"
	"github.com/resq-training/checklist-service/internal/utils"
	"github.com/resq-training/checklist-service/internal/validator"
)

type HandlerManager struct {
	checklistHandler *ChecklistHandler
	resultHandler    *ResultHandler
	serviceManager   services.ServiceManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	v *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		checklistHandler: NewChecklistHandler(serviceManager.Checklist(), v, logger),
		resultHandler:    NewResultHandler(serviceManager.Result(), v, logger),
		serviceManager:   serviceManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		// Checklist definition routes
		checklists := v1.Group("/checklists")
		{
			checklists.GET("/types", hm.checklistHandler.ListTypes)
			checklists.GET("/:type/items", hm.checklistHandler.GetItems)
			checklists.GET("/:type/sections", hm.checklistHandler.GetSections)
			checklists.POST("/:type/preview", hm.checklistHandler.PreviewScore)

			checklists.POST("/items", hm.checklistHandler.CreateItem)
			checklists.PUT("/items/:id", hm.checklistHandler.UpdateItem)
			checklists.DELETE("/items/:id", hm.checklistHandler.DeleteItem)
		}

		// Result routes
		results := v1.Group("/results")
		{
			results.POST("", hm.resultHandler.SubmitResult)
			results.GET("", hm.resultHandler.ListResults)
			results.GET("/stats", hm.resultHandler.GetStats)
			results.GET("/export", hm.resultHandler.ExportResults)
			results.GET("/:id", hm.resultHandler.GetResult)
			results.DELETE("/:id", hm.resultHandler.DeleteResult)
			results.PUT("/:id/comments", hm.resultHandler.AnnotateResult)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "checklist-service",
		})
	})
}

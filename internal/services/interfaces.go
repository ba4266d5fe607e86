package services

import (
	"context"

	"github.com/resq-training/checklist-service/internal/models"
	"github.com/resq-training/checklist-service/internal/repositories"
	"github.com/resq-training/checklist-service/internal/scoring"
	"github.com/resq-training/checklist-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use validator request types
type CreateChecklistItemRequest = validator.ChecklistItemCreateRequest
type UpdateChecklistItemRequest = validator.ChecklistItemUpdateRequest
type SubmitResultRequest = validator.SubmitResultRequest
type SoftDeleteResultRequest = validator.SoftDeleteResultRequest
type AnnotateResultRequest = validator.AnnotateResultRequest

type ResultListResponse struct {
	Results []*models.ChecklistResult `json:"results"`
	Total   int64                     `json:"total"`
	Limit   int                       `json:"limit"`
	Offset  int                       `json:"offset"`
}

// ScorePreview is the live scoring state returned to views while a
// participant works through a checklist.
type ScorePreview struct {
	CompletedCount int                    `json:"completed_count"`
	TotalCount     int                    `json:"total_count"`
	Percentage     float64                `json:"percentage"`
	CompulsoryMet  bool                   `json:"compulsory_met"`
	Verdict        models.Verdict         `json:"verdict"`
	Policy         scoring.Policy         `json:"policy"`
	Sections       []models.SectionResult `json:"sections"`
}

// ===== SERVICE INTERFACES =====

// ChecklistService is the view-facing surface over checklist items: a
// snapshot-cache read path plus coordinator-wrapped mutations.
type ChecklistService interface {
	// Read path. GetItems serves the cached snapshot and refreshes it
	// only when stale; Refresh forces a fetch through the given loader.
	GetItems(ctx context.Context, checklistType models.ChecklistType) ([]*models.ChecklistItem, error)
	GetSections(ctx context.Context, checklistType models.ChecklistType) ([]models.ChecklistSection, error)
	Refresh(ctx context.Context, key string, fetch func(context.Context) ([]*models.ChecklistItem, error)) ([]*models.ChecklistItem, error)

	// Scoring preview for in-progress attempts.
	Preview(ctx context.Context, checklistType models.ChecklistType, completedIDs []uint) (*ScorePreview, error)

	// Write path. All mutations run through the synchronization
	// coordinator so cache invalidation cannot be forgotten.
	CreateItem(ctx context.Context, req *CreateChecklistItemRequest) (*models.ChecklistItem, error)
	UpdateItem(ctx context.Context, id uint, req *UpdateChecklistItemRequest) (*models.ChecklistItem, error)
	DeleteItem(ctx context.Context, id uint) error
}

// ResultService owns the submission pipeline and the persisted result
// lifecycle (insert-only, tombstone soft delete, annotations).
type ResultService interface {
	Submit(ctx context.Context, req *SubmitResultRequest) (*models.ChecklistResult, error)

	GetByID(ctx context.Context, id uint) (*models.ChecklistResult, error)
	List(ctx context.Context, filters repositories.ResultFilters) (*ResultListResponse, error)
	Stats(ctx context.Context) (*repositories.ResultStats, error)

	SoftDelete(ctx context.Context, id uint, req *SoftDeleteResultRequest) error
	Annotate(ctx context.Context, id uint, req *AnnotateResultRequest) error

	// Export renders the filtered results as an .xlsx workbook.
	Export(ctx context.Context, filters repositories.ResultFilters) ([]byte, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Checklist() ChecklistService
	Result() ResultService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

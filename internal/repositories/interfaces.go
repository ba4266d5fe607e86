package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/resq-training/checklist-service/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// IsNotFoundError reports whether err means a missing row, from either
// this package or gorm directly.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// ===== SHARED FILTER STRUCTS =====

type ResultFilters struct {
	ParticipantID  *string               `json:"participant_id"`
	ChecklistType  *models.ChecklistType `json:"checklist_type"`
	Verdict        *models.Verdict       `json:"verdict"`
	DateFrom       *time.Time            `json:"date_from"`
	DateTo         *time.Time            `json:"date_to"`
	IncludeDeleted bool                  `json:"include_deleted"`
	Limit          int                   `json:"limit"`
	Offset         int                   `json:"offset"`
	SortBy         string                `json:"sort_by"`    // "submitted_at", "participant_name", "percentage"
	SortOrder      string                `json:"sort_order"` // "asc", "desc"
}

// ===== SHARED STATISTICS STRUCTS =====

type ResultStats struct {
	TotalResults    int64                          `json:"total_results"`
	PassCount       int64                          `json:"pass_count"`
	FailCount       int64                          `json:"fail_count"`
	IncompleteCount int64                          `json:"incomplete_count"`
	PassRate        float64                        `json:"pass_rate"`
	ByType          map[models.ChecklistType]int64 `json:"by_type"`
}

// ===== REPOSITORY INTERFACES =====

type ChecklistItemRepository interface {
	Create(ctx context.Context, tx *gorm.DB, item *models.ChecklistItem) error
	Update(ctx context.Context, tx *gorm.DB, item *models.ChecklistItem) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ChecklistItem, error)
	GetByType(ctx context.Context, tx *gorm.DB, checklistType models.ChecklistType) ([]*models.ChecklistItem, error)
	List(ctx context.Context, tx *gorm.DB) ([]*models.ChecklistItem, error)
}

type ChecklistResultRepository interface {
	// Create inserts a new result row. Results are insert-only: there is
	// deliberately no Update, only the tombstone and annotation methods.
	Create(ctx context.Context, tx *gorm.DB, result *models.ChecklistResult) error

	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ChecklistResult, error)
	List(ctx context.Context, tx *gorm.DB, filters ResultFilters) ([]*models.ChecklistResult, int64, error)
	GetLatest(ctx context.Context, tx *gorm.DB, participantID string, checklistType models.ChecklistType) (*models.ChecklistResult, error)
	CountByParticipant(ctx context.Context, tx *gorm.DB, participantID string, checklistType models.ChecklistType) (int64, error)

	// SoftDelete sets the tombstone fields and nothing else.
	SoftDelete(ctx context.Context, tx *gorm.DB, id uint, deletedBy, reason string) error
	// Annotate replaces the instructor comments and nothing else.
	Annotate(ctx context.Context, tx *gorm.DB, id uint, comments string) error

	GetStats(ctx context.Context, tx *gorm.DB) (*ResultStats, error)
}

// Repository aggregates all sub-repositories behind one dependency.
type Repository interface {
	ChecklistItem() ChecklistItemRepository
	ChecklistResult() ChecklistResultRepository

	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	Ping(ctx context.Context) error
	Close() error
}

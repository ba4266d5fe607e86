package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/resq-training/checklist-service/internal/cache"
	"github.com/resq-training/checklist-service/internal/events"
	"github.com/resq-training/checklist-service/internal/models"
	"github.com/resq-training/checklist-service/internal/repositories"
)

type ChecklistResultPostgreSQL struct {
	db           *gorm.DB
	feed         *events.ChangeFeed
	cacheManager *cache.CacheManager
}

func NewChecklistResultPostgreSQL(db *gorm.DB, feed *events.ChangeFeed, cacheManager *cache.CacheManager) repositories.ChecklistResultRepository {
	return &ChecklistResultPostgreSQL{
		db:           db,
		feed:         feed,
		cacheManager: cacheManager,
	}
}

func (r *ChecklistResultPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ChecklistResultPostgreSQL) publishChange(ctx context.Context, changeType events.ChangeType, newRow, oldRow *models.ChecklistResult) {
	if r.feed == nil {
		return
	}
	ev, err := events.NewChangeEvent(changeType, events.TableChecklistResults, newRow, oldRow)
	if err == nil {
		err = r.feed.Publish(ctx, ev)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish result change", "error", err, "change", changeType)
	}
}

// Create inserts a result row and publishes the insert event
func (r *ChecklistResultPostgreSQL) Create(ctx context.Context, tx *gorm.DB, result *models.ChecklistResult) error {
	if err := r.getDB(tx).WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("failed to create checklist result: %w", err)
	}

	cache.InvalidateResultCache(ctx, r.cacheManager, result.ParticipantID)
	r.publishChange(ctx, events.ChangeInsert, result, nil)
	return nil
}

func (r *ChecklistResultPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ChecklistResult, error) {
	var result models.ChecklistResult
	err := r.getDB(tx).WithContext(ctx).First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get checklist result: %w", err)
	}
	return &result, nil
}

// resultPage is the cached shape of a List call: rows plus the unpaged total.
type resultPage struct {
	Results []*models.ChecklistResult `json:"results"`
	Total   int64                     `json:"total"`
}

// resultListCacheKey derives a deterministic cache key from the list filters.
// Participant-scoped listings get a "participant:<id>:" key so a write by one
// participant does not evict another participant's listings; everything else
// lives under "list:" and is evicted wholesale by InvalidateResultCache.
func resultListCacheKey(filters repositories.ResultFilters) string {
	prefix := "list:"
	if filters.ParticipantID != nil {
		prefix = fmt.Sprintf("participant:%s:", *filters.ParticipantID)
	}

	checklistType := "-"
	if filters.ChecklistType != nil {
		checklistType = string(*filters.ChecklistType)
	}
	verdict := "-"
	if filters.Verdict != nil {
		verdict = string(*filters.Verdict)
	}
	dateFrom := "-"
	if filters.DateFrom != nil {
		dateFrom = strconv.FormatInt(filters.DateFrom.Unix(), 10)
	}
	dateTo := "-"
	if filters.DateTo != nil {
		dateTo = strconv.FormatInt(filters.DateTo.Unix(), 10)
	}

	return fmt.Sprintf("%s%s:%s:%s:%s:%t:%s:%s:%d:%d",
		prefix, checklistType, verdict, dateFrom, dateTo,
		filters.IncludeDeleted, filters.SortBy, filters.SortOrder,
		filters.Limit, filters.Offset)
}

// List returns results matching the filters plus the unpaged total count,
// cached per filter combination. Tombstoned rows are excluded unless
// IncludeDeleted is set.
func (r *ChecklistResultPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ResultFilters) ([]*models.ChecklistResult, int64, error) {
	var page resultPage

	err := r.cacheManager.Result.CacheOrExecute(ctx, resultListCacheKey(filters), &page, cache.ResultCacheConfig.TTL, func() (interface{}, error) {
		results, total, err := r.listFromDB(ctx, tx, filters)
		if err != nil {
			return nil, err
		}
		return &resultPage{Results: results, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}

	return page.Results, page.Total, nil
}

func (r *ChecklistResultPostgreSQL) listFromDB(ctx context.Context, tx *gorm.DB, filters repositories.ResultFilters) ([]*models.ChecklistResult, int64, error) {
	query := r.getDB(tx).WithContext(ctx).Model(&models.ChecklistResult{})

	if !filters.IncludeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if filters.ParticipantID != nil {
		query = query.Where("participant_id = ?", *filters.ParticipantID)
	}
	if filters.ChecklistType != nil {
		query = query.Where("checklist_type = ?", *filters.ChecklistType)
	}
	if filters.Verdict != nil {
		query = query.Where("verdict = ?", *filters.Verdict)
	}
	if filters.DateFrom != nil {
		query = query.Where("submitted_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("submitted_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count checklist results: %w", err)
	}

	sortBy := filters.SortBy
	switch sortBy {
	case "participant_name", "percentage", "submitted_at":
	default:
		sortBy = "submitted_at"
	}
	order := "DESC"
	if filters.SortOrder == "asc" {
		order = "ASC"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, order))

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var results []*models.ChecklistResult
	if err := query.Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list checklist results: %w", err)
	}

	return results, total, nil
}

// GetLatest returns the most recent non-deleted result for a participant
// and checklist type, used for retake bookkeeping.
func (r *ChecklistResultPostgreSQL) GetLatest(ctx context.Context, tx *gorm.DB, participantID string, checklistType models.ChecklistType) (*models.ChecklistResult, error) {
	var result models.ChecklistResult
	err := r.getDB(tx).WithContext(ctx).
		Where("participant_id = ? AND checklist_type = ? AND is_deleted = ?", participantID, checklistType, false).
		Order("submitted_at DESC").
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest checklist result: %w", err)
	}
	return &result, nil
}

func (r *ChecklistResultPostgreSQL) CountByParticipant(ctx context.Context, tx *gorm.DB, participantID string, checklistType models.ChecklistType) (int64, error) {
	var count int64
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.ChecklistResult{}).
		Where("participant_id = ? AND checklist_type = ? AND is_deleted = ?", participantID, checklistType, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count checklist results: %w", err)
	}
	return count, nil
}

// SoftDelete stamps the tombstone fields on a result. The scoring fields
// are never touched and the row is never hard-deleted.
func (r *ChecklistResultPostgreSQL) SoftDelete(ctx context.Context, tx *gorm.DB, id uint, deletedBy, reason string) error {
	old, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if old.IsDeleted {
		return fmt.Errorf("checklist result %d is already deleted", id)
	}

	now := time.Now()
	res := r.getDB(tx).WithContext(ctx).
		Model(&models.ChecklistResult{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted":     true,
			"deleted_by":     deletedBy,
			"deleted_at":     now,
			"deleted_reason": reason,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to soft delete checklist result: %w", res.Error)
	}

	updated := *old
	updated.IsDeleted = true
	updated.DeletedBy = &deletedBy
	updated.DeletedAt = &now
	updated.DeletedReason = &reason

	cache.InvalidateResultCache(ctx, r.cacheManager, old.ParticipantID)
	r.publishChange(ctx, events.ChangeUpdate, &updated, old)
	return nil
}

// Annotate replaces the instructor comments on a result.
func (r *ChecklistResultPostgreSQL) Annotate(ctx context.Context, tx *gorm.DB, id uint, comments string) error {
	old, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}

	res := r.getDB(tx).WithContext(ctx).
		Model(&models.ChecklistResult{}).
		Where("id = ?", id).
		Update("instructor_comments", comments)
	if res.Error != nil {
		return fmt.Errorf("failed to annotate checklist result: %w", res.Error)
	}

	updated := *old
	updated.InstructorComments = &comments

	cache.InvalidateResultCache(ctx, r.cacheManager, old.ParticipantID)
	r.publishChange(ctx, events.ChangeUpdate, &updated, old)
	return nil
}

// GetStats aggregates verdict counts across non-deleted results, cached
// behind the stats helper.
func (r *ChecklistResultPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB) (*repositories.ResultStats, error) {
	var stats repositories.ResultStats

	err := r.cacheManager.Stats.CacheOrExecute(ctx, "results:overview", &stats, cache.StatsCacheConfig.TTL, func() (interface{}, error) {
		db := r.getDB(tx).WithContext(ctx).Model(&models.ChecklistResult{}).Where("is_deleted = ?", false)

		fresh := repositories.ResultStats{ByType: make(map[models.ChecklistType]int64)}
		if err := db.Session(&gorm.Session{}).Count(&fresh.TotalResults).Error; err != nil {
			return nil, fmt.Errorf("failed to count results: %w", err)
		}

		type verdictCount struct {
			Verdict models.Verdict
			Count   int64
		}
		var byVerdict []verdictCount
		if err := db.Session(&gorm.Session{}).
			Select("verdict, count(*) as count").
			Group("verdict").
			Scan(&byVerdict).Error; err != nil {
			return nil, fmt.Errorf("failed to aggregate verdicts: %w", err)
		}
		for _, vc := range byVerdict {
			switch vc.Verdict {
			case models.VerdictPass:
				fresh.PassCount = vc.Count
			case models.VerdictFail:
				fresh.FailCount = vc.Count
			case models.VerdictIncomplete:
				fresh.IncompleteCount = vc.Count
			}
		}

		type typeCount struct {
			ChecklistType models.ChecklistType
			Count         int64
		}
		var byType []typeCount
		if err := db.Session(&gorm.Session{}).
			Select("checklist_type, count(*) as count").
			Group("checklist_type").
			Scan(&byType).Error; err != nil {
			return nil, fmt.Errorf("failed to aggregate types: %w", err)
		}
		for _, tc := range byType {
			fresh.ByType[tc.ChecklistType] = tc.Count
		}

		if fresh.TotalResults > 0 {
			fresh.PassRate = float64(fresh.PassCount) / float64(fresh.TotalResults) * 100
		}

		return &fresh, nil
	})
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/resq-training/checklist-service/internal/cache"
	"github.com/resq-training/checklist-service/internal/events"
	"github.com/resq-training/checklist-service/internal/models"
	"github.com/resq-training/checklist-service/internal/repositories"
)

type ChecklistItemPostgreSQL struct {
	db           *gorm.DB
	feed         *events.ChangeFeed
	cacheManager *cache.CacheManager
}

func NewChecklistItemPostgreSQL(db *gorm.DB, feed *events.ChangeFeed, cacheManager *cache.CacheManager) repositories.ChecklistItemRepository {
	return &ChecklistItemPostgreSQL{
		db:           db,
		feed:         feed,
		cacheManager: cacheManager,
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (r *ChecklistItemPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// publishChange emits a row change on the change feed. A write that
// committed but failed to publish is logged, not failed: the cache
// converges on the next explicit refresh.
func (r *ChecklistItemPostgreSQL) publishChange(ctx context.Context, changeType events.ChangeType, newRow, oldRow *models.ChecklistItem) {
	if r.feed == nil {
		return
	}
	ev, err := events.NewChangeEvent(changeType, events.TableChecklistItems, newRow, oldRow)
	if err == nil {
		err = r.feed.Publish(ctx, ev)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish item change", "error", err, "change", changeType)
	}
}

// Create inserts a checklist item and publishes the insert event
func (r *ChecklistItemPostgreSQL) Create(ctx context.Context, tx *gorm.DB, item *models.ChecklistItem) error {
	if err := r.getDB(tx).WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create checklist item: %w", err)
	}

	cache.InvalidateChecklistCache(ctx, r.cacheManager, string(item.ChecklistType))
	r.publishChange(ctx, events.ChangeInsert, item, nil)
	return nil
}

// Update replaces a checklist item and publishes the update event
func (r *ChecklistItemPostgreSQL) Update(ctx context.Context, tx *gorm.DB, item *models.ChecklistItem) error {
	old, err := r.GetByID(ctx, tx, item.ID)
	if err != nil {
		return err
	}

	if err := r.getDB(tx).WithContext(ctx).Save(item).Error; err != nil {
		return fmt.Errorf("failed to update checklist item: %w", err)
	}

	cache.InvalidateChecklistCache(ctx, r.cacheManager, string(item.ChecklistType))
	if old.ChecklistType != item.ChecklistType {
		cache.InvalidateChecklistCache(ctx, r.cacheManager, string(old.ChecklistType))
	}
	r.publishChange(ctx, events.ChangeUpdate, item, old)
	return nil
}

// Delete removes a checklist item and publishes the delete event carrying
// the old row, so subscribers can still resolve the affected checklist type.
func (r *ChecklistItemPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	old, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := r.getDB(tx).WithContext(ctx).Delete(&models.ChecklistItem{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete checklist item: %w", err)
	}

	cache.InvalidateChecklistCache(ctx, r.cacheManager, string(old.ChecklistType))
	r.publishChange(ctx, events.ChangeDelete, nil, old)
	return nil
}

func (r *ChecklistItemPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ChecklistItem, error) {
	var item models.ChecklistItem
	err := r.getDB(tx).WithContext(ctx).First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get checklist item: %w", err)
	}
	return &item, nil
}

// GetByType returns all items for one checklist type ordered for display,
// with caching. Duplicate order indices are tolerated; id breaks the tie
// stably. The cache key matches the one InvalidateChecklistCache deletes.
func (r *ChecklistItemPostgreSQL) GetByType(ctx context.Context, tx *gorm.DB, checklistType models.ChecklistType) ([]*models.ChecklistItem, error) {
	cacheKey := fmt.Sprintf("type:%s", checklistType)
	var items []*models.ChecklistItem

	err := r.cacheManager.Checklist.CacheOrExecute(ctx, cacheKey, &items, cache.ChecklistCacheConfig.TTL, func() (interface{}, error) {
		var dbItems []*models.ChecklistItem
		if err := r.getDB(tx).WithContext(ctx).
			Where("checklist_type = ?", checklistType).
			Order("order_index ASC, id ASC").
			Find(&dbItems).Error; err != nil {
			return nil, fmt.Errorf("failed to get checklist items by type: %w", err)
		}
		return dbItems, nil
	})

	return items, err
}

// List returns every checklist item across all types, with caching.
func (r *ChecklistItemPostgreSQL) List(ctx context.Context, tx *gorm.DB) ([]*models.ChecklistItem, error) {
	var items []*models.ChecklistItem

	err := r.cacheManager.Checklist.CacheOrExecute(ctx, "list:all", &items, cache.ChecklistCacheConfig.TTL, func() (interface{}, error) {
		var dbItems []*models.ChecklistItem
		if err := r.getDB(tx).WithContext(ctx).
			Order("checklist_type ASC, order_index ASC, id ASC").
			Find(&dbItems).Error; err != nil {
			return nil, fmt.Errorf("failed to list checklist items: %w", err)
		}
		return dbItems, nil
	})

	return items, err
}

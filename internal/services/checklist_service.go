package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resq-training/checklist-service/internal/cache"
	"github.com/resq-training/checklist-service/internal/models"
	"github.com/resq-training/checklist-service/internal/repositories"
	"github.com/resq-training/checklist-service/internal/scoring"
	"github.com/resq-training/checklist-service/internal/syncer"
	"github.com/resq-training/checklist-service/internal/validator"
)

type checklistService struct {
	repo        repositories.Repository
	snapshots   *cache.SnapshotCache
	coordinator *syncer.Coordinator
	logger      *slog.Logger
	validator   *validator.Validator
}

func NewChecklistService(
	repo repositories.Repository,
	snapshots *cache.SnapshotCache,
	coordinator *syncer.Coordinator,
	logger *slog.Logger,
	v *validator.Validator,
) ChecklistService {
	return &checklistService{
		repo:        repo,
		snapshots:   snapshots,
		coordinator: coordinator,
		logger:      logger,
		validator:   v,
	}
}

// GetItems returns the current snapshot for a checklist type, refreshing
// from the repository only when the snapshot is stale. A fresh snapshot
// is served without touching the database.
func (s *checklistService) GetItems(ctx context.Context, checklistType models.ChecklistType) ([]*models.ChecklistItem, error) {
	if !checklistType.IsValid() {
		return nil, NewValidationError("checklist_type", "must be a known checklist type", checklistType)
	}

	key := string(checklistType)
	if !s.snapshots.IsStale(key) {
		return s.snapshots.Get(key), nil
	}

	return s.Refresh(ctx, key, func(ctx context.Context) ([]*models.ChecklistItem, error) {
		return s.repo.ChecklistItem().GetByType(ctx, nil, checklistType)
	})
}

// Refresh fetches through the given loader and replaces the snapshot on
// success. A failed fetch leaves the cache untouched: stale data beats
// torn data.
func (s *checklistService) Refresh(ctx context.Context, key string, fetch func(context.Context) ([]*models.ChecklistItem, error)) ([]*models.ChecklistItem, error) {
	items, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh checklist %q: %w", key, err)
	}

	s.snapshots.Set(key, items)
	s.logger.Debug("Checklist snapshot refreshed", "key", key, "items", len(items))
	return items, nil
}

func (s *checklistService) GetSections(ctx context.Context, checklistType models.ChecklistType) ([]models.ChecklistSection, error) {
	items, err := s.GetItems(ctx, checklistType)
	if err != nil {
		return nil, err
	}
	return scoring.BuildSections(items), nil
}

// Preview scores the current completion state without persisting anything.
// Views call this on every selection change.
func (s *checklistService) Preview(ctx context.Context, checklistType models.ChecklistType, completedIDs []uint) (*ScorePreview, error) {
	sections, err := s.GetSections(ctx, checklistType)
	if err != nil {
		return nil, err
	}

	policy := scoring.PolicyFor(checklistType)
	res := scoring.Score(sections, scoring.NewCompletionSet(completedIDs...), policy)

	return &ScorePreview{
		CompletedCount: res.CompletedCount,
		TotalCount:     res.TotalCount,
		Percentage:     res.Percentage,
		CompulsoryMet:  res.CompulsoryMet,
		Verdict:        res.Verdict,
		Policy:         policy,
		Sections:       res.Sections,
	}, nil
}

func (s *checklistService) CreateItem(ctx context.Context, req *CreateChecklistItemRequest) (*models.ChecklistItem, error) {
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}

	item := &models.ChecklistItem{
		ChecklistType: req.ChecklistType,
		Section:       req.Section,
		Text:          req.Text,
		Compulsory:    req.Compulsory,
		OrderIndex:    req.OrderIndex,
	}

	created, err := syncer.Mutate(ctx, s.coordinator, string(req.ChecklistType), func(ctx context.Context) (*models.ChecklistItem, error) {
		if err := s.repo.ChecklistItem().Create(ctx, nil, item); err != nil {
			return nil, err
		}
		return item, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checklist item: %w", err)
	}

	s.logger.Info("Checklist item created",
		"item_id", created.ID,
		"checklist_type", created.ChecklistType,
		"section", created.Section)

	return created, nil
}

func (s *checklistService) UpdateItem(ctx context.Context, id uint, req *UpdateChecklistItemRequest) (*models.ChecklistItem, error) {
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}

	item, err := s.repo.ChecklistItem().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get checklist item: %w", err)
	}

	if req.Section != nil {
		item.Section = *req.Section
	}
	if req.Text != nil {
		item.Text = *req.Text
	}
	if req.Compulsory != nil {
		item.Compulsory = *req.Compulsory
	}
	if req.OrderIndex != nil {
		item.OrderIndex = *req.OrderIndex
	}

	updated, err := syncer.Mutate(ctx, s.coordinator, string(item.ChecklistType), func(ctx context.Context) (*models.ChecklistItem, error) {
		if err := s.repo.ChecklistItem().Update(ctx, nil, item); err != nil {
			return nil, err
		}
		return item, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update checklist item: %w", err)
	}

	s.logger.Info("Checklist item updated", "item_id", id, "checklist_type", item.ChecklistType)

	return updated, nil
}

func (s *checklistService) DeleteItem(ctx context.Context, id uint) error {
	item, err := s.repo.ChecklistItem().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get checklist item: %w", err)
	}

	err = s.coordinator.RunMutation(ctx, string(item.ChecklistType), func(ctx context.Context) error {
		return s.repo.ChecklistItem().Delete(ctx, nil, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete checklist item: %w", err)
	}

	s.logger.Info("Checklist item deleted", "item_id", id, "checklist_type", item.ChecklistType)

	return nil
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"

	"github.com/resq-training/checklist-service/internal/events"
	"github.com/resq-training/checklist-service/internal/models"
	"github.com/resq-training/checklist-service/internal/repositories"
	"github.com/resq-training/checklist-service/internal/scoring"
	"github.com/resq-training/checklist-service/internal/syncer"
	"github.com/resq-training/checklist-service/internal/validator"
)

type resultService struct {
	repo           repositories.Repository
	coordinator    *syncer.Coordinator
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	validator      *validator.Validator
}

func NewResultService(
	repo repositories.Repository,
	coordinator *syncer.Coordinator,
	eventPublisher events.EventPublisher,
	logger *slog.Logger,
	v *validator.Validator,
) ResultService {
	return &resultService{
		repo:           repo,
		coordinator:    coordinator,
		eventPublisher: eventPublisher,
		logger:         logger,
		validator:      v,
	}
}

// Submit scores the submission server-side from the authoritative item
// list, gates PASS verdicts on compulsory completion, snapshots the
// participant fields, and inserts the result through the coordinator's
// mutation wrapper. The client's own verdict is never trusted.
func (s *resultService) Submit(ctx context.Context, req *SubmitResultRequest) (*models.ChecklistResult, error) {
	if errs := s.validator.Validate(req); errs != nil {
		return nil, errs
	}

	items, err := s.repo.ChecklistItem().GetByType(ctx, nil, req.ChecklistType)
	if err != nil {
		return nil, fmt.Errorf("failed to load checklist items: %w", err)
	}
	if len(items) == 0 {
		return nil, NewValidationError("checklist_type", "has no checklist items configured", req.ChecklistType)
	}

	sections := scoring.BuildSections(items)
	completed := scoring.NewCompletionSet(req.CompletedItemIDs...)
	policy := scoring.PolicyFor(req.ChecklistType)
	scored := scoring.Score(sections, completed, policy)

	// Hard gate: a PASS under the compulsory policy must survive the
	// policy-independent compulsory re-check before anything is written.
	if scored.Verdict == models.VerdictPass && policy == scoring.PolicyCompulsory {
		if ok, missing := scoring.ValidateCompulsoryCompletion(sections, completed); !ok {
			s.logger.Warn("Rejecting PASS submission with incomplete compulsory items",
				"participant_id", req.ParticipantID,
				"checklist_type", req.ChecklistType,
				"missing", missing)
			return nil, &CompulsoryIncompleteError{Missing: missing}
		}
	}

	sectionsJSON, err := json.Marshal(scored.Sections)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize section results: %w", err)
	}

	retakeCount, err := s.repo.ChecklistResult().CountByParticipant(ctx, nil, req.ParticipantID, req.ChecklistType)
	if err != nil {
		return nil, fmt.Errorf("failed to count previous results: %w", err)
	}

	var previousID *uint
	if retakeCount > 0 {
		previous, err := s.repo.ChecklistResult().GetLatest(ctx, nil, req.ParticipantID, req.ChecklistType)
		if err != nil && !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to get previous result: %w", err)
		}
		if previous != nil {
			previousID = &previous.ID
		}
	}

	result := &models.ChecklistResult{
		UUID:                uuid.NewString(),
		ParticipantID:       req.ParticipantID,
		ParticipantName:     req.ParticipantName,
		ParticipantEmail:    req.ParticipantEmail,
		ParticipantIC:       req.ParticipantIC,
		ParticipantJob:      req.ParticipantJob,
		ParticipantCategory: req.ParticipantCategory,
		ChecklistType:       req.ChecklistType,
		TotalItems:          scored.TotalCount,
		CompletedItems:      scored.CompletedCount,
		Percentage:          scored.Percentage,
		Verdict:             scored.Verdict,
		Sections:            datatypes.JSON(sectionsJSON),
		InstructorComments:  req.InstructorComments,
		RetakeCount:         int(retakeCount),
		IsRetake:            retakeCount > 0,
		PreviousResultID:    previousID,
		SubmittedAt:         time.Now(),
	}

	created, err := syncer.Mutate(ctx, s.coordinator, syncer.KeyResults, func(ctx context.Context) (*models.ChecklistResult, error) {
		if err := s.repo.ChecklistResult().Create(ctx, nil, result); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save checklist result: %w", err)
	}

	s.logger.Info("Checklist result submitted",
		"result_id", created.ID,
		"participant_id", created.ParticipantID,
		"checklist_type", created.ChecklistType,
		"verdict", created.Verdict,
		"percentage", created.Percentage,
		"is_retake", created.IsRetake)

	s.publishEvent(ctx, events.EventResultSubmitted, created)

	return created, nil
}

func (s *resultService) GetByID(ctx context.Context, id uint) (*models.ChecklistResult, error) {
	result, err := s.repo.ChecklistResult().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get checklist result: %w", err)
	}
	return result, nil
}

func (s *resultService) List(ctx context.Context, filters repositories.ResultFilters) (*ResultListResponse, error) {
	results, total, err := s.repo.ChecklistResult().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list checklist results: %w", err)
	}

	return &ResultListResponse{
		Results: results,
		Total:   total,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
	}, nil
}

func (s *resultService) Stats(ctx context.Context) (*repositories.ResultStats, error) {
	return s.repo.ChecklistResult().GetStats(ctx, nil)
}

func (s *resultService) SoftDelete(ctx context.Context, id uint, req *SoftDeleteResultRequest) error {
	if errs := s.validator.Validate(req); errs != nil {
		return errs
	}

	err := s.coordinator.RunMutation(ctx, syncer.KeyResults, func(ctx context.Context) error {
		return s.repo.ChecklistResult().SoftDelete(ctx, nil, id, req.DeletedBy, req.Reason)
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to soft delete checklist result: %w", err)
	}

	s.logger.Info("Checklist result soft deleted",
		"result_id", id,
		"deleted_by", req.DeletedBy)

	s.publishEvent(ctx, events.EventResultDeleted, map[string]interface{}{
		"result_id":  id,
		"deleted_by": req.DeletedBy,
		"reason":     req.Reason,
	})

	return nil
}

func (s *resultService) Annotate(ctx context.Context, id uint, req *AnnotateResultRequest) error {
	if errs := s.validator.Validate(req); errs != nil {
		return errs
	}

	err := s.coordinator.RunMutation(ctx, syncer.KeyResults, func(ctx context.Context) error {
		return s.repo.ChecklistResult().Annotate(ctx, nil, id, req.Comments)
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to annotate checklist result: %w", err)
	}

	s.logger.Info("Checklist result annotated", "result_id", id)

	return nil
}

// publishEvent emits an integration event without failing the write that
// triggered it.
func (s *resultService) publishEvent(ctx context.Context, eventType string, data interface{}) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events.NewEvent(eventType, data)); err != nil {
		s.logger.Error("Failed to publish integration event",
			"error", err,
			"event_type", eventType)
	}
}

var exportHeaders = []string{
	"Submitted At", "Participant", "Email", "IC", "Job", "Category",
	"Checklist Type", "Completed", "Total", "Percentage", "Verdict",
	"Retake", "Comments",
}

// Export renders the filtered results as an .xlsx workbook.
func (s *resultService) Export(ctx context.Context, filters repositories.ResultFilters) ([]byte, error) {
	// Export everything matching the filters, not one page.
	filters.Limit = 0
	filters.Offset = 0

	results, _, err := s.repo.ChecklistResult().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to load results for export: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to set sheet name: %w", err)
	}

	for col, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, result := range results {
		comments := ""
		if result.InstructorComments != nil {
			comments = *result.InstructorComments
		}
		retake := "No"
		if result.IsRetake {
			retake = fmt.Sprintf("Yes (%d)", result.RetakeCount)
		}

		row := []interface{}{
			result.SubmittedAt.Format(time.RFC3339),
			result.ParticipantName,
			result.ParticipantEmail,
			result.ParticipantIC,
			result.ParticipantJob,
			result.ParticipantCategory,
			string(result.ChecklistType),
			result.CompletedItems,
			result.TotalItems,
			result.Percentage,
			string(result.Verdict),
			retake,
			comments,
		}
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("failed to build cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Results exported", "rows", len(results))

	return buf.Bytes(), nil
}

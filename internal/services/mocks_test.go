package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/resq-training/checklist-service/internal/cache"
	"github.com/resq-training/checklist-service/internal/events"
	"github.com/resq-training/checklist-service/internal/models"
	"github.com/resq-training/checklist-service/internal/repositories"
	"github.com/resq-training/checklist-service/internal/syncer"
	"github.com/resq-training/checklist-service/internal/validator"
)

// mockItemRepo is a configurable in-memory ChecklistItemRepository.
// Behaviors default to empty results; tests override the func fields
// they care about.
type mockItemRepo struct {
	mu        sync.Mutex
	items     []*models.ChecklistItem
	createFn  func(ctx context.Context, item *models.ChecklistItem) error
	updateFn  func(ctx context.Context, item *models.ChecklistItem) error
	deleteFn  func(ctx context.Context, id uint) error
	getByType func(ctx context.Context, t models.ChecklistType) ([]*models.ChecklistItem, error)

	createCalls int
	getTypeCall int
}

func (m *mockItemRepo) Create(ctx context.Context, tx *gorm.DB, item *models.ChecklistItem) error {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, item)
	}
	item.ID = uint(len(m.items) + 1)
	m.items = append(m.items, item)
	return nil
}

func (m *mockItemRepo) Update(ctx context.Context, tx *gorm.DB, item *models.ChecklistItem) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, item)
	}
	return nil
}

func (m *mockItemRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockItemRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ChecklistItem, error) {
	for _, item := range m.items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *mockItemRepo) GetByType(ctx context.Context, tx *gorm.DB, t models.ChecklistType) ([]*models.ChecklistItem, error) {
	m.mu.Lock()
	m.getTypeCall++
	m.mu.Unlock()
	if m.getByType != nil {
		return m.getByType(ctx, t)
	}
	var out []*models.ChecklistItem
	for _, item := range m.items {
		if item.ChecklistType == t {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockItemRepo) List(ctx context.Context, tx *gorm.DB) ([]*models.ChecklistItem, error) {
	return m.items, nil
}

// mockResultRepo is a configurable in-memory ChecklistResultRepository.
type mockResultRepo struct {
	mu       sync.Mutex
	results  []*models.ChecklistResult
	createFn func(ctx context.Context, result *models.ChecklistResult) error
	softFn   func(ctx context.Context, id uint, deletedBy, reason string) error
	annotFn  func(ctx context.Context, id uint, comments string) error
	statsFn  func(ctx context.Context) (*repositories.ResultStats, error)

	createCalls int
}

func (m *mockResultRepo) Create(ctx context.Context, tx *gorm.DB, result *models.ChecklistResult) error {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, result)
	}
	result.ID = uint(len(m.results) + 1)
	m.results = append(m.results, result)
	return nil
}

func (m *mockResultRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ChecklistResult, error) {
	for _, r := range m.results {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *mockResultRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ResultFilters) ([]*models.ChecklistResult, int64, error) {
	var out []*models.ChecklistResult
	for _, r := range m.results {
		if r.IsDeleted && !filters.IncludeDeleted {
			continue
		}
		if filters.ParticipantID != nil && r.ParticipantID != *filters.ParticipantID {
			continue
		}
		if filters.ChecklistType != nil && r.ChecklistType != *filters.ChecklistType {
			continue
		}
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

func (m *mockResultRepo) GetLatest(ctx context.Context, tx *gorm.DB, participantID string, t models.ChecklistType) (*models.ChecklistResult, error) {
	var latest *models.ChecklistResult
	for _, r := range m.results {
		if r.IsDeleted || r.ParticipantID != participantID || r.ChecklistType != t {
			continue
		}
		if latest == nil || r.SubmittedAt.After(latest.SubmittedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, repositories.ErrNotFound
	}
	return latest, nil
}

func (m *mockResultRepo) CountByParticipant(ctx context.Context, tx *gorm.DB, participantID string, t models.ChecklistType) (int64, error) {
	var n int64
	for _, r := range m.results {
		if !r.IsDeleted && r.ParticipantID == participantID && r.ChecklistType == t {
			n++
		}
	}
	return n, nil
}

func (m *mockResultRepo) SoftDelete(ctx context.Context, tx *gorm.DB, id uint, deletedBy, reason string) error {
	if m.softFn != nil {
		return m.softFn(ctx, id, deletedBy, reason)
	}
	for _, r := range m.results {
		if r.ID == id {
			r.IsDeleted = true
			r.DeletedBy = &deletedBy
			r.DeletedReason = &reason
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *mockResultRepo) Annotate(ctx context.Context, tx *gorm.DB, id uint, comments string) error {
	if m.annotFn != nil {
		return m.annotFn(ctx, id, comments)
	}
	for _, r := range m.results {
		if r.ID == id {
			r.InstructorComments = &comments
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *mockResultRepo) GetStats(ctx context.Context, tx *gorm.DB) (*repositories.ResultStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &repositories.ResultStats{TotalResults: int64(len(m.results))}, nil
}

type mockRepository struct {
	items   *mockItemRepo
	results *mockResultRepo
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		items:   &mockItemRepo{},
		results: &mockResultRepo{},
	}
}

func (m *mockRepository) ChecklistItem() repositories.ChecklistItemRepository {
	return m.items
}

func (m *mockRepository) ChecklistResult() repositories.ChecklistResultRepository {
	return m.results
}

func (m *mockRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (m *mockRepository) Ping(ctx context.Context) error { return nil }
func (m *mockRepository) Close() error                   { return nil }

// testEnv bundles the real coordinator stack around a mock repository.
type testEnv struct {
	repo        *mockRepository
	snapshots   *cache.SnapshotCache
	coordinator *syncer.Coordinator
	publisher   *events.MockEventPublisher
	validator   *validator.Validator
	logger      *slog.Logger
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	snapshots := cache.NewSnapshotCache(logger)
	feed := events.NewChangeFeed(logger)
	return &testEnv{
		repo:        newMockRepository(),
		snapshots:   snapshots,
		coordinator: syncer.NewCoordinator(snapshots, feed, logger),
		publisher:   events.NewMockEventPublisher(logger),
		validator:   validator.New(),
		logger:      logger,
	}
}

func (e *testEnv) checklistService() ChecklistService {
	return NewChecklistService(e.repo, e.snapshots, e.coordinator, e.logger, e.validator)
}

func (e *testEnv) resultService() ResultService {
	return NewResultService(e.repo, e.coordinator, e.publisher, e.logger, e.validator)
}

// cprItems builds a two-section compulsory checklist: three airway items
// (one compulsory) and two circulation items (one compulsory).
func cprItems(t models.ChecklistType) []*models.ChecklistItem {
	return []*models.ChecklistItem{
		{ID: 1, ChecklistType: t, Section: "airway", Text: "Check responsiveness", Compulsory: true, OrderIndex: 1},
		{ID: 2, ChecklistType: t, Section: "airway", Text: "Open airway", OrderIndex: 2},
		{ID: 3, ChecklistType: t, Section: "airway", Text: "Check breathing", OrderIndex: 3},
		{ID: 4, ChecklistType: t, Section: "circulation", Text: "Check pulse", Compulsory: true, OrderIndex: 1},
		{ID: 5, ChecklistType: t, Section: "circulation", Text: "Begin compressions", OrderIndex: 2},
	}
}

// chokingItems builds a five-item quota checklist with no compulsory items.
func chokingItems(t models.ChecklistType) []*models.ChecklistItem {
	return []*models.ChecklistItem{
		{ID: 11, ChecklistType: t, Section: "response", Text: "Ask are you choking", OrderIndex: 1},
		{ID: 12, ChecklistType: t, Section: "response", Text: "Call for help", OrderIndex: 2},
		{ID: 13, ChecklistType: t, Section: "maneuver", Text: "Position hands", OrderIndex: 1},
		{ID: 14, ChecklistType: t, Section: "maneuver", Text: "Deliver thrusts", OrderIndex: 2},
		{ID: 15, ChecklistType: t, Section: "maneuver", Text: "Reassess airway", OrderIndex: 3},
	}
}

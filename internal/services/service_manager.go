package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/resq-training/checklist-service/internal/cache"
	"github.com/resq-training/checklist-service/internal/events"
	"github.com/resq-training/checklist-service/internal/repositories"
	"github.com/resq-training/checklist-service/internal/syncer"
	"github.com/resq-training/checklist-service/internal/validator"
)

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	repo           repositories.Repository
	snapshots      *cache.SnapshotCache
	coordinator    *syncer.Coordinator
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	validator      *validator.Validator

	// Service instances
	checklistService ChecklistService
	resultService    ResultService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(
	repo repositories.Repository,
	snapshots *cache.SnapshotCache,
	coordinator *syncer.Coordinator,
	eventPublisher events.EventPublisher,
	logger *slog.Logger,
	v *validator.Validator,
) ServiceManager {
	return &serviceManager{
		repo:           repo,
		snapshots:      snapshots,
		coordinator:    coordinator,
		eventPublisher: eventPublisher,
		logger:         logger,
		validator:      v,
	}
}

// Initialize constructs all services and starts the change-feed consumer.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.checklistService = NewChecklistService(sm.repo, sm.snapshots, sm.coordinator, sm.logger, sm.validator)
	sm.logger.Info("Checklist service initialized")

	sm.resultService = NewResultService(sm.repo, sm.coordinator, sm.eventPublisher, sm.logger, sm.validator)
	sm.logger.Info("Result service initialized")

	if err := sm.coordinator.StartListening(ctx); err != nil {
		return fmt.Errorf("failed to start change-feed consumer: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// Service getters
func (sm *serviceManager) Checklist() ChecklistService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	return sm.checklistService
}

func (sm *serviceManager) Result() ResultService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	return sm.resultService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	sm.coordinator.StopListening()

	if sm.eventPublisher != nil {
		if err := sm.eventPublisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	if err := sm.repo.Close(); err != nil {
		sm.logger.Error("Failed to close repository", "error", err)
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}

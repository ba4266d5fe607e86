package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/resq-training/checklist-service/internal/cache"
	"github.com/resq-training/checklist-service/internal/events"
	"github.com/resq-training/checklist-service/internal/models"
	"github.com/resq-training/checklist-service/internal/repositories"
)

// PostgreSQLRepository implements the main Repository interface. Every
// successful write publishes a row change event on the change feed, which
// is the subscription primitive the synchronization coordinator consumes.
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager
	feed         *events.ChangeFeed

	checklistItem   repositories.ChecklistItemRepository
	checklistResult repositories.ChecklistResultRepository
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB          *gorm.DB
	RedisClient *redis.Client
	Feed        *events.ChangeFeed
}

// NewPostgreSQLRepository creates a new repository manager with all sub-repositories
func NewPostgreSQLRepository(config RepositoryConfig) repositories.Repository {
	cacheManager := cache.NewCacheManager(config.RedisClient)

	repo := &PostgreSQLRepository{
		db:           config.DB,
		redisClient:  config.RedisClient,
		cacheManager: cacheManager,
		feed:         config.Feed,
	}

	repo.checklistItem = NewChecklistItemPostgreSQL(config.DB, config.Feed, cacheManager)
	repo.checklistResult = NewChecklistResultPostgreSQL(config.DB, config.Feed, cacheManager)

	return repo
}

func (r *PostgreSQLRepository) ChecklistItem() repositories.ChecklistItemRepository {
	return r.checklistItem
}

func (r *PostgreSQLRepository) ChecklistResult() repositories.ChecklistResultRepository {
	return r.checklistResult
}

// WithTransaction runs fn inside a database transaction.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}

// RepositoryManager wires repository construction and schema migration.
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

func NewRepositoryManager(config RepositoryConfig) *RepositoryManager {
	return &RepositoryManager{config: config}
}

// Initialize migrates the schema and constructs the repository.
func (m *RepositoryManager) Initialize() error {
	if err := m.config.DB.AutoMigrate(
		&models.ChecklistItem{},
		&models.ChecklistResult{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	m.repo = NewPostgreSQLRepository(m.config)
	return nil
}

func (m *RepositoryManager) GetRepository() repositories.Repository {
	return m.repo
}

package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateResultCache invalidates result listings and stats after a write
func InvalidateResultCache(ctx context.Context, cm *CacheManager, participantID string) {
	SafeInvalidatePattern(ctx, cm.Result, "list:*")
	SafeInvalidatePattern(ctx, cm.Result, fmt.Sprintf("participant:%s:*", participantID))
	SafeInvalidatePattern(ctx, cm.Stats, "results:*")
}

// InvalidateChecklistCache invalidates item caches for a checklist type
func InvalidateChecklistCache(ctx context.Context, cm *CacheManager, checklistType string) {
	SafeDelete(ctx, cm.Checklist, fmt.Sprintf("type:%s", checklistType))
	SafeInvalidatePattern(ctx, cm.Checklist, "list:*")
}

package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/resq-training/checklist-service/internal/cache"
	"github.com/resq-training/checklist-service/internal/models"
	"github.com/resq-training/checklist-service/internal/repositories"
)

func newTestCacheManager(t *testing.T) *cache.CacheManager {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return cache.NewCacheManager(client)
}

// The repositories below are constructed without a database; a cache hit
// must satisfy the read before any query is built, so these tests fail
// loudly if the read path ever reaches the (nil) database.

func TestChecklistItemPostgreSQL_GetByType_ServesFromCache(t *testing.T) {
	cm := newTestCacheManager(t)
	ctx := context.Background()

	cached := []*models.ChecklistItem{
		{ID: 1, ChecklistType: models.TypeOneManCPR, Section: "airway", Text: "Check responsiveness", Compulsory: true, OrderIndex: 1},
		{ID: 2, ChecklistType: models.TypeOneManCPR, Section: "airway", Text: "Open airway", OrderIndex: 2},
	}
	if err := cm.Checklist.Set(ctx, "type:one_man_cpr", cached, time.Minute); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}

	repo := NewChecklistItemPostgreSQL(nil, nil, cm)
	items, err := repo.GetByType(ctx, nil, models.TypeOneManCPR)
	if err != nil {
		t.Fatalf("get by type failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 cached items, got %d", len(items))
	}
	if items[0].ID != 1 || items[0].Text != "Check responsiveness" || !items[0].Compulsory {
		t.Errorf("unexpected first item: %+v", items[0])
	}
}

func TestChecklistItemPostgreSQL_List_ServesFromCache(t *testing.T) {
	cm := newTestCacheManager(t)
	ctx := context.Background()

	cached := []*models.ChecklistItem{
		{ID: 1, ChecklistType: models.TypeOneManCPR, OrderIndex: 1},
		{ID: 11, ChecklistType: models.TypeAdultChoking, OrderIndex: 1},
	}
	if err := cm.Checklist.Set(ctx, "list:all", cached, time.Minute); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}

	repo := NewChecklistItemPostgreSQL(nil, nil, cm)
	items, err := repo.List(ctx, nil)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 2 || items[1].ChecklistType != models.TypeAdultChoking {
		t.Errorf("unexpected cached listing: %+v", items)
	}
}

func TestInvalidateChecklistCache_EvictsReadKeys(t *testing.T) {
	cm := newTestCacheManager(t)
	ctx := context.Background()

	if err := cm.Checklist.Set(ctx, "type:one_man_cpr", []*models.ChecklistItem{{ID: 1}}, time.Minute); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}
	if err := cm.Checklist.Set(ctx, "list:all", []*models.ChecklistItem{{ID: 1}}, time.Minute); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}

	cache.InvalidateChecklistCache(ctx, cm, "one_man_cpr")

	var dest []*models.ChecklistItem
	if err := cm.Checklist.Get(ctx, "type:one_man_cpr", &dest); err != cache.ErrCacheNotFound {
		t.Errorf("expected type key evicted, got %v", err)
	}
	if err := cm.Checklist.Get(ctx, "list:all", &dest); err != cache.ErrCacheNotFound {
		t.Errorf("expected listing key evicted, got %v", err)
	}
}

func TestChecklistResultPostgreSQL_List_ServesFromCache(t *testing.T) {
	cm := newTestCacheManager(t)
	ctx := context.Background()

	participantID := "participant-1"
	filters := repositories.ResultFilters{ParticipantID: &participantID, Limit: 20}

	page := resultPage{
		Results: []*models.ChecklistResult{
			{ID: 7, UUID: "res-7", ParticipantID: participantID, ChecklistType: models.TypeOneManCPR, Verdict: models.VerdictPass, Percentage: 100},
		},
		Total: 3,
	}
	if err := cm.Result.Set(ctx, resultListCacheKey(filters), page, time.Minute); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}

	repo := NewChecklistResultPostgreSQL(nil, nil, cm)
	results, total, err := repo.List(ctx, nil, filters)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 {
		t.Errorf("expected cached total 3, got %d", total)
	}
	if len(results) != 1 || results[0].ID != 7 || results[0].Verdict != models.VerdictPass {
		t.Errorf("unexpected cached results: %+v", results)
	}
}

func TestResultListCacheKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		verdict := models.VerdictPass
		filters := repositories.ResultFilters{Verdict: &verdict, Limit: 20, Offset: 40, SortBy: "percentage"}
		if resultListCacheKey(filters) != resultListCacheKey(filters) {
			t.Error("same filters produced different keys")
		}
	})

	t.Run("unfiltered listings live under list:", func(t *testing.T) {
		key := resultListCacheKey(repositories.ResultFilters{Limit: 20})
		if !strings.HasPrefix(key, "list:") {
			t.Errorf("expected list: prefix, got %q", key)
		}
	})

	t.Run("participant listings scoped to the participant", func(t *testing.T) {
		participantID := "participant-1"
		key := resultListCacheKey(repositories.ResultFilters{ParticipantID: &participantID})
		if !strings.HasPrefix(key, "participant:participant-1:") {
			t.Errorf("expected participant-scoped key, got %q", key)
		}
	})

	t.Run("paging changes the key", func(t *testing.T) {
		a := resultListCacheKey(repositories.ResultFilters{Limit: 20})
		b := resultListCacheKey(repositories.ResultFilters{Limit: 20, Offset: 20})
		if a == b {
			t.Errorf("expected distinct keys per page, both %q", a)
		}
	})
}

func TestInvalidateResultCache_EvictsReadKeysAndScopesToParticipant(t *testing.T) {
	cm := newTestCacheManager(t)
	ctx := context.Background()

	p1, p2 := "participant-1", "participant-2"
	p1Key := resultListCacheKey(repositories.ResultFilters{ParticipantID: &p1})
	p2Key := resultListCacheKey(repositories.ResultFilters{ParticipantID: &p2})
	listKey := resultListCacheKey(repositories.ResultFilters{Limit: 20})

	for _, key := range []string{p1Key, p2Key, listKey} {
		if err := cm.Result.Set(ctx, key, resultPage{Total: 1}, time.Minute); err != nil {
			t.Fatalf("seed cache failed: %v", err)
		}
	}
	var stats repositories.ResultStats
	if err := cm.Stats.Set(ctx, "results:overview", stats, time.Minute); err != nil {
		t.Fatalf("seed cache failed: %v", err)
	}

	cache.InvalidateResultCache(ctx, cm, p1)

	var page resultPage
	if err := cm.Result.Get(ctx, p1Key, &page); err != cache.ErrCacheNotFound {
		t.Errorf("expected writing participant's listings evicted, got %v", err)
	}
	if err := cm.Result.Get(ctx, listKey, &page); err != cache.ErrCacheNotFound {
		t.Errorf("expected shared listings evicted, got %v", err)
	}
	if err := cm.Stats.Get(ctx, "results:overview", &stats); err != cache.ErrCacheNotFound {
		t.Errorf("expected stats evicted, got %v", err)
	}
	if err := cm.Result.Get(ctx, p2Key, &page); err != nil {
		t.Errorf("expected other participant's listings untouched, got %v", err)
	}
}

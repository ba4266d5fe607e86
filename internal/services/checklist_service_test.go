package services

import (
	"context"
	"errors"
	"testing"

	"github.com/resq-training/checklist-service/internal/models"
)

func TestChecklistService_GetItems(t *testing.T) {
	env := newTestEnv()
	env.repo.items.items = cprItems(models.TypeOneManCPR)
	svc := env.checklistService()

	items, err := svc.GetItems(context.Background(), models.TypeOneManCPR)
	if err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := svc.GetItems(context.Background(), "advanced_cpr")
		if err == nil {
			t.Error("expected validation error for unknown checklist type")
		}
		if !IsValidationError(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestChecklistService_GetItems_ServesFreshSnapshotWithoutFetch(t *testing.T) {
	env := newTestEnv()
	env.repo.items.items = cprItems(models.TypeOneManCPR)
	svc := env.checklistService()

	if _, err := svc.GetItems(context.Background(), models.TypeOneManCPR); err != nil {
		t.Fatalf("first GetItems failed: %v", err)
	}
	fetches := env.repo.items.getTypeCall

	// A fresh snapshot must be served without another repository call.
	if _, err := svc.GetItems(context.Background(), models.TypeOneManCPR); err != nil {
		t.Fatalf("second GetItems failed: %v", err)
	}
	if env.repo.items.getTypeCall != fetches {
		t.Errorf("fresh snapshot should not refetch: %d -> %d", fetches, env.repo.items.getTypeCall)
	}
}

func TestChecklistService_GetItems_RefreshesAfterInvalidation(t *testing.T) {
	env := newTestEnv()
	env.repo.items.items = cprItems(models.TypeOneManCPR)
	svc := env.checklistService()

	if _, err := svc.GetItems(context.Background(), models.TypeOneManCPR); err != nil {
		t.Fatalf("GetItems failed: %v", err)
	}
	fetches := env.repo.items.getTypeCall

	env.snapshots.Invalidate(string(models.TypeOneManCPR))

	if _, err := svc.GetItems(context.Background(), models.TypeOneManCPR); err != nil {
		t.Fatalf("GetItems after invalidation failed: %v", err)
	}
	if env.repo.items.getTypeCall != fetches+1 {
		t.Errorf("invalidated snapshot should refetch exactly once, got %d extra", env.repo.items.getTypeCall-fetches)
	}
}

func TestChecklistService_Refresh_FailedFetchLeavesCacheUntouched(t *testing.T) {
	env := newTestEnv()
	svc := env.checklistService()

	key := string(models.TypeOneManCPR)
	seeded := cprItems(models.TypeOneManCPR)
	env.snapshots.Set(key, seeded)

	boom := errors.New("backend unavailable")
	_, err := svc.Refresh(context.Background(), key, func(ctx context.Context) ([]*models.ChecklistItem, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}

	if got := env.snapshots.Get(key); len(got) != len(seeded) {
		t.Errorf("failed refresh must not clobber the snapshot: %d items left", len(got))
	}
	if env.snapshots.IsStale(key) {
		t.Error("failed refresh must not mark the snapshot stale")
	}
}

func TestChecklistService_GetSections(t *testing.T) {
	env := newTestEnv()
	env.repo.items.items = cprItems(models.TypeOneManCPR)
	svc := env.checklistService()

	sections, err := svc.GetSections(context.Background(), models.TypeOneManCPR)
	if err != nil {
		t.Fatalf("GetSections failed: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	if sections[0].Name != "airway" || sections[1].Name != "circulation" {
		t.Errorf("sections out of order: %s, %s", sections[0].Name, sections[1].Name)
	}
}

func TestChecklistService_Preview(t *testing.T) {
	env := newTestEnv()
	env.repo.items.items = cprItems(models.TypeOneManCPR)
	svc := env.checklistService()

	t.Run("partial completion", func(t *testing.T) {
		preview, err := svc.Preview(context.Background(), models.TypeOneManCPR, []uint{1, 2})
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if preview.Verdict != models.VerdictFail {
			t.Errorf("compulsory item 4 missing, expected FAIL, got %s", preview.Verdict)
		}
		if preview.CompletedCount != 2 || preview.TotalCount != 5 {
			t.Errorf("expected 2/5, got %d/%d", preview.CompletedCount, preview.TotalCount)
		}
	})

	t.Run("nothing completed", func(t *testing.T) {
		preview, err := svc.Preview(context.Background(), models.TypeOneManCPR, nil)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if preview.Verdict != models.VerdictIncomplete {
			t.Errorf("expected INCOMPLETE, got %s", preview.Verdict)
		}
	})

	t.Run("compulsory complete", func(t *testing.T) {
		preview, err := svc.Preview(context.Background(), models.TypeOneManCPR, []uint{1, 4})
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if preview.Verdict != models.VerdictPass {
			t.Errorf("both compulsory items done, expected PASS, got %s", preview.Verdict)
		}
		if !preview.CompulsoryMet {
			t.Error("expected CompulsoryMet")
		}
	})
}

func TestChecklistService_CreateItem(t *testing.T) {
	env := newTestEnv()
	svc := env.checklistService()

	// Seed a snapshot so the mutation's invalidation is observable.
	env.snapshots.Set(string(models.TypeOneManCPR), nil)

	req := &CreateChecklistItemRequest{
		ChecklistType: models.TypeOneManCPR,
		Section:       "airway",
		Text:          "Check responsiveness",
		Compulsory:    true,
		OrderIndex:    1,
	}
	created, err := svc.CreateItem(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	if created.ID == 0 {
		t.Error("expected an assigned ID")
	}
	if !env.snapshots.IsStale(string(models.TypeOneManCPR)) {
		t.Error("create must invalidate the type's snapshot")
	}

	t.Run("invalid request", func(t *testing.T) {
		bad := &CreateChecklistItemRequest{ChecklistType: "advanced_cpr", Section: "x", Text: "y"}
		if _, err := svc.CreateItem(context.Background(), bad); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestChecklistService_CreateItem_RepositoryFailureSkipsInvalidation(t *testing.T) {
	env := newTestEnv()
	boom := errors.New("insert failed")
	env.repo.items.createFn = func(ctx context.Context, item *models.ChecklistItem) error {
		return boom
	}
	svc := env.checklistService()

	env.snapshots.Set(string(models.TypeOneManCPR), nil)

	req := &CreateChecklistItemRequest{
		ChecklistType: models.TypeOneManCPR,
		Section:       "airway",
		Text:          "Check responsiveness",
	}
	if _, err := svc.CreateItem(context.Background(), req); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repository error, got %v", err)
	}

	if env.snapshots.IsStale(string(models.TypeOneManCPR)) {
		t.Error("failed mutation must not invalidate the snapshot")
	}
}

func TestChecklistService_UpdateItem(t *testing.T) {
	env := newTestEnv()
	env.repo.items.items = cprItems(models.TypeOneManCPR)
	svc := env.checklistService()

	text := "Check responsiveness by tapping shoulders"
	updated, err := svc.UpdateItem(context.Background(), 1, &UpdateChecklistItemRequest{Text: &text})
	if err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	if updated.Text != text {
		t.Errorf("text not updated: %q", updated.Text)
	}
	if !updated.Compulsory {
		t.Error("fields not named in the request must be preserved")
	}

	t.Run("missing item", func(t *testing.T) {
		_, err := svc.UpdateItem(context.Background(), 9999, &UpdateChecklistItemRequest{Text: &text})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestChecklistService_DeleteItem(t *testing.T) {
	env := newTestEnv()
	env.repo.items.items = cprItems(models.TypeOneManCPR)
	svc := env.checklistService()

	env.snapshots.Set(string(models.TypeOneManCPR), nil)

	if err := svc.DeleteItem(context.Background(), 1); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	if !env.snapshots.IsStale(string(models.TypeOneManCPR)) {
		t.Error("delete must invalidate the type's snapshot")
	}

	t.Run("missing item", func(t *testing.T) {
		err := svc.DeleteItem(context.Background(), 9999)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

package services

import (
	"context"
	"testing"
)

func newTestManager(e *testEnv) ServiceManager {
	return NewServiceManager(e.repo, e.snapshots, e.coordinator, e.publisher, e.logger, e.validator)
}

func TestServiceManager_Lifecycle(t *testing.T) {
	env := newTestEnv()
	sm := newTestManager(env)
	ctx := context.Background()

	if err := sm.Initialize(ctx); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	// Initialize is idempotent.
	if err := sm.Initialize(ctx); err != nil {
		t.Fatalf("second initialize failed: %v", err)
	}

	if sm.Checklist() == nil {
		t.Error("expected checklist service after initialize")
	}
	if sm.Result() == nil {
		t.Error("expected result service after initialize")
	}

	if err := sm.HealthCheck(ctx); err != nil {
		t.Errorf("health check failed: %v", err)
	}

	if err := sm.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if err := sm.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown failed: %v", err)
	}

	if err := sm.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail after shutdown")
	}
}

func TestServiceManager_RequiresInitialize(t *testing.T) {
	env := newTestEnv()
	sm := newTestManager(env)

	if err := sm.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check to fail before initialize")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic when accessing services before initialize")
		}
	}()
	sm.Checklist()
}

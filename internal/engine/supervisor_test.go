package engine

import (
	"context"
	"testing"
	"time"

	"go_ticketbot/internal/bot"
	"go_ticketbot/internal/model"
)

// blockingFactory yields clients that poll an empty calendar forever, so
// the runtime stays alive until cancelled.
func blockingFactory() ClientFactory {
	return func() Client {
		return &fakeClient{
			fetch: func(ctx context.Context, eventID, ticketID string) (bot.Snapshot, error) {
				return availableSnapshot(0), nil
			},
		}
	}
}

func newTestSupervisor(store *memStore, factory ClientFactory) *Supervisor {
	return NewSupervisor(store, factory, &memBroadcaster{}, &nopNotifier{}, Options{
		ScanInterval: time.Millisecond,
		ErrorBackoff: time.Millisecond,
		CartHold:     time.Minute,
		CancelWait:   2 * time.Second,
	}, newTestLogger())
}

func pendingTask(store *memStore) *model.Task {
	task := &model.Task{ProductURL: "https://shop.example/produkt", Quantity: 2, NumThreads: 3, Status: model.TaskStatusPending}
	store.SaveTask(task)
	return task
}

func TestAdmit_RejectsSecondAdmission(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, blockingFactory())
	task := pendingTask(store)

	if !sup.Admit(task) {
		t.Fatal("First admission should succeed")
	}
	defer sup.Cancel(task.ID)

	if sup.Admit(task) {
		t.Error("Second admission of an active task should be rejected")
	}
	if !sup.IsActive(task.ID) {
		t.Error("Task should be active after admission")
	}
}

func TestAdmit_ReconcilesStaleRunningStatus(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, blockingFactory())

	// Simulates a task left "running" by a crashed process.
	task := &model.Task{ProductURL: "https://shop.example/produkt", Quantity: 1, NumThreads: 1, Status: model.TaskStatusRunning}
	store.SaveTask(task)

	if !sup.Admit(task) {
		t.Fatal("Stale running task should be admitted after reconciliation")
	}
	defer sup.Cancel(task.ID)

	// The reconciliation writes pending before the new running state.
	store.mu.Lock()
	history := append([]model.TaskStatus(nil), store.statusHistory...)
	store.mu.Unlock()

	sawPending := false
	for _, s := range history {
		if s == model.TaskStatusPending {
			sawPending = true
		}
	}
	if !sawPending {
		t.Error("Expected stale running status to pass through pending")
	}
	if store.taskStatus(task.ID) != model.TaskStatusRunning {
		t.Errorf("Expected running after admission, got %s", store.taskStatus(task.ID))
	}
}

func TestCancel_StopsRunningTask(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, blockingFactory())
	task := pendingTask(store)

	sup.Admit(task)
	if !sup.Cancel(task.ID) {
		t.Fatal("Cancel of an active task should report true")
	}

	if sup.IsActive(task.ID) {
		t.Error("Task should not be active after cancel")
	}
	if got := store.taskStatus(task.ID); got != model.TaskStatusStopped {
		t.Errorf("Expected stopped status, got %s", got)
	}
	saved, _ := store.LoadTask(task.ID)
	if saved.CompletedAt == nil {
		t.Error("Expected completed_at to be set on stop")
	}
}

func TestCancel_DuringHoldStops(t *testing.T) {
	store := newMemStore()
	factory := func() Client {
		return &fakeClient{
			fetch: func(ctx context.Context, eventID, ticketID string) (bot.Snapshot, error) {
				return availableSnapshot(2), nil
			},
			cart: func(ctx context.Context) bot.CartResult {
				return bot.CartResult{
					Status: bot.CartAdded,
					Cookie: &bot.Cookie{Name: "frontend", Value: "v", Domain: "d"},
				}
			},
		}
	}
	sup := newTestSupervisor(store, factory)
	task := pendingTask(store)

	sup.Admit(task)
	if !waitFor(time.Second, func() bool { return store.taskStatus(task.ID) == model.TaskStatusSuccess }) {
		t.Fatal("Task never reached success")
	}

	// Cancel lands inside the cart hold sleep; it must interrupt the hold
	// and persist stopped, not leave the task parked in success.
	if !sup.Cancel(task.ID) {
		t.Fatal("Cancel during hold should report true")
	}
	if got := store.taskStatus(task.ID); got != model.TaskStatusStopped {
		t.Errorf("Expected stopped after cancel during hold, got %s", got)
	}
}

func TestCancel_InactiveTask(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, blockingFactory())
	task := pendingTask(store)

	if sup.Cancel(task.ID) {
		t.Error("Cancel of a never-started pending task should report false")
	}
}

func TestCancel_RepairsStaleRunningWithoutRuntime(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, blockingFactory())

	task := &model.Task{ProductURL: "https://shop.example/produkt", Quantity: 1, NumThreads: 1, Status: model.TaskStatusRunning}
	store.SaveTask(task)

	if !sup.Cancel(task.ID) {
		t.Error("Cancel should repair a stale running status")
	}
	if got := store.taskStatus(task.ID); got != model.TaskStatusStopped {
		t.Errorf("Expected stopped, got %s", got)
	}
}

func TestShutdown_LeavesRunningForRestartReconciliation(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, blockingFactory())
	task := pendingTask(store)

	sup.Admit(task)
	sup.Shutdown()

	if sup.IsActive(task.ID) {
		t.Error("No runtime should survive shutdown")
	}
	// Shutdown does not rewrite statuses; the next Admit reconciles.
	if got := store.taskStatus(task.ID); got != model.TaskStatusRunning {
		t.Errorf("Expected status to stay running across shutdown, got %s", got)
	}

	if !sup.Admit(task) {
		t.Error("Re-admission after shutdown should succeed")
	}
	sup.Cancel(task.ID)
}

func TestActiveIDs(t *testing.T) {
	store := newMemStore()
	sup := newTestSupervisor(store, blockingFactory())

	t1 := pendingTask(store)
	t2 := pendingTask(store)
	sup.Admit(t2)
	sup.Admit(t1)
	defer sup.Cancel(t1.ID)
	defer sup.Cancel(t2.ID)

	ids := sup.ActiveIDs()
	if len(ids) != 2 || ids[0] != t1.ID || ids[1] != t2.ID {
		t.Errorf("Expected sorted active ids [%d %d], got %v", t1.ID, t2.ID, ids)
	}
}

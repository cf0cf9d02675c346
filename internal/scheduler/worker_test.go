package scheduler

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"go_ticketbot/internal/model"
)

func newTestLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeScheduleStore struct {
	due       []model.ScheduledTask
	overdue   []model.ScheduledTask
	saved     []model.ScheduledTask
	tasks     []model.Task
	saveTaskE error
}

func (f *fakeScheduleStore) DueScheduledTasks(now time.Time) ([]model.ScheduledTask, error) {
	return f.due, nil
}

func (f *fakeScheduleStore) OverdueScheduledTasks(now time.Time) ([]model.ScheduledTask, error) {
	return f.overdue, nil
}

func (f *fakeScheduleStore) SaveScheduledTask(st *model.ScheduledTask) error {
	f.saved = append(f.saved, *st)
	return nil
}

func (f *fakeScheduleStore) SaveTask(task *model.Task) error {
	if f.saveTaskE != nil {
		return f.saveTaskE
	}
	task.ID = int64(len(f.tasks) + 1)
	f.tasks = append(f.tasks, *task)
	return nil
}

type fakeAdmitter struct {
	admitted []int64
	refuse   bool
}

func (f *fakeAdmitter) Admit(task *model.Task) bool {
	if f.refuse {
		return false
	}
	f.admitted = append(f.admitted, task.ID)
	return true
}

func TestCheckOnce_TriggersDueTask(t *testing.T) {
	store := &fakeScheduleStore{
		due: []model.ScheduledTask{{
			ID:         1,
			GameID:     "fc-bayern-test",
			GameTitle:  "FC Bayern München - Test (Ingolstadt)",
			ProductURL: "https://shop.example/produkt",
			Quantity:   4,
			NumThreads: 5,
			Status:     model.ScheduledStatusScheduled,
		}},
	}
	admitter := &fakeAdmitter{}
	w := NewWorker(store, admitter, time.Second, newTestLogger())

	now := time.Now().UTC()
	w.CheckOnce(now)

	if len(store.tasks) != 1 {
		t.Fatalf("Expected one task to be created, got %d", len(store.tasks))
	}
	created := store.tasks[0]
	if created.ProductURL != "https://shop.example/produkt" || created.Quantity != 4 || created.NumThreads != 5 {
		t.Errorf("Task did not inherit schedule settings: %+v", created)
	}

	if len(admitter.admitted) != 1 {
		t.Fatalf("Expected one admission, got %d", len(admitter.admitted))
	}

	if len(store.saved) != 1 {
		t.Fatalf("Expected scheduled task to be updated once, got %d saves", len(store.saved))
	}
	saved := store.saved[0]
	if saved.Status != model.ScheduledStatusTriggered {
		t.Errorf("Expected triggered status, got %s", saved.Status)
	}
	if saved.TaskID == nil || *saved.TaskID != created.ID {
		t.Error("Expected scheduled task to reference the created task")
	}
	if saved.TriggeredAt == nil {
		t.Error("Expected triggered_at to be stamped")
	}
}

func TestCheckOnce_MarksOverdueFailed(t *testing.T) {
	store := &fakeScheduleStore{
		overdue: []model.ScheduledTask{{
			ID:        2,
			GameTitle: "overdue game",
			Status:    model.ScheduledStatusScheduled,
		}},
	}
	w := NewWorker(store, &fakeAdmitter{}, time.Second, newTestLogger())

	w.CheckOnce(time.Now().UTC())

	if len(store.saved) != 1 || store.saved[0].Status != model.ScheduledStatusFailed {
		t.Errorf("Expected overdue task to be marked failed, got %+v", store.saved)
	}
}

func TestCheckOnce_AdmissionRefusalFailsSchedule(t *testing.T) {
	store := &fakeScheduleStore{
		due: []model.ScheduledTask{{ID: 3, ProductURL: "https://shop.example/p", Quantity: 2, NumThreads: 2, Status: model.ScheduledStatusScheduled}},
	}
	w := NewWorker(store, &fakeAdmitter{refuse: true}, time.Second, newTestLogger())

	w.CheckOnce(time.Now().UTC())

	if len(store.saved) != 1 || store.saved[0].Status != model.ScheduledStatusFailed {
		t.Errorf("Expected schedule to fail when supervisor refuses, got %+v", store.saved)
	}
}

func TestCheckOnce_TaskCreateFailureFailsSchedule(t *testing.T) {
	store := &fakeScheduleStore{
		due:       []model.ScheduledTask{{ID: 4, ProductURL: "https://shop.example/p", Quantity: 2, NumThreads: 2, Status: model.ScheduledStatusScheduled}},
		saveTaskE: errors.New("db down"),
	}
	admitter := &fakeAdmitter{}
	w := NewWorker(store, admitter, time.Second, newTestLogger())

	w.CheckOnce(time.Now().UTC())

	if len(admitter.admitted) != 0 {
		t.Error("Expected no admission when task creation fails")
	}
	if len(store.saved) != 1 || store.saved[0].Status != model.ScheduledStatusFailed {
		t.Errorf("Expected schedule marked failed, got %+v", store.saved)
	}
}

func TestWorker_StartStop(t *testing.T) {
	store := &fakeScheduleStore{}
	w := NewWorker(store, &fakeAdmitter{}, 10*time.Millisecond, newTestLogger())

	w.Start()
	time.Sleep(25 * time.Millisecond)
	w.Stop()
}

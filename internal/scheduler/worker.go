// Package scheduler triggers monitoring tasks when their sale date arrives.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go_ticketbot/internal/model"
)

// ScheduleStore is the persistence surface the worker needs
type ScheduleStore interface {
	DueScheduledTasks(now time.Time) ([]model.ScheduledTask, error)
	OverdueScheduledTasks(now time.Time) ([]model.ScheduledTask, error)
	SaveScheduledTask(st *model.ScheduledTask) error
	SaveTask(task *model.Task) error
}

// Admitter starts a monitoring task. Implemented by engine.Supervisor.
type Admitter interface {
	Admit(task *model.Task) bool
}

// Worker polls for due scheduled tasks and hands them to the supervisor.
// One instance runs per process.
type Worker struct {
	store    ScheduleStore
	admitter Admitter
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *logrus.Entry
}

// NewWorker creates a scheduler worker
func NewWorker(store ScheduleStore, admitter Admitter, interval time.Duration, logger *logrus.Entry) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		store:    store,
		admitter: admitter,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.WithField("component", "scheduler"),
	}
}

// Start begins the background check loop
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.runLoop()
	w.logger.Infof("Scheduler started, check interval: %v", w.interval)
}

// Stop signals the loop to exit and waits for it
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.logger.Info("Scheduler stopped")
}

func (w *Worker) runLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Immediate pass so a restart does not wait a full interval to pick
	// up tasks that came due while the process was down.
	w.CheckOnce(time.Now().UTC())

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.CheckOnce(time.Now().UTC())
		}
	}
}

// CheckOnce runs a single scheduler pass: trigger due tasks, fail overdue
// ones. Exported so a pass can be driven directly in tests.
func (w *Worker) CheckOnce(now time.Time) {
	due, err := w.store.DueScheduledTasks(now)
	if err != nil {
		w.logger.Errorf("Failed to query due scheduled tasks: %v", err)
	} else {
		for i := range due {
			w.trigger(&due[i], now)
		}
	}

	overdue, err := w.store.OverdueScheduledTasks(now)
	if err != nil {
		w.logger.Errorf("Failed to query overdue scheduled tasks: %v", err)
		return
	}
	for i := range overdue {
		st := &overdue[i]
		w.logger.WithField("scheduled_id", st.ID).Warnf("Scheduled task overdue by more than 10 minutes, marking failed: %s", st.GameTitle)
		st.Status = model.ScheduledStatusFailed
		if err := w.store.SaveScheduledTask(st); err != nil {
			w.logger.Errorf("Failed to mark scheduled task %d failed: %v", st.ID, err)
		}
	}
}

func (w *Worker) trigger(st *model.ScheduledTask, now time.Time) {
	log := w.logger.WithField("scheduled_id", st.ID)
	log.Infof("Triggering scheduled task: %s", st.GameTitle)

	task := &model.Task{
		ProductURL: st.ProductURL,
		Quantity:   st.Quantity,
		NumThreads: st.NumThreads,
		Status:     model.TaskStatusPending,
	}
	if err := w.store.SaveTask(task); err != nil {
		log.Errorf("Failed to create task for scheduled trigger: %v", err)
		st.Status = model.ScheduledStatusFailed
		if err := w.store.SaveScheduledTask(st); err != nil {
			log.Errorf("Failed to persist scheduled task failure: %v", err)
		}
		return
	}

	if !w.admitter.Admit(task) {
		log.Error("Supervisor refused scheduled task admission")
		st.Status = model.ScheduledStatusFailed
		if err := w.store.SaveScheduledTask(st); err != nil {
			log.Errorf("Failed to persist scheduled task failure: %v", err)
		}
		return
	}

	triggered := now
	st.Status = model.ScheduledStatusTriggered
	st.TaskID = &task.ID
	st.TriggeredAt = &triggered
	if err := w.store.SaveScheduledTask(st); err != nil {
		log.Errorf("Failed to persist scheduled task trigger: %v", err)
	}
	log.Infof("Scheduled task triggered, monitoring task id=%d", task.ID)
}

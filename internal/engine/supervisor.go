package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go_ticketbot/internal/model"
)

// handle tracks one live runtime
type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns the set of running task runtimes. The handle table is the
// only state shared between tasks; all access is serialized on mu.
type Supervisor struct {
	mu      sync.Mutex
	handles map[int64]*handle

	store   Store
	factory ClientFactory
	bc      Broadcaster
	notify  Notifier
	opts    Options
	logger  *logrus.Entry
}

// NewSupervisor creates a supervisor
func NewSupervisor(store Store, factory ClientFactory, bc Broadcaster, notify Notifier, opts Options, logger *logrus.Entry) *Supervisor {
	opts.withDefaults()
	return &Supervisor{
		handles: make(map[int64]*handle),
		store:   store,
		factory: factory,
		bc:      bc,
		notify:  notify,
		opts:    opts,
		logger:  logger.WithField("component", "supervisor"),
	}
}

// Admit starts a runtime for the task unless one is already active.
//
// A task persisted as "running" with no live handle is a leftover from a
// crash or restart; Admit corrects it to pending and proceeds instead of
// refusing. This is the one integrity guarantee the supervisor provides
// across process restarts.
func (s *Supervisor) Admit(task *model.Task) bool {
	s.mu.Lock()

	if _, active := s.handles[task.ID]; active {
		s.mu.Unlock()
		s.logger.WithField("task_id", task.ID).Warn("Admit rejected: task already active")
		return false
	}

	if task.Status == model.TaskStatusRunning {
		s.logger.WithField("task_id", task.ID).Warn("Task claims running with no live runtime - resetting to pending")
		task.Status = model.TaskStatusPending
		saveTaskRetry(s.store, task, s.logger)
	}

	now := time.Now().UTC()
	task.Status = model.TaskStatusRunning
	task.StartedAt = &now
	task.CompletedAt = nil
	task.ErrorMessage = ""
	if err := saveTaskRetry(s.store, task, s.logger); err != nil {
		s.mu.Unlock()
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{cancel: cancel, done: make(chan struct{})}
	s.handles[task.ID] = h

	rt := newRuntime(task, s.store, s.factory, s.bc, s.notify, s.opts, s.logger.Logger.WithField("task_id", task.ID))
	go func() {
		defer close(h.done)
		// The handle is cleared however the runtime terminates; a leaked
		// handle would block the task forever.
		defer s.release(task.ID)
		rt.run(ctx)
	}()

	s.mu.Unlock()

	s.bc.Publish(model.EventKindTaskUpdate, map[string]interface{}{
		"task_id": task.ID,
		"status":  string(model.TaskStatusRunning),
	})
	return true
}

// Cancel signals the task's runtime and waits (bounded) for it to exit,
// then corrects the persisted status. It also repairs a stale "running"
// status when no runtime was active.
func (s *Supervisor) Cancel(taskID int64) bool {
	s.mu.Lock()
	h := s.handles[taskID]
	s.mu.Unlock()

	wasActive := h != nil
	if h != nil {
		h.cancel()
		select {
		case <-h.done:
		case <-time.After(s.opts.CancelWait):
			s.logger.WithField("task_id", taskID).Warn("Runtime did not exit within cancel wait")
		}
	}

	task, err := s.store.LoadTask(taskID)
	if err != nil || task == nil {
		return wasActive
	}
	if task.Status == model.TaskStatusRunning || task.Status == model.TaskStatusSuccess {
		now := time.Now().UTC()
		task.Status = model.TaskStatusStopped
		task.CompletedAt = &now
		saveTaskRetry(s.store, task, s.logger)
		s.bc.Publish(model.EventKindTaskUpdate, map[string]interface{}{
			"task_id": taskID,
			"status":  string(model.TaskStatusStopped),
		})
		return true
	}
	return wasActive
}

// IsActive reports whether the task has a live runtime
func (s *Supervisor) IsActive(taskID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[taskID]
	return ok
}

// ActiveIDs returns the ids of all live runtimes, sorted
func (s *Supervisor) ActiveIDs() []int64 {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.handles))
	for id := range s.handles {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Shutdown cancels every runtime and waits (bounded) for them to exit.
// Persisted statuses stay "running"; Admit reconciles them on restart.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	hs := make([]*handle, 0, len(s.handles))
	for _, h := range s.handles {
		h.cancel()
		hs = append(hs, h)
	}
	s.mu.Unlock()

	deadline := time.After(s.opts.CancelWait)
	for _, h := range hs {
		select {
		case <-h.done:
		case <-deadline:
			s.logger.Warn("Shutdown timed out waiting for runtimes")
			return
		}
	}
}

func (s *Supervisor) release(taskID int64) {
	s.mu.Lock()
	delete(s.handles, taskID)
	s.mu.Unlock()
}

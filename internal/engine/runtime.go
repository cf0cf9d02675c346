package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"go_ticketbot/internal/bot"
	"go_ticketbot/internal/model"
)

// runtime is the polling state machine for a single task. It is the sole
// mutator of its task's status and counters while running.
type runtime struct {
	task    *model.Task
	store   Store
	factory ClientFactory
	bc      Broadcaster
	notify  Notifier
	racer   *RaceExecutor
	opts    Options
	tlog    *taskLogger
	logger  *logrus.Entry
}

func newRuntime(task *model.Task, store Store, factory ClientFactory, bc Broadcaster, notify Notifier, opts Options, logger *logrus.Entry) *runtime {
	opts.withDefaults()
	l := logger.WithFields(logrus.Fields{"component": "task-runtime", "task_id": task.ID})
	return &runtime{
		task:    task,
		store:   store,
		factory: factory,
		bc:      bc,
		notify:  notify,
		racer:   NewRaceExecutor(factory, store, bc, notify, opts, logger),
		opts:    opts,
		tlog:    &taskLogger{store: store, bc: bc, logger: l},
		logger:  l,
	}
}

// run drives the scan → race → hold → re-cart cycle until the context is
// cancelled or the task fails. Cancellation leaves the persisted status to
// the supervisor; every other exit records its own terminal state.
func (r *runtime) run(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Errorf("Runtime panicked: %v", p)
			r.fail(fmt.Sprintf("internal error: %v", p))
		}
	}()

	client := r.factory()
	defer client.Close()

	r.tlog.log(r.task.ID, model.LogLevelInfo, "Started monitoring: "+r.task.ProductURL)

	eventID, ticketID, err := client.ExtractProductIdentifiers(ctx, r.task.ProductURL)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.tlog.log(r.task.ID, model.LogLevelError, "Could not extract Event/Ticket ID")
		r.fail("could not extract identifiers")
		return
	}

	r.task.EventID = eventID
	r.task.TicketID = ticketID
	saveTaskRetry(r.store, r.task, r.logger)
	r.tlog.log(r.task.ID, model.LogLevelInfo, fmt.Sprintf("Event ID: %s, Ticket ID: %s", eventID, ticketID))

	scanCount := 0
	var previous bot.Snapshot
	noTicketsLogged := false

	for {
		if ctx.Err() != nil {
			return
		}

		snap, fetchErr := client.FetchAvailability(ctx, eventID, ticketID)
		if ctx.Err() != nil {
			return
		}
		scanCount++

		totalAvailable := 0
		if fetchErr == nil {
			totalAvailable = snap.TotalAvailable()
		}

		// Scan state is persisted on every poll so the UI sees live
		// progress even when nothing else happens.
		now := time.Now().UTC()
		r.task.ScanCount = scanCount
		r.task.TicketsAvailable = totalAvailable
		r.task.LastScanAt = &now
		saveTaskRetry(r.store, r.task, r.logger)
		r.bc.Publish(model.EventKindScanUpdate, map[string]interface{}{
			"task_id":           r.task.ID,
			"scan_count":        scanCount,
			"tickets_available": totalAvailable,
			"last_scan_at":      now.Format(time.RFC3339),
		})

		if scanCount == 1 || scanCount%50 == 0 {
			if totalAvailable > 0 {
				r.tlog.log(r.task.ID, model.LogLevelInfo,
					fmt.Sprintf("Scan #%d: %d tickets available", scanCount, totalAvailable))
				noTicketsLogged = false
			} else if !noTicketsLogged || scanCount == 1 {
				r.tlog.log(r.task.ID, model.LogLevelInfo,
					fmt.Sprintf("Scan #%d: No tickets available - waiting for release...", scanCount))
				noTicketsLogged = true
			}
		}

		switch {
		case fetchErr == nil && totalAvailable > 0 && !snap.Equal(previous):
			detectedAt := time.Now()
			previous = snap
			noTicketsLogged = false

			r.tlog.log(r.task.ID, model.LogLevelInfo,
				fmt.Sprintf("Change detected! %d tickets available - processing...", totalAvailable))
			go r.notify.NotifyAvailability(snap, r.task.ProductURL)

			secured, done := r.processChange(ctx, client, snap, detectedAt)
			if done {
				return
			}
			if secured {
				// Fresh cycle after the hold: scan state resets so the
				// next release is detected from scratch.
				scanCount = 0
				previous = nil
				noTicketsLogged = false
				continue
			}

		case fetchErr != nil || len(snap) == 0:
			// Rate limited, parse failure or empty calendar: transient.
			if !sleepCtx(ctx, r.opts.ErrorBackoff) {
				return
			}
		}

		if !sleepCtx(ctx, r.opts.ScanInterval) {
			return
		}
	}
}

// processChange races on the first slot that can satisfy the requested
// quantity. Returns secured=true after a full hold cycle, done=true when
// the runtime must exit.
func (r *runtime) processChange(ctx context.Context, client Client, snap bot.Snapshot, detectedAt time.Time) (secured, done bool) {
	dates := make([]string, 0, len(snap))
	for date := range snap {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		for _, slot := range snap[date] {
			if slot.QtyAvailable < r.task.Quantity || len(slot.Variations) == 0 {
				continue
			}

			r.tlog.log(r.task.ID, model.LogLevelInfo,
				fmt.Sprintf("Attempting to buy %d ticket(s) for %s @ %s (%d available)",
					r.task.Quantity, date, slot.Time, slot.QtyAvailable))

			optionToken, err := client.ResolveOptionToken(ctx, r.task.EventID, slot.Variations[0], date, slot.Time)
			if err != nil {
				if ctx.Err() != nil {
					return false, true
				}
				r.tlog.log(r.task.ID, model.LogLevelWarning, "Option lookup failed: "+err.Error())
				continue
			}
			if optionToken == "" {
				// Slot not purchasable right now; try the next one.
				continue
			}

			outcome := r.racer.Execute(ctx, RaceRequest{
				TaskID:       r.task.ID,
				EventID:      r.task.EventID,
				Date:         date,
				TimeRaw:      slot.Time,
				Variation:    slot.Variations[0],
				OptionToken:  optionToken,
				Quantity:     r.task.Quantity,
				AvailableQty: slot.QtyAvailable,
				MaxAttempts:  r.task.NumThreads,
				ProductURL:   r.task.ProductURL,
				DetectedAt:   detectedAt,
			})
			if ctx.Err() != nil {
				return false, true
			}
			if !outcome.Secured {
				// A lost race is not a failed task; keep polling.
				return false, false
			}

			return r.holdAndRecart(ctx)
		}
	}
	return false, false
}

// holdAndRecart performs the Success state and its timed self-transition
// back to Running.
func (r *runtime) holdAndRecart(ctx context.Context) (secured, done bool) {
	now := time.Now().UTC()
	r.task.Status = model.TaskStatusSuccess
	r.task.CompletedAt = &now
	saveTaskRetry(r.store, r.task, r.logger)
	r.bc.Publish(model.EventKindTaskUpdate, map[string]interface{}{
		"task_id": r.task.ID,
		"status":  string(model.TaskStatusSuccess),
	})
	r.tlog.log(r.task.ID, model.LogLevelSuccess,
		fmt.Sprintf("Successfully carted! Holding for %s then re-carting...", r.opts.CartHold))

	// The cart hold sleep must remain cancellable; a stop request during
	// the hold interrupts it.
	if !sleepCtx(ctx, r.opts.CartHold) {
		return false, true
	}

	r.tlog.log(r.task.ID, model.LogLevelInfo, "Cart hold expired, restarting to re-cart items...")
	r.task.Status = model.TaskStatusRunning
	r.task.CompletedAt = nil
	saveTaskRetry(r.store, r.task, r.logger)
	r.bc.Publish(model.EventKindTaskUpdate, map[string]interface{}{
		"task_id": r.task.ID,
		"status":  string(model.TaskStatusRunning),
	})
	return true, false
}

// fail records a terminal failure; restarting requires a fresh admission.
func (r *runtime) fail(message string) {
	now := time.Now().UTC()
	r.task.Status = model.TaskStatusFailed
	r.task.ErrorMessage = message
	r.task.CompletedAt = &now
	saveTaskRetry(r.store, r.task, r.logger)
	r.bc.Publish(model.EventKindTaskUpdate, map[string]interface{}{
		"task_id": r.task.ID,
		"status":  string(model.TaskStatusFailed),
		"error":   message,
	})
}

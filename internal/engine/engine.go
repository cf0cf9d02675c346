// Package engine contains the task monitoring core: the per-task polling
// runtime, the concurrent add-to-cart race executor and the supervisor that
// keeps at most one runtime alive per task.
package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"go_ticketbot/internal/bot"
	"go_ticketbot/internal/model"
)

// Client is one isolated vendor session. Runtimes hold one for polling;
// every race attempt gets a fresh one so cookies never cross attempts.
type Client interface {
	ExtractProductIdentifiers(ctx context.Context, productURL string) (eventID, ticketID string, err error)
	FetchAvailability(ctx context.Context, eventID, ticketID string) (bot.Snapshot, error)
	ResolveOptionToken(ctx context.Context, eventID, variation, date, timeRaw string) (string, error)
	AddToCart(ctx context.Context, eventID, date, timeShort, variation, optionToken string, quantity int, productURL string) bot.CartResult
	Close()
}

// ClientFactory produces a new Client with its own cookie jar
type ClientFactory func() Client

// Store is the persistence sink the engine writes through
type Store interface {
	SaveTask(task *model.Task) error
	LoadTask(id int64) (*model.Task, error)
	AppendLog(entry *model.TaskLog) error
	SaveCartSession(sess *model.CartSession) error
}

// Broadcaster fans events out to live observers. Fire-and-forget: delivery
// failures must never reach task state.
type Broadcaster interface {
	Publish(kind string, payload interface{})
}

// Notifier is the best-effort external notification sink
type Notifier interface {
	NotifyAvailability(snap bot.Snapshot, productURL string)
	NotifyCartSecured(productURL string, cookie bot.Cookie, quantity int, elapsed time.Duration, cartToken string)
}

// Options holds engine timing configuration
type Options struct {
	// ScanInterval is the delay between polls.
	ScanInterval time.Duration
	// ErrorBackoff is the extra delay after an unreadable or empty snapshot.
	ErrorBackoff time.Duration
	// CartHold is how long a secured cart is held before re-carting.
	CartHold time.Duration
	// CheckoutURL is stored on cart sessions for the human handoff.
	CheckoutURL string
	// CancelWait bounds how long Cancel waits for a runtime to exit.
	CancelWait time.Duration
}

func (o *Options) withDefaults() {
	if o.ScanInterval == 0 {
		o.ScanInterval = 100 * time.Millisecond
	}
	if o.ErrorBackoff == 0 {
		o.ErrorBackoff = 5 * time.Second
	}
	if o.CartHold == 0 {
		o.CartHold = 17 * time.Minute
	}
	if o.CancelWait == 0 {
		o.CancelWait = 5 * time.Second
	}
}

// taskLogger persists a task log entry and pushes it to live clients.
// Both writes are best-effort: a failing sink must not stall the monitor.
type taskLogger struct {
	store  Store
	bc     Broadcaster
	logger *logrus.Entry
}

func (l *taskLogger) log(taskID int64, level, message string) {
	entry := &model.TaskLog{TaskID: taskID, Level: level, Message: message}
	if err := l.store.AppendLog(entry); err != nil {
		l.logger.WithField("task_id", taskID).Errorf("Failed to persist log entry: %v", err)
	}
	l.bc.Publish(model.EventKindLog, map[string]interface{}{
		"task_id":   taskID,
		"level":     level,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	l.logger.WithField("task_id", taskID).Debug(message)
}

// saveTaskRetry writes task state, retrying once. Status writes are the one
// persistence path the engine cannot silently drop.
func saveTaskRetry(store Store, task *model.Task, logger *logrus.Entry) error {
	err := store.SaveTask(task)
	if err == nil {
		return nil
	}
	logger.WithField("task_id", task.ID).Warnf("Task write failed, retrying once: %v", err)
	if err = store.SaveTask(task); err != nil {
		logger.WithField("task_id", task.ID).Errorf("Task write failed twice: %v", err)
	}
	return err
}

// sleepCtx sleeps for d unless the context is cancelled first. Returns
// false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

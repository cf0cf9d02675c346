package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go_ticketbot/internal/bot"
	"go_ticketbot/internal/model"
)

// RaceRequest describes one confirmed availability slot to race on
type RaceRequest struct {
	TaskID       int64
	EventID      string
	Date         string
	TimeRaw      string
	Variation    string
	OptionToken  string
	Quantity     int
	AvailableQty int
	MaxAttempts  int
	ProductURL   string
	// DetectedAt is when the availability change was first seen; cart
	// sessions record the detection-to-cart duration.
	DetectedAt time.Time
}

// RaceOutcome reports what the race achieved
type RaceOutcome struct {
	// Secured is true when at least one attempt produced a verified cart.
	Secured bool
	// Sessions is the number of cart sessions written. Concurrent attempts
	// may each win; every verified cart is kept, not de-duplicated.
	Sessions int
	// Attempts is how many concurrent attempts were spawned.
	Attempts int
	// LastReason is the last rejection reason when nothing was secured.
	LastReason string
}

// RaceExecutor runs a burst of concurrent add-to-cart attempts, each with
// its own isolated vendor session.
type RaceExecutor struct {
	factory  ClientFactory
	store    Store
	bc       Broadcaster
	notify   Notifier
	cartHold time.Duration
	checkout string
	tlog     *taskLogger
	logger   *logrus.Entry
}

// NewRaceExecutor creates a race executor
func NewRaceExecutor(factory ClientFactory, store Store, bc Broadcaster, notify Notifier, opts Options, logger *logrus.Entry) *RaceExecutor {
	opts.withDefaults()
	l := logger.WithField("component", "race-executor")
	return &RaceExecutor{
		factory:  factory,
		store:    store,
		bc:       bc,
		notify:   notify,
		cartHold: opts.CartHold,
		checkout: opts.CheckoutURL,
		tlog:     &taskLogger{store: store, bc: bc, logger: l},
		logger:   l,
	}
}

// AttemptCount caps the race width: never more simultaneous attempts than
// inventory could possibly satisfy, never more than requested.
func AttemptCount(availableQty, quantity, maxAttempts int) int {
	if quantity <= 0 {
		return 0
	}
	possible := availableQty / quantity
	if possible < 1 {
		possible = 1
	}
	if maxAttempts < possible {
		return maxAttempts
	}
	return possible
}

// Execute runs the race. All attempts run to completion before it returns;
// one attempt failing never cancels the others. Every verified success
// writes its own cart session.
func (e *RaceExecutor) Execute(ctx context.Context, req RaceRequest) RaceOutcome {
	attempts := AttemptCount(req.AvailableQty, req.Quantity, req.MaxAttempts)
	if attempts <= 0 {
		return RaceOutcome{}
	}

	e.tlog.log(req.TaskID, model.LogLevelInfo,
		fmt.Sprintf("Running %d ATC attempt(s) (limited by %d possible carts)", attempts, req.AvailableQty/req.Quantity))

	type attemptResult struct {
		secured bool
		reason  string
	}

	results := make(chan attemptResult, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			secured, reason := e.attempt(ctx, req)
			results <- attemptResult{secured: secured, reason: reason}
		}()
	}
	wg.Wait()
	close(results)

	outcome := RaceOutcome{Attempts: attempts}
	for res := range results {
		if res.secured {
			outcome.Secured = true
			outcome.Sessions++
		} else if res.reason != "" {
			outcome.LastReason = res.reason
		}
	}

	if !outcome.Secured {
		reason := outcome.LastReason
		if reason == "" {
			reason = "no attempt succeeded"
		}
		e.tlog.log(req.TaskID, model.LogLevelWarning, "Race exhausted without success: "+reason)
	}
	return outcome
}

// attempt performs one isolated add-to-cart call and, on verified success,
// persists the cart session and fires the external notifications.
func (e *RaceExecutor) attempt(ctx context.Context, req RaceRequest) (bool, string) {
	attemptID := uuid.NewString()[:8]
	client := e.factory()
	defer client.Close()

	timeShort := req.TimeRaw
	if len(timeShort) > 5 {
		timeShort = timeShort[:5]
	}

	result := client.AddToCart(ctx, req.EventID, req.Date, timeShort, req.Variation, req.OptionToken, req.Quantity, req.ProductURL)
	switch result.Status {
	case bot.CartAdded:
		elapsed := time.Since(req.DetectedAt)
		e.recordSuccess(req, *result.Cookie, elapsed, attemptID)
		return true, ""
	case bot.CartRejected:
		e.tlog.log(req.TaskID, model.LogLevelWarning,
			fmt.Sprintf("ATC attempt %s failed: %s", attemptID, result.Reason))
		return false, result.Reason
	default:
		e.tlog.log(req.TaskID, model.LogLevelWarning,
			fmt.Sprintf("ATC attempt %s error: %s", attemptID, result.Reason))
		return false, result.Reason
	}
}

func (e *RaceExecutor) recordSuccess(req RaceRequest, cookie bot.Cookie, elapsed time.Duration, attemptID string) {
	token, err := generateCartToken()
	if err != nil {
		e.logger.Errorf("Failed to generate cart token: %v", err)
		return
	}

	sess := &model.CartSession{
		Token:        token,
		TaskID:       req.TaskID,
		CookieName:   cookie.Name,
		CookieValue:  cookie.Value,
		CookieDomain: cookie.Domain,
		ProductURL:   req.ProductURL,
		CheckoutURL:  e.checkout,
		Quantity:     req.Quantity,
		TotalTime:    elapsed.Seconds(),
		ExpiresAt:    time.Now().UTC().Add(e.cartHold),
	}
	if err := e.store.SaveCartSession(sess); err != nil {
		e.logger.WithField("task_id", req.TaskID).Errorf("Failed to persist cart session: %v", err)
	}

	e.tlog.log(req.TaskID, model.LogLevelSuccess,
		fmt.Sprintf("Cookie secured: %s (attempt %s, %.2fs)", cookie.Name, attemptID, elapsed.Seconds()))

	e.bc.Publish(model.EventKindCartSuccess, map[string]interface{}{
		"task_id":    req.TaskID,
		"token":      token,
		"quantity":   req.Quantity,
		"total_time": elapsed.Seconds(),
	})
	e.notify.NotifyCartSecured(req.ProductURL, cookie, req.Quantity, elapsed, token)
}

// generateCartToken returns a random URL-safe capability token
func generateCartToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

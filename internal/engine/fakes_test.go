package engine

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go_ticketbot/internal/bot"
	"go_ticketbot/internal/model"
)

func newTestLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// memStore is an in-memory Store safe for concurrent runtimes
type memStore struct {
	mu            sync.Mutex
	tasks         map[int64]*model.Task
	logs          []model.TaskLog
	sessions      []model.CartSession
	statusHistory []model.TaskStatus
	nextID        int64
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[int64]*model.Task), nextID: 1}
}

func (m *memStore) SaveTask(task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task.ID == 0 {
		task.ID = m.nextID
		m.nextID++
	}
	cp := *task
	m.tasks[task.ID] = &cp
	m.statusHistory = append(m.statusHistory, task.Status)
	return nil
}

func (m *memStore) LoadTask(id int64) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *task
	return &cp, nil
}

func (m *memStore) AppendLog(entry *model.TaskLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *memStore) SaveCartSession(sess *model.CartSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, *sess)
	return nil
}

func (m *memStore) taskStatus(id int64) model.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[id]; ok {
		return task.Status
	}
	return ""
}

func (m *memStore) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// fakeClient implements Client through pluggable behaviors
type fakeClient struct {
	mu       sync.Mutex
	atcCalls int

	extract func(ctx context.Context, productURL string) (string, string, error)
	fetch   func(ctx context.Context, eventID, ticketID string) (bot.Snapshot, error)
	resolve func(ctx context.Context, eventID, variation, date, timeRaw string) (string, error)
	cart    func(ctx context.Context) bot.CartResult
}

func (f *fakeClient) ExtractProductIdentifiers(ctx context.Context, productURL string) (string, string, error) {
	if f.extract != nil {
		return f.extract(ctx, productURL)
	}
	return "evt-1", "tkt-1", nil
}

func (f *fakeClient) FetchAvailability(ctx context.Context, eventID, ticketID string) (bot.Snapshot, error) {
	if f.fetch != nil {
		return f.fetch(ctx, eventID, ticketID)
	}
	return bot.Snapshot{}, nil
}

func (f *fakeClient) ResolveOptionToken(ctx context.Context, eventID, variation, date, timeRaw string) (string, error) {
	if f.resolve != nil {
		return f.resolve(ctx, eventID, variation, date, timeRaw)
	}
	return "opt-1", nil
}

func (f *fakeClient) AddToCart(ctx context.Context, eventID, date, timeShort, variation, optionToken string, quantity int, productURL string) bot.CartResult {
	f.mu.Lock()
	f.atcCalls++
	f.mu.Unlock()
	if f.cart != nil {
		return f.cart(ctx)
	}
	return bot.CartResult{Status: bot.CartRejected, Reason: "no behavior configured"}
}

func (f *fakeClient) Close() {}

func (f *fakeClient) cartCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.atcCalls
}

// memBroadcaster records published events
type memBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *memBroadcaster) Publish(kind string, payload interface{}) {
	b.mu.Lock()
	b.events = append(b.events, kind)
	b.mu.Unlock()
}

// nopNotifier counts notification calls
type nopNotifier struct {
	mu      sync.Mutex
	secured int
}

func (n *nopNotifier) NotifyAvailability(snap bot.Snapshot, productURL string) {}

func (n *nopNotifier) NotifyCartSecured(productURL string, cookie bot.Cookie, quantity int, elapsed time.Duration, cartToken string) {
	n.mu.Lock()
	n.secured++
	n.mu.Unlock()
}

func (n *nopNotifier) securedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.secured
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func availableSnapshot(qty int) bot.Snapshot {
	return bot.Snapshot{
		"2026-03-01": {{Time: "14:00:00", QtyAvailable: qty, TrafficLight: bot.TrafficLightAvailable, Variations: []string{"v1"}}},
	}
}

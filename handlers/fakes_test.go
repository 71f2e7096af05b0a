package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"house-alert-api/database"
	"house-alert-api/models"
	"house-alert-api/queue"
)

type bindCall struct {
	AccountID  string
	LineUserID string
	LinkedAt   time.Time
}

// fakeAccountStore is an in-memory account table recording every call.
type fakeAccountStore struct {
	mu          sync.Mutex
	accounts    map[string]*models.Account
	lookups     []string
	binds       []bindCall
	findErr     error
	bindErr     error
	ensureCalls int
}

func newFakeAccountStore(accounts ...models.Account) *fakeAccountStore {
	f := &fakeAccountStore{accounts: map[string]*models.Account{}}
	for _, a := range accounts {
		a := a
		f.accounts[a.ID] = &a
	}
	return f
}

func (f *fakeAccountStore) FindAccountsByEmail(ctx context.Context, email string) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, email)
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.Account
	for _, a := range f.accounts {
		if a.Email == email {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAccountStore) UpdateAccountBinding(ctx context.Context, accountID, lineUserID string, linkedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.binds = append(f.binds, bindCall{AccountID: accountID, LineUserID: lineUserID, LinkedAt: linkedAt})
	if f.bindErr != nil {
		return f.bindErr
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return database.ErrNotFound
	}
	a.LineUserID = &lineUserID
	a.LineLinkedAt = &linkedAt
	return nil
}

func (f *fakeAccountStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAccountStore) EnsureAccount(ctx context.Context, account models.Account) (*models.Account, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	if existing, ok := f.accounts[account.ID]; ok {
		copied := *existing
		return &copied, false, nil
	}
	f.accounts[account.ID] = &account
	copied := account
	return &copied, true, nil
}

func (f *fakeAccountStore) ApplySubscription(ctx context.Context, accountID string, plan models.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountID]
	if !ok {
		return database.ErrNotFound
	}
	a.Tier = plan.ID
	a.MaxRegions = plan.MaxRegions
	a.DailyNotifyLimit = plan.DailyNotifyLimit
	return nil
}

type sentMessage struct {
	Target string
	Text   string
}

type fakeMessenger struct {
	mu       sync.Mutex
	replies  []sentMessage
	pushes   []sentMessage
	replyErr error
	pushErr  error
}

func (f *fakeMessenger) Reply(ctx context.Context, replyToken, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentMessage{Target: replyToken, Text: text})
	return f.replyErr
}

func (f *fakeMessenger) Push(ctx context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, sentMessage{Target: to, Text: text})
	return f.pushErr
}

type fakeEnqueuer struct {
	jobs []*queue.Job
	err  error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, jobType queue.JobType, data map[string]interface{}) (*queue.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	job := queue.NewJob(jobType, data)
	f.jobs = append(f.jobs, job)
	return job, nil
}

type fakeMonitorStore struct {
	monitors map[string]models.Monitor
	nextID   int
	err      error
}

func newFakeMonitorStore(monitors ...models.Monitor) *fakeMonitorStore {
	f := &fakeMonitorStore{monitors: map[string]models.Monitor{}}
	for _, m := range monitors {
		f.monitors[m.ID] = m
	}
	return f
}

func (f *fakeMonitorStore) ListMonitors(ctx context.Context, accountID string) ([]models.Monitor, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Monitor{}
	for _, m := range f.monitors {
		if m.AccountID == accountID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMonitorStore) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.monitors[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	m.Regions = append([]string(nil), m.Regions...)
	return &m, nil
}

func (f *fakeMonitorStore) CreateMonitor(ctx context.Context, m models.Monitor) (*models.Monitor, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	m.ID = fmt.Sprintf("m%d", f.nextID)
	f.monitors[m.ID] = m
	return &m, nil
}

func (f *fakeMonitorStore) UpdateMonitor(ctx context.Context, m models.Monitor) (*models.Monitor, error) {
	if f.err != nil {
		return nil, f.err
	}
	existing, ok := f.monitors[m.ID]
	if !ok || existing.AccountID != m.AccountID {
		return nil, database.ErrNotFound
	}
	f.monitors[m.ID] = m
	return &m, nil
}

func (f *fakeMonitorStore) DeleteMonitor(ctx context.Context, accountID, id string) error {
	if f.err != nil {
		return f.err
	}
	m, ok := f.monitors[id]
	if !ok || m.AccountID != accountID {
		return database.ErrNotFound
	}
	delete(f.monitors, id)
	return nil
}

var errStoreDown = errors.New("store unavailable")

//go:build !integration

package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"medscan-registration/internal/domain"
	"medscan-registration/internal/domain/model"
	"medscan-registration/internal/domain/ports/adapter"
	"medscan-registration/internal/domain/ports/repository"
)

// ---- scan adapter ----

type statusStep struct {
	rep *model.JobStatusReport
	err error
}

// mockScanAdapter scripts one job id for submission and a sequence of
// status observations; the last step repeats once the script runs out.
type mockScanAdapter struct {
	mu          sync.Mutex
	jobID       string
	submitErr   error
	steps       []statusStep
	submitCalls int
	statusCalls int
	submitted   chan struct{}
	closeOnce   sync.Once
}

func newMockScanAdapter(jobID string, steps ...statusStep) *mockScanAdapter {
	return &mockScanAdapter{jobID: jobID, steps: steps, submitted: make(chan struct{})}
}

func (m *mockScanAdapter) SubmitScanJob(_ context.Context, _ []byte, _ string) (string, error) {
	m.mu.Lock()
	m.submitCalls++
	jobID, err := m.jobID, m.submitErr
	m.mu.Unlock()
	m.closeOnce.Do(func() { close(m.submitted) })
	if err != nil {
		return "", err
	}
	return jobID, nil
}

func (m *mockScanAdapter) GetJobStatus(_ context.Context, _ string) (*model.JobStatusReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.steps) == 0 {
		return nil, errors.New("no scripted status")
	}
	idx := m.statusCalls
	if idx >= len(m.steps) {
		idx = len(m.steps) - 1
	}
	m.statusCalls++
	step := m.steps[idx]
	if step.err != nil {
		return nil, step.err
	}
	cp := *step.rep
	return &cp, nil
}

func (m *mockScanAdapter) statusCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}

// ---- record adapter ----

type mockRecordAdapter struct {
	mu       sync.Mutex
	recordID string
	errs     []error
	payloads []*model.RecordPayload
}

func (m *mockRecordAdapter) CreatePersistedRecord(_ context.Context, payload *model.RecordPayload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return m.recordID, nil
}

func (m *mockRecordAdapter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payloads)
}

func (m *mockRecordAdapter) lastPayload() *model.RecordPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.payloads) == 0 {
		return nil
	}
	return m.payloads[len(m.payloads)-1]
}

// ---- result cache ----

type memResultCache struct {
	mu      sync.Mutex
	entries map[string]repository.CachedScan
	clears  int
}

func newMemResultCache() *memResultCache {
	return &memResultCache{entries: make(map[string]repository.CachedScan)}
}

func (c *memResultCache) Put(_ context.Context, userID string, entry *repository.CachedScan) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = *entry
	return nil
}

func (c *memResultCache) Get(_ context.Context, userID string) (*repository.CachedScan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := entry
	return &cp, nil
}

func (c *memResultCache) Clear(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.clears++
	return nil
}

func (c *memResultCache) has(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[userID]
	return ok
}

// ---- scan job journal ----

type memJournal struct {
	mu    sync.Mutex
	saves []model.ScanJob
}

func (j *memJournal) Save(_ context.Context, job *model.ScanJob) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.saves = append(j.saves, *job)
	return nil
}

func (j *memJournal) FindByID(_ context.Context, id string) (*model.ScanJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.saves) - 1; i >= 0; i-- {
		if j.saves[i].ID == id {
			cp := j.saves[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (j *memJournal) ListByUser(_ context.Context, userID string, limit int) ([]*model.ScanJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*model.ScanJob
	for i := len(j.saves) - 1; i >= 0 && len(out) < limit; i-- {
		if j.saves[i].UserID == userID {
			cp := j.saves[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (j *memJournal) terminalSaves() []model.ScanJob {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []model.ScanJob
	for _, s := range j.saves {
		if s.Status.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

// ---- push channel ----

type fakePush struct {
	mu     sync.Mutex
	subs   map[int64]chan model.JobStatusReport
	latest map[string]model.JobStatusReport
	nextID int64
}

func newFakePush() *fakePush {
	return &fakePush{
		subs:   make(map[int64]chan model.JobStatusReport),
		latest: make(map[string]model.JobStatusReport),
	}
}

func (p *fakePush) Subscribe() adapter.PushSubscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	ch := make(chan model.JobStatusReport, 4)
	p.subs[id] = ch
	return &fakeSub{push: p, id: id, ch: ch}
}

func (p *fakePush) Latest(jobID string) (model.JobStatusReport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rep, ok := p.latest[jobID]
	return rep, ok
}

func (p *fakePush) Publish(rep model.JobStatusReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest[rep.JobID] = rep
	for _, ch := range p.subs {
		select {
		case ch <- rep:
		default:
		}
	}
}

type fakeSub struct {
	push *fakePush
	id   int64
	ch   chan model.JobStatusReport
	once sync.Once
}

func (s *fakeSub) Events() <-chan model.JobStatusReport { return s.ch }

func (s *fakeSub) Close() {
	s.once.Do(func() {
		s.push.mu.Lock()
		delete(s.push.subs, s.id)
		s.push.mu.Unlock()
		close(s.ch)
	})
}

// ---- task runner ----

// goRunner runs every task on a fresh goroutine.
type goRunner struct{}

func (goRunner) Submit(task func(ctx context.Context) error) error {
	go func() { _ = task(context.Background()) }()
	return nil
}

// fullRunner always rejects, forcing the inline-goroutine fallback.
type fullRunner struct{}

func (fullRunner) Submit(func(ctx context.Context) error) error {
	return errors.New("pool saturated")
}

// ---- compile-time checks ----

var (
	_ adapter.ScanServiceAdapter       = (*mockScanAdapter)(nil)
	_ adapter.RecordServiceAdapter     = (*mockRecordAdapter)(nil)
	_ adapter.PushChannel              = (*fakePush)(nil)
	_ repository.ResultCacheRepository = (*memResultCache)(nil)
	_ repository.ScanJobRepository     = (*memJournal)(nil)
	_ TaskRunner                       = goRunner{}
	_ TaskRunner                       = fullRunner{}
)

func doneReport(jobID string, res *model.ScanResult) *model.JobStatusReport {
	return &model.JobStatusReport{JobID: jobID, Status: model.ScanJobStatusDone, Result: res}
}

func pendingReport(jobID string) *model.JobStatusReport {
	return &model.JobStatusReport{JobID: jobID, Status: model.ScanJobStatusPending}
}

func failedReport(jobID, reason string) *model.JobStatusReport {
	return &model.JobStatusReport{JobID: jobID, Status: model.ScanJobStatusFailed, Error: reason}
}

func twoMedResult() *model.ScanResult {
	return &model.ScanResult{
		Medications: []model.DetectedMedication{
			{Name: "Amoxicillin", Ingredient: "antibiotic", Dosage: 1, DailyFrequency: 3, DurationDays: 7},
			{Name: "Ibuprofen", DailyFrequency: 2, DurationDays: 5},
		},
		PharmacyName: "Main Street Pharmacy",
	}
}

func waitUntil(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

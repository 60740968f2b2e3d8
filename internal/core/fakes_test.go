package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeStore struct {
	accounts map[string]TenantAccount
	order    []string
	printers map[string][]PrinterConfig
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: map[string]TenantAccount{},
		printers: map[string][]PrinterConfig{},
	}
}

func (s *fakeStore) addAccount(a TenantAccount, printers ...PrinterConfig) {
	s.accounts[a.ID] = a
	s.order = append(s.order, a.ID)
	s.printers[a.ID] = printers
}

func (s *fakeStore) GetAccount(_ context.Context, id string) (*TenantAccount, error) {
	if s.err != nil {
		return nil, s.err
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (s *fakeStore) ListAccounts(context.Context) ([]TenantAccount, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []TenantAccount
	for _, id := range s.order {
		if a := s.accounts[id]; a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) ListPrinters(_ context.Context, tenantID string) ([]PrinterConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []PrinterConfig
	for _, p := range s.printers[tenantID] {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeShipping struct {
	trackers   map[string]*Tracker
	shipments  map[string][]Shipment
	trackerErr error
	listErr    error
	calls      atomic.Int32
}

func (f *fakeShipping) RetrieveTracker(_ context.Context, id string) (*Tracker, error) {
	f.calls.Add(1)
	if f.trackerErr != nil {
		return nil, f.trackerErr
	}
	t, ok := f.trackers[id]
	if !ok {
		return nil, ErrTrackerNotFound
	}
	return t, nil
}

func (f *fakeShipping) ListShipments(_ context.Context, code string, _ int) ([]Shipment, error) {
	f.calls.Add(1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.shipments[code], nil
}

type fakePrint struct {
	printers []RemotePrinter
	listErr  error
	jobID    string
	submitFn func(PrintJob) (string, error)

	mu   sync.Mutex
	jobs []PrintJob
}

func (f *fakePrint) ListPrinters(context.Context) ([]RemotePrinter, error) {
	return f.printers, f.listErr
}

func (f *fakePrint) SubmitJob(_ context.Context, job PrintJob) (string, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	if f.submitFn != nil {
		return f.submitFn(job)
	}
	return f.jobID, nil
}

func (f *fakePrint) submitted() []PrintJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PrintJob(nil), f.jobs...)
}

type fakeDownloader struct {
	data map[string][]byte
	err  error
}

func (d *fakeDownloader) Download(_ context.Context, url string) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	b, ok := d.data[url]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return b, nil
}

type memIdempotency struct {
	mu         sync.Mutex
	held       map[string]bool
	acquireErr error
	releases   int
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{held: map[string]bool{}}
}

func (m *memIdempotency) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m.acquireErr != nil {
		return false, m.acquireErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	m.releases++
	return nil
}

type countingRecorder struct {
	mu       sync.Mutex
	events   map[string]int
	failures map[State]ErrorKind
	jobs     map[bool]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		events:   map[string]int{},
		failures: map[State]ErrorKind{},
		jobs:     map[bool]int{},
	}
}

func (r *countingRecorder) EventHandled(eventType, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[eventType+"/"+outcome]++
}

func (r *countingRecorder) StageFailed(stage State, kind ErrorKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[stage] = kind
}

func (r *countingRecorder) LabelNormalized(string, bool) {}

func (r *countingRecorder) JobDispatched(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[success]++
}

package handlers

import (
	"context"
	"sync"

	"github.com/orrn/labelrelay/internal/core"
)

const testLabelURL = "https://labels.example/shp_1.zpl"

type stubStore struct {
	accounts map[string]core.TenantAccount
	printers map[string][]core.PrinterConfig
}

func (s *stubStore) GetAccount(_ context.Context, id string) (*core.TenantAccount, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return &a, nil
}

func (s *stubStore) ListAccounts(context.Context) ([]core.TenantAccount, error) {
	var out []core.TenantAccount
	for _, a := range s.accounts {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubStore) ListPrinters(_ context.Context, tenantID string) ([]core.PrinterConfig, error) {
	return s.printers[tenantID], nil
}

type stubShipping struct{}

func (stubShipping) RetrieveTracker(_ context.Context, id string) (*core.Tracker, error) {
	if id != "trk_1" {
		return nil, core.ErrTrackerNotFound
	}
	return &core.Tracker{ID: id, TrackingCode: "EZ1000"}, nil
}

func (stubShipping) ListShipments(_ context.Context, code string, _ int) ([]core.Shipment, error) {
	return []core.Shipment{{
		ID:           "shp_1",
		TrackingCode: code,
		Label:        &core.PostageLabel{URL: testLabelURL, FileType: "application/zpl"},
	}}, nil
}

type stubPrint struct {
	mu   sync.Mutex
	jobs []core.PrintJob
}

func (p *stubPrint) ListPrinters(context.Context) ([]core.RemotePrinter, error) {
	return []core.RemotePrinter{{ID: "7001", Name: "Zebra", State: core.PrinterOnline}}, nil
}

func (p *stubPrint) SubmitJob(_ context.Context, job core.PrintJob) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return "900", nil
}

func (p *stubPrint) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

type stubDownloader struct{}

func (stubDownloader) Download(context.Context, string) ([]byte, error) {
	return []byte("^XA^FDEZ1000^FS^XZ"), nil
}

type stubInvalidator struct {
	all     int
	tenants []string
}

func (s *stubInvalidator) Invalidate(tenantID string) { s.tenants = append(s.tenants, tenantID) }
func (s *stubInvalidator) InvalidateAll() { s.all++ }

// newTestIngestor wires a real pipeline over in-memory providers. acct_1 has
// printer 7001 and webhook secret "whsec".
func newTestIngestor(printer *stubPrint) (*core.Ingestor, *core.Resolver) {
	store := &stubStore{
		accounts: map[string]core.TenantAccount{
			"acct_1": {ID: "acct_1", Name: "Acme", Credential: "EZAK_acme", WebhookSecret: "whsec", Active: true},
		},
		printers: map[string][]core.PrinterConfig{
			"acct_1": {{ID: "p1", TenantID: "acct_1", Name: "Zebra", Credential: "pn", DeviceID: "7001", IsDefault: true, Active: true}},
		},
	}
	resolver := core.NewResolver(store, func(string) (core.ShippingClient, error) {
		return stubShipping{}, nil
	}, core.LegacyConfig{}, nil)
	pipeline := core.NewPipeline(
		resolver,
		core.NewFetcher(stubDownloader{}, nil),
		core.NewNormalizer(nil),
		core.NewDispatcher(func(string) (core.PrintClient, error) { return printer, nil }, nil),
	)
	return core.NewIngestor(pipeline, nil), resolver
}

package core

import (
	"context"
	"time"
)

// State is a pipeline stage. FAILED is terminal and reachable from any
// other state.
type State string

const (
	StateReceived        State = "RECEIVED"
	StateTrackerResolved State = "TRACKER_RESOLVED"
	StateShipmentMatched State = "SHIPMENT_MATCHED"
	StateLabelFetched    State = "LABEL_FETCHED"
	StateNormalized      State = "NORMALIZED"
	StateDispatched      State = "DISPATCHED"
	StateFailed          State = "FAILED"
)

// Format tags carried by label artifacts.
const (
	FormatPDF  = "pdf"
	FormatZPL  = "zpl"
	FormatEPL  = "epl"
	FormatPNG  = "png"
	FormatJPG  = "jpg"
	FormatJPEG = "jpeg"
)

const EventTrackerCreated = "tracker.created"

type TenantAccount struct {
	ID            string
	Name          string
	Credential    string
	WebhookSecret string
	Active        bool
}

type PrinterConfig struct {
	ID         string
	TenantID   string
	Name       string
	Credential string
	DeviceID   string
	IsDefault  bool
	Active     bool
}

// LabelArtifact is the in-memory label document. It is never persisted.
type LabelArtifact struct {
	SourceFormat  string
	Data          []byte
	TrackingCode  string
	ShipmentID    string
	ConvertedFrom string
}

type PrintJobResult struct {
	Success     bool   `json:"success"`
	JobID       string `json:"job_id,omitempty"`
	PrinterID   string `json:"printer_id,omitempty"`
	PrinterName string `json:"printer_name,omitempty"`
	Title       string `json:"title,omitempty"`
	Error       string `json:"error,omitempty"`
	Message     string `json:"message,omitempty"`
	TenantID    string `json:"account_id"`
}

type LabelInfo struct {
	ShipmentID    string `json:"shipment_id"`
	TenantID      string `json:"account_id"`
	TrackingCode  string `json:"tracking_code"`
	LabelURL      string `json:"label_url"`
	LabelFileType string `json:"label_file_type"`
	LabelDate     string `json:"label_date,omitempty"`
	ConvertedFrom string `json:"converted_from,omitempty"`
}

// Result is the per-event outcome handed back to the webhook sender.
type Result struct {
	Success     bool            `json:"success"`
	TenantID    string          `json:"account_id"`
	EventType   string          `json:"event_type,omitempty"`
	Reached     State           `json:"reached,omitempty"`
	FailedStage State           `json:"failed_stage,omitempty"`
	Error       string          `json:"error,omitempty"`
	Message     string          `json:"message,omitempty"`
	Label       *LabelInfo      `json:"label_info,omitempty"`
	PrintJob    *PrintJobResult `json:"print_job,omitempty"`
}

type Tracker struct {
	ID           string
	TrackingCode string
	ShipmentID   string
}

type PostageLabel struct {
	URL       string
	FileType  string
	LabelDate string
}

type Shipment struct {
	ID           string
	TrackingCode string
	Label        *PostageLabel
}

// ShippingClient is the tracking provider surface the pipeline needs.
type ShippingClient interface {
	RetrieveTracker(ctx context.Context, id string) (*Tracker, error)
	ListShipments(ctx context.Context, trackingCode string, pageSize int) ([]Shipment, error)
}

type PrinterState string

const (
	PrinterOnline  PrinterState = "online"
	PrinterOffline PrinterState = "offline"
	PrinterUnknown PrinterState = "unknown"
)

// RemotePrinter is a printer as reported by the print service, normalized
// at the client boundary.
type RemotePrinter struct {
	ID    string
	Name  string
	State PrinterState
}

type PrintOptions struct {
	Paper string
	Color bool
}

type PrintJob struct {
	PrinterID   string
	Title       string
	ContentType string
	Content     string
	Source      string
	Options     PrintOptions
}

type PrintClient interface {
	ListPrinters(ctx context.Context) ([]RemotePrinter, error)
	SubmitJob(ctx context.Context, job PrintJob) (string, error)
}

type ShippingClientFactory func(credential string) (ShippingClient, error)

type PrintClientFactory func(credential string) (PrintClient, error)

// AccountStore is read-only access to tenant and printer records.
// GetAccount returns ErrAccountNotFound for unknown ids. List methods return
// active records only, in store order.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*TenantAccount, error)
	ListAccounts(ctx context.Context) ([]TenantAccount, error)
	ListPrinters(ctx context.Context, tenantID string) ([]PrinterConfig, error)
}

// IdempotencyStore records which trackers already had a print job submitted.
type IdempotencyStore interface {
	// Acquire returns true when the key was not held and is now held for ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Recorder receives pipeline observations.
type Recorder interface {
	EventHandled(eventType, outcome string, elapsed time.Duration)
	StageFailed(stage State, kind ErrorKind)
	LabelNormalized(from string, converted bool)
	JobDispatched(success bool)
}

type nopRecorder struct{}

func (nopRecorder) EventHandled(string, string, time.Duration) {}
func (nopRecorder) StageFailed(State, ErrorKind)               {}
func (nopRecorder) LabelNormalized(string, bool)               {}
func (nopRecorder) JobDispatched(bool)                         {}

package core

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPayload        = errors.New("missing payload")
	ErrMissingEventType    = errors.New("missing event type")
	ErrTrackerNotFound     = errors.New("tracker not found")
	ErrShipmentNotFound    = errors.New("no associated shipment found")
	ErrLabelMissing        = errors.New("no label found for this shipment")
	ErrAccountNotFound     = errors.New("account not found")
	ErrPrinterNotFound     = errors.New("printer not found")
	ErrSubmitFailed        = errors.New("failed to submit print job")
	ErrNoPrinterConfigured = errors.New("no printer configured")
	ErrMissingCredential   = errors.New("missing credential")
	ErrDownloadFailed      = errors.New("failed to download label")
	ErrCredentialRejected  = errors.New("credential rejected")
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindLookup        ErrorKind = "lookup"
	KindTransientIO   ErrorKind = "transient_io"
	KindConversion    ErrorKind = "conversion"
	KindConfiguration ErrorKind = "configuration"
)

// StageError ties a failure to the pipeline stage that was being attempted.
type StageError struct {
	Kind  ErrorKind
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(kind ErrorKind, stage State, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

// KindOf reports the kind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	var ce *ConversionError
	if errors.As(err, &ce) {
		return KindConversion
	}
	return ""
}

// ConversionError reports a failed raster conversion. It never aborts the
// pipeline; the original artifact is forwarded instead.
type ConversionError struct {
	Format string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("failed to convert %s label: %v", e.Format, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

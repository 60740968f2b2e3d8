package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	contentTypeRaw = "raw_base64"
	contentTypePDF = "pdf_base64"
	jobSource      = "labelrelay"
	paper4x6       = "4x6"
)

type Dispatcher struct {
	newClient PrintClientFactory
	logger    *zap.Logger
}

func NewDispatcher(newClient PrintClientFactory, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{newClient: newClient, logger: logger}
}

// JobTitle is the print job title for a label. A blank tenant renders as ().
func JobTitle(trackingCode, tenantID string) string {
	return fmt.Sprintf("Shipping Label - %s (%s)", trackingCode, tenantID)
}

// Dispatch submits artifact to printer. The result is always non-nil and
// carries tenantID. The error, when set, is a *StageError describing why the
// job was not submitted.
func (d *Dispatcher) Dispatch(ctx context.Context, artifact LabelArtifact, printer *PrinterConfig, tenantID string) (*PrintJobResult, error) {
	result := &PrintJobResult{TenantID: tenantID}

	if printer == nil {
		result.Message = noPrinterMessage(tenantID)
		return result, stageError(KindConfiguration, StateDispatched, ErrNoPrinterConfigured)
	}

	result.PrinterID = printer.DeviceID
	result.PrinterName = printer.Name

	if printer.Credential == "" {
		result.Message = noPrinterMessage(tenantID)
		return result, stageError(KindConfiguration, StateDispatched, fmt.Errorf("printer %s: %w", printer.Name, ErrMissingCredential))
	}

	client, err := d.newClient(printer.Credential)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create print client: %v", err)
		return result, stageError(KindConfiguration, StateDispatched, err)
	}

	remotes, err := client.ListPrinters(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("failed to list printers: %v", err)
		return result, stageError(ioKind(err), StateDispatched, err)
	}

	remote := findRemotePrinter(remotes, printer.DeviceID)
	if remote == nil {
		result.Error = fmt.Sprintf("printer %s (%s) not found", printer.DeviceID, printer.Name)
		return result, stageError(KindLookup, StateDispatched, fmt.Errorf("printer %s (%s): %w", printer.DeviceID, printer.Name, ErrPrinterNotFound))
	}

	if remote.State != PrinterOnline {
		d.logger.Warn("printer is not online, submitting anyway",
			zap.String("printer_id", remote.ID),
			zap.String("printer_name", remote.Name),
			zap.String("state", string(remote.State)),
		)
	}

	title := JobTitle(artifact.TrackingCode, tenantID)
	jobID, err := client.SubmitJob(ctx, PrintJob{
		PrinterID:   printer.DeviceID,
		Title:       title,
		ContentType: contentTypeFor(artifact.SourceFormat),
		Content:     base64.StdEncoding.EncodeToString(artifact.Data),
		Source:      jobSource,
		Options:     PrintOptions{Paper: paper4x6, Color: false},
	})
	if err != nil || jobID == "" {
		switch {
		case err == nil:
			err = ErrSubmitFailed
		case !errors.Is(err, ErrSubmitFailed):
			err = fmt.Errorf("%w: %w", ErrSubmitFailed, err)
		}
		result.Error = ErrSubmitFailed.Error()
		return result, stageError(ioKind(err), StateDispatched, err)
	}

	d.logger.Info("label dispatched",
		zap.String("account_id", tenantID),
		zap.String("printer_id", printer.DeviceID),
		zap.String("job_id", jobID),
		zap.String("format", artifact.SourceFormat),
	)

	result.Success = true
	result.JobID = jobID
	result.Title = title
	return result, nil
}

// ioKind classifies a print service failure. A rejected credential will not
// succeed on redelivery.
func ioKind(err error) ErrorKind {
	if errors.Is(err, ErrCredentialRejected) {
		return KindConfiguration
	}
	return KindTransientIO
}

func noPrinterMessage(tenantID string) string {
	if tenantID == "" {
		return "Label downloaded successfully but no printer configured"
	}
	return fmt.Sprintf("Label downloaded successfully but no printer configured for account %s", tenantID)
}

func findRemotePrinter(remotes []RemotePrinter, deviceID string) *RemotePrinter {
	for i := range remotes {
		if remotes[i].ID == deviceID {
			return &remotes[i]
		}
	}
	return nil
}

func contentTypeFor(format string) string {
	switch format {
	case FormatZPL, FormatEPL:
		return contentTypeRaw
	default:
		return contentTypePDF
	}
}

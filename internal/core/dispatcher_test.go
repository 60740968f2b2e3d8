package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatcherWith(client *fakePrint) *Dispatcher {
	return NewDispatcher(func(string) (PrintClient, error) { return client, nil }, nil)
}

var testPrinter = &PrinterConfig{ID: "p1", TenantID: "t1", Name: "Zebra", Credential: "pn", DeviceID: "7001", IsDefault: true, Active: true}

func TestDispatch_NoPrinter(t *testing.T) {
	d := dispatcherWith(&fakePrint{})

	res, err := d.Dispatch(context.Background(), LabelArtifact{SourceFormat: "pdf"}, nil, "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPrinterConfigured)
	assert.Equal(t, KindConfiguration, KindOf(err))

	assert.False(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, "Label downloaded successfully but no printer configured for account t1", res.Message)
	assert.Equal(t, "t1", res.TenantID)
}

func TestDispatch_MissingPrinterCredential(t *testing.T) {
	d := dispatcherWith(&fakePrint{})
	p := *testPrinter
	p.Credential = ""

	res, err := d.Dispatch(context.Background(), LabelArtifact{}, &p, "t1")
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.Contains(t, res.Message, "no printer configured")
	assert.Empty(t, res.Error)
}

func TestDispatch_OfflinePrinterStillSubmits(t *testing.T) {
	client := &fakePrint{printers: []RemotePrinter{{ID: "7001", Name: "Zebra", State: PrinterOffline}}, jobID: "9"}
	d := dispatcherWith(client)

	res, err := d.Dispatch(context.Background(), LabelArtifact{SourceFormat: "epl", Data: []byte("N\nP1\n"), TrackingCode: "EZ1"}, testPrinter, "t1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "9", res.JobID)
	assert.Equal(t, "7001", res.PrinterID)
	assert.Equal(t, "Zebra", res.PrinterName)

	jobs := client.submitted()
	require.Len(t, jobs, 1)
	assert.Equal(t, contentTypeRaw, jobs[0].ContentType)
	assert.Equal(t, "labelrelay", jobs[0].Source)
}

func TestDispatch_PrinterNotFound(t *testing.T) {
	client := &fakePrint{printers: []RemotePrinter{{ID: "70010", State: PrinterOnline}}}
	d := dispatcherWith(client)

	res, err := d.Dispatch(context.Background(), LabelArtifact{}, testPrinter, "t1")
	assert.ErrorIs(t, err, ErrPrinterNotFound)
	assert.Equal(t, KindLookup, KindOf(err))
	assert.Equal(t, "printer 7001 (Zebra) not found", res.Error)
	assert.Empty(t, client.submitted())
}

func TestDispatch_ListPrintersFails(t *testing.T) {
	d := dispatcherWith(&fakePrint{listErr: errors.New("unauthorized")})

	res, err := d.Dispatch(context.Background(), LabelArtifact{}, testPrinter, "t1")
	assert.Equal(t, KindTransientIO, KindOf(err))
	assert.Contains(t, res.Error, "unauthorized")
}

func TestDispatch_RejectedCredentialIsConfiguration(t *testing.T) {
	rejected := fmt.Errorf("print api 401: %w", ErrCredentialRejected)

	d := dispatcherWith(&fakePrint{listErr: rejected})
	_, err := d.Dispatch(context.Background(), LabelArtifact{}, testPrinter, "t1")
	assert.Equal(t, KindConfiguration, KindOf(err))

	client := &fakePrint{
		printers: []RemotePrinter{{ID: "7001", State: PrinterOnline}},
		submitFn: func(PrintJob) (string, error) { return "", rejected },
	}
	res, err := dispatcherWith(client).Dispatch(context.Background(), LabelArtifact{SourceFormat: "pdf"}, testPrinter, "t1")
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.ErrorIs(t, err, ErrCredentialRejected)
	assert.Equal(t, "failed to submit print job", res.Error)
}

func TestDispatch_EmptyJobIDErrorText(t *testing.T) {
	client := &fakePrint{
		printers: []RemotePrinter{{ID: "7001", State: PrinterOnline}},
		submitFn: func(PrintJob) (string, error) { return "", nil },
	}

	_, err := dispatcherWith(client).Dispatch(context.Background(), LabelArtifact{SourceFormat: "pdf"}, testPrinter, "t1")
	require.Error(t, err)
	assert.Equal(t, "failed to submit print job", err.Error())
	assert.Equal(t, KindTransientIO, KindOf(err))
}

func TestDispatch_SubmitFailures(t *testing.T) {
	tests := []struct {
		name string
		fn   func(PrintJob) (string, error)
	}{
		{name: "empty job id", fn: func(PrintJob) (string, error) { return "", nil }},
		{name: "provider error", fn: func(PrintJob) (string, error) { return "", errors.New("500") }},
		{name: "sentinel", fn: func(PrintJob) (string, error) { return "", ErrSubmitFailed }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakePrint{printers: []RemotePrinter{{ID: "7001", State: PrinterOnline}}, submitFn: tt.fn}
			d := dispatcherWith(client)

			res, err := d.Dispatch(context.Background(), LabelArtifact{SourceFormat: "pdf"}, testPrinter, "t1")
			assert.ErrorIs(t, err, ErrSubmitFailed)
			assert.False(t, res.Success)
			assert.Equal(t, "failed to submit print job", res.Error)
			assert.Empty(t, res.JobID)
		})
	}
}

func TestJobTitle(t *testing.T) {
	assert.Equal(t, "Shipping Label - EZ1 (acct)", JobTitle("EZ1", "acct"))
	assert.Equal(t, "Shipping Label - EZ1 ()", JobTitle("EZ1", ""))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "raw_base64", contentTypeFor("zpl"))
	assert.Equal(t, "raw_base64", contentTypeFor("epl"))
	assert.Equal(t, "pdf_base64", contentTypeFor("pdf"))
	assert.Equal(t, "pdf_base64", contentTypeFor("png"))
}

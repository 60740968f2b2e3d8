package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const DefaultDownloadTimeout = 30 * time.Second

// Downloader fetches label bytes from a URL.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

type HTTPDownloader struct {
	client *resty.Client
}

func NewHTTPDownloader(timeout time.Duration) *HTTPDownloader {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	return &HTTPDownloader{
		client: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0).
			SetHeader("User-Agent", "labelrelay"),
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode())
	}
	return resp.Body(), nil
}

type Fetcher struct {
	downloader Downloader
	logger     *zap.Logger
}

func NewFetcher(downloader Downloader, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{downloader: downloader, logger: logger}
}

// ResolveTracker returns the tracking code for a tracker reference.
func (f *Fetcher) ResolveTracker(ctx context.Context, client ShippingClient, trackerID string) (*Tracker, error) {
	tracker, err := client.RetrieveTracker(ctx, trackerID)
	if err != nil {
		if errors.Is(err, ErrTrackerNotFound) {
			return nil, stageError(KindLookup, StateTrackerResolved, err)
		}
		return nil, stageError(KindTransientIO, StateTrackerResolved, fmt.Errorf("failed to retrieve tracker %s: %w", trackerID, err))
	}
	if tracker == nil || tracker.TrackingCode == "" {
		return nil, stageError(KindLookup, StateTrackerResolved, fmt.Errorf("tracker %s has no tracking code: %w", trackerID, ErrTrackerNotFound))
	}
	return tracker, nil
}

// MatchShipment finds the shipment bearing trackingCode and checks it has a
// label.
func (f *Fetcher) MatchShipment(ctx context.Context, client ShippingClient, trackingCode string) (*Shipment, error) {
	shipments, err := client.ListShipments(ctx, trackingCode, 1)
	if err != nil {
		return nil, stageError(KindTransientIO, StateShipmentMatched, fmt.Errorf("failed to list shipments: %w", err))
	}
	if len(shipments) == 0 {
		return nil, stageError(KindLookup, StateShipmentMatched, ErrShipmentNotFound)
	}

	shipment := shipments[0]
	if shipment.Label == nil || shipment.Label.URL == "" {
		return nil, stageError(KindLookup, StateShipmentMatched, ErrLabelMissing)
	}
	return &shipment, nil
}

// Download fetches the label bytes for a matched shipment.
func (f *Fetcher) Download(ctx context.Context, shipment *Shipment, trackingCode string) (LabelArtifact, error) {
	start := time.Now()
	data, err := f.downloader.Download(ctx, shipment.Label.URL)
	if err != nil {
		if !errors.Is(err, ErrDownloadFailed) {
			err = fmt.Errorf("%w: %v", ErrDownloadFailed, err)
		}
		return LabelArtifact{}, stageError(KindTransientIO, StateLabelFetched, err)
	}

	f.logger.Info("label downloaded",
		zap.String("shipment_id", shipment.ID),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return LabelArtifact{
		SourceFormat: NormalizeFormatTag(shipment.Label.FileType),
		Data:         data,
		TrackingCode: trackingCode,
		ShipmentID:   shipment.ID,
	}, nil
}

package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const DefaultIdempotencyTTL = 24 * time.Hour

// Pipeline runs one tracker event through resolution, fetch, normalization
// and dispatch. It never panics on provider data and always returns a
// Result.
type Pipeline struct {
	resolver       *Resolver
	fetcher        *Fetcher
	normalizer     *Normalizer
	dispatcher     *Dispatcher
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	recorder       Recorder
	logger         *zap.Logger
}

type Option func(*Pipeline)

// WithIdempotency guards dispatch so a redelivered event does not print twice.
func WithIdempotency(store IdempotencyStore, ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.idempotency = store
		if ttl > 0 {
			p.idempotencyTTL = ttl
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPipeline(resolver *Resolver, fetcher *Fetcher, normalizer *Normalizer, dispatcher *Dispatcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:       resolver,
		fetcher:        fetcher,
		normalizer:     normalizer,
		dispatcher:     dispatcher,
		idempotencyTTL: DefaultIdempotencyTTL,
		recorder:       nopRecorder{},
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IdempotencyKey identifies one tracker within one tenant. The legacy tenant
// has an empty prefix, which no tenant id produces.
func IdempotencyKey(tenantID, trackerID string) string {
	return tenantID + ":" + trackerID
}

// Run processes a tracker.created event for trackerID. The result is
// successful once a label has been located; dispatch problems are reported
// in Result.PrintJob.
func (p *Pipeline) Run(ctx context.Context, tenantID, trackerID string) *Result {
	logger := p.logger.With(zap.String("account_id", tenantID), zap.String("tracker_id", trackerID))
	res := &Result{
		TenantID:  tenantID,
		EventType: EventTrackerCreated,
		Reached:   StateReceived,
	}

	tenant, err := p.resolver.Resolve(ctx, tenantID)
	if err != nil {
		return p.fail(logger, res, err)
	}

	tracker, err := p.fetcher.ResolveTracker(ctx, tenant.Client, trackerID)
	if err != nil {
		return p.fail(logger, res, err)
	}
	res.Reached = StateTrackerResolved

	shipment, err := p.fetcher.MatchShipment(ctx, tenant.Client, tracker.TrackingCode)
	if err != nil {
		return p.fail(logger, res, err)
	}
	res.Reached = StateShipmentMatched
	res.Success = true
	res.Label = &LabelInfo{
		ShipmentID:    shipment.ID,
		TenantID:      tenantID,
		TrackingCode:  tracker.TrackingCode,
		LabelURL:      shipment.Label.URL,
		LabelFileType: shipment.Label.FileType,
		LabelDate:     shipment.Label.LabelDate,
	}

	artifact, err := p.fetcher.Download(ctx, shipment, tracker.TrackingCode)
	if err != nil {
		p.record(logger, res, err)
		res.PrintJob = &PrintJobResult{TenantID: tenantID, Error: ErrDownloadFailed.Error()}
		return res
	}
	res.Reached = StateLabelFetched

	normalized, err := p.normalizer.Normalize(artifact)
	if err != nil {
		// Conversion failures are not terminal; the original bytes go out.
		p.recorder.StageFailed(StateNormalized, KindConversion)
		logger.Warn("forwarding unconverted label", zap.Error(err))
	} else {
		res.Label.ConvertedFrom = normalized.ConvertedFrom
	}
	p.recorder.LabelNormalized(artifact.SourceFormat, normalized.ConvertedFrom != "")
	res.Reached = StateNormalized

	printer := DefaultPrinter(tenant.Printers)
	held := false
	if p.idempotency != nil && printer != nil {
		key := IdempotencyKey(tenantID, trackerID)
		acquired, err := p.idempotency.Acquire(ctx, key, p.idempotencyTTL)
		switch {
		case err != nil:
			logger.Warn("idempotency check failed, dispatching anyway", zap.Error(err))
		case !acquired:
			logger.Info("duplicate event, print job already submitted")
			res.PrintJob = &PrintJobResult{
				TenantID: tenantID,
				Message:  fmt.Sprintf("print job already submitted for tracker %s", trackerID),
			}
			return res
		default:
			held = true
		}
	}

	job, err := p.dispatcher.Dispatch(ctx, normalized, printer, tenantID)
	res.PrintJob = job
	p.recorder.JobDispatched(err == nil)
	if err != nil {
		if held {
			// Let the sender's retry print.
			if rerr := p.idempotency.Release(context.WithoutCancel(ctx), IdempotencyKey(tenantID, trackerID)); rerr != nil {
				logger.Warn("failed to release idempotency key", zap.Error(rerr))
			}
		}
		p.record(logger, res, err)
		return res
	}

	res.Reached = StateDispatched
	logger.Info("label fulfilled", zap.String("job_id", job.JobID))
	return res
}

// fail marks the result failed before a label was located.
func (p *Pipeline) fail(logger *zap.Logger, res *Result, err error) *Result {
	res.Success = false
	res.Error = err.Error()
	p.record(logger, res, err)
	return res
}

func (p *Pipeline) record(logger *zap.Logger, res *Result, err error) {
	kind := KindOf(err)
	var se *StageError
	if errors.As(err, &se) {
		res.FailedStage = se.Stage
	} else {
		res.FailedStage = nextState(res.Reached)
	}
	p.recorder.StageFailed(res.FailedStage, kind)

	fields := []zap.Field{
		zap.String("failed_stage", string(res.FailedStage)),
		zap.String("kind", string(kind)),
		zap.Error(err),
	}
	if kind == KindConfiguration || kind == KindLookup {
		logger.Info("pipeline stopped", fields...)
		return
	}
	logger.Warn("pipeline stage failed", fields...)
}

func nextState(s State) State {
	switch s {
	case StateReceived:
		return StateTrackerResolved
	case StateTrackerResolved:
		return StateShipmentMatched
	case StateShipmentMatched:
		return StateLabelFetched
	case StateLabelFetched:
		return StateNormalized
	case StateNormalized:
		return StateDispatched
	}
	return StateFailed
}

package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Event is a validated webhook notification.
type Event struct {
	Type        string
	ReferenceID string
}

// ParseEvent reads the event type and tracker reference out of an untyped
// payload. The provider's native fields (description, result.id) win over
// the generic ones (type, ref).
func ParseEvent(payload map[string]any) (*Event, error) {
	if len(payload) == 0 {
		return nil, stageError(KindValidation, StateReceived, ErrEmptyPayload)
	}

	eventType := firstString(payload, "description", "type")
	if eventType == "" {
		return nil, stageError(KindValidation, StateReceived, ErrMissingEventType)
	}

	ev := &Event{Type: eventType}
	if result, ok := payload["result"].(map[string]any); ok {
		ev.ReferenceID = firstString(result, "id")
	}
	if ev.ReferenceID == "" {
		ev.ReferenceID = firstString(payload, "ref")
	}
	return ev, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

type Ingestor struct {
	pipeline *Pipeline
	logger   *zap.Logger
}

func NewIngestor(pipeline *Pipeline, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{pipeline: pipeline, logger: logger}
}

// Handle validates payload and routes it. Validation failures come back as
// an error; every other outcome, including pipeline failures, is a Result.
func (i *Ingestor) Handle(ctx context.Context, tenantID string, payload map[string]any) (*Result, error) {
	start := time.Now()
	recorder := i.pipeline.recorder

	ev, err := ParseEvent(payload)
	if err != nil {
		recorder.EventHandled("", "invalid", time.Since(start))
		return nil, err
	}

	logger := i.logger.With(zap.String("account_id", tenantID), zap.String("event_type", ev.Type))

	if ev.Type != EventTrackerCreated {
		logger.Debug("event acknowledged")
		recorder.EventHandled(ev.Type, "acknowledged", time.Since(start))
		return &Result{
			Success:   true,
			TenantID:  tenantID,
			EventType: ev.Type,
			Message:   fmt.Sprintf("Event type %s acknowledged but not processed", ev.Type),
		}, nil
	}

	if ev.ReferenceID == "" {
		logger.Warn("tracker event without tracker id")
		recorder.EventHandled(ev.Type, "failed", time.Since(start))
		recorder.StageFailed(StateTrackerResolved, KindValidation)
		return &Result{
			TenantID:    tenantID,
			EventType:   ev.Type,
			Reached:     StateReceived,
			FailedStage: StateTrackerResolved,
			Error:       "no tracker id found in event",
		}, nil
	}

	res := i.pipeline.Run(ctx, tenantID, ev.ReferenceID)

	outcome := "success"
	if !res.Success {
		outcome = "failed"
	}
	recorder.EventHandled(ev.Type, outcome, time.Since(start))
	logger.Info("event processed",
		zap.String("tracker_id", ev.ReferenceID),
		zap.Bool("success", res.Success),
		zap.String("reached", string(res.Reached)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

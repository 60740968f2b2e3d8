package easypost

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/orrn/labelrelay/internal/core"
)

const (
	DefaultBaseURL = "https://api.easypost.com/v2"
	defaultTimeout = 15 * time.Second
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the tracking provider with a single API key.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("easypost api error %d: %s (%s)", e.Status, e.Message, e.Code)
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

type trackerResponse struct {
	ID           string `json:"id"`
	TrackingCode string `json:"tracking_code"`
	ShipmentID   string `json:"shipment_id"`
}

type postageLabel struct {
	LabelURL      string `json:"label_url"`
	LabelFileType string `json:"label_file_type"`
	LabelDate     string `json:"label_date"`
}

type shipmentResponse struct {
	ID           string        `json:"id"`
	TrackingCode string        `json:"tracking_code"`
	PostageLabel *postageLabel `json:"postage_label"`
}

type shipmentListResponse struct {
	Shipments []shipmentResponse `json:"shipments"`
	HasMore   bool               `json:"has_more"`
}

func NewClient(apiKey string, cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetBasicAuth(apiKey, "").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "labelrelay")

	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Factory adapts NewClient to core.ShippingClientFactory.
func Factory(cfg Config, logger *zap.Logger) core.ShippingClientFactory {
	return func(credential string) (core.ShippingClient, error) {
		if credential == "" {
			return nil, core.ErrMissingCredential
		}
		return NewClient(credential, cfg, logger), nil
	}
}

func (c *Client) RetrieveTracker(ctx context.Context, id string) (*core.Tracker, error) {
	var tr trackerResponse
	var apiErr errorEnvelope

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&tr).
		SetError(&apiErr).
		Get("/trackers/{id}")
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tracker: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("tracker %s: %w", id, core.ErrTrackerNotFound)
	}
	if resp.IsError() {
		return nil, c.apiError(resp, apiErr.Error)
	}

	c.logger.Debug("retrieved tracker",
		zap.String("tracker_id", id),
		zap.String("tracking_code", tr.TrackingCode),
	)

	return &core.Tracker{
		ID:           tr.ID,
		TrackingCode: tr.TrackingCode,
		ShipmentID:   tr.ShipmentID,
	}, nil
}

func (c *Client) ListShipments(ctx context.Context, trackingCode string, pageSize int) ([]core.Shipment, error) {
	if pageSize <= 0 {
		pageSize = 1
	}

	var list shipmentListResponse
	var apiErr errorEnvelope

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("tracking_code", trackingCode).
		SetQueryParam("page_size", strconv.Itoa(pageSize)).
		SetResult(&list).
		SetError(&apiErr).
		Get("/shipments")
	if err != nil {
		return nil, fmt.Errorf("failed to list shipments: %w", err)
	}
	if resp.IsError() {
		return nil, c.apiError(resp, apiErr.Error)
	}

	shipments := make([]core.Shipment, 0, len(list.Shipments))
	for _, s := range list.Shipments {
		shipment := core.Shipment{ID: s.ID, TrackingCode: s.TrackingCode}
		if s.PostageLabel != nil && s.PostageLabel.LabelURL != "" {
			shipment.Label = &core.PostageLabel{
				URL:       s.PostageLabel.LabelURL,
				FileType:  s.PostageLabel.LabelFileType,
				LabelDate: s.PostageLabel.LabelDate,
			}
		}
		shipments = append(shipments, shipment)
	}
	return shipments, nil
}

func (c *Client) apiError(resp *resty.Response, e *APIError) error {
	if e == nil {
		e = &APIError{Message: http.StatusText(resp.StatusCode())}
	}
	e.Status = resp.StatusCode()
	c.logger.Warn("easypost request failed",
		zap.String("url", resp.Request.URL),
		zap.Int("status", e.Status),
		zap.String("code", e.Code),
	)
	return e
}

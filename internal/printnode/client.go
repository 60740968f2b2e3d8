package printnode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/orrn/labelrelay/internal/core"
)

const (
	DefaultBaseURL = "https://api.printnode.com"
	defaultTimeout = 15 * time.Second
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

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
	if e.Code != "" {
		return fmt.Sprintf("printnode api error %d: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("printnode api error %d: %s", e.Status, e.Message)
}

// Unwrap maps a rejected API key to core.ErrCredentialRejected.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return core.ErrCredentialRejected
	}
	return nil
}

// printerRecord accepts both the documented object form and the positional
// [id, name, state] form some accounts return.
type printerRecord struct {
	ID    string
	Name  string
	State string
}

func (p *printerRecord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var fields []json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
		values := make([]string, 3)
		for i := 0; i < len(fields) && i < 3; i++ {
			values[i] = scalarString(fields[i])
		}
		p.ID, p.Name, p.State = values[0], values[1], values[2]
		return nil
	}

	var obj struct {
		ID    json.RawMessage `json:"id"`
		Name  string          `json:"name"`
		State string          `json:"state"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	p.ID = scalarString(obj.ID)
	p.Name = obj.Name
	p.State = obj.State
	return nil
}

func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

type jobOptions struct {
	Paper string `json:"paper,omitempty"`
	Color bool   `json:"color"`
}

type jobRequest struct {
	PrinterID   any        `json:"printerId"`
	Title       string     `json:"title"`
	ContentType string     `json:"contentType"`
	Content     string     `json:"content"`
	Source      string     `json:"source"`
	Options     jobOptions `json:"options"`
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
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

func Factory(cfg Config, logger *zap.Logger) core.PrintClientFactory {
	return func(credential string) (core.PrintClient, error) {
		if credential == "" {
			return nil, core.ErrMissingCredential
		}
		return NewClient(credential, cfg, logger), nil
	}
}

func (c *Client) ListPrinters(ctx context.Context) ([]core.RemotePrinter, error) {
	var records []printerRecord
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&records).
		Get("/printers")
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	if resp.IsError() {
		return nil, c.apiError(resp)
	}

	printers := make([]core.RemotePrinter, 0, len(records))
	for _, r := range records {
		printers = append(printers, core.RemotePrinter{
			ID:    r.ID,
			Name:  r.Name,
			State: normalizeState(r.State),
		})
	}
	return printers, nil
}

func (c *Client) SubmitJob(ctx context.Context, job core.PrintJob) (string, error) {
	body := jobRequest{
		PrinterID:   printerIDValue(job.PrinterID),
		Title:       job.Title,
		ContentType: job.ContentType,
		Content:     job.Content,
		Source:      job.Source,
		Options: jobOptions{
			Paper: job.Options.Paper,
			Color: job.Options.Color,
		},
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post("/printjobs")
	if err != nil {
		return "", fmt.Errorf("failed to submit print job: %w", err)
	}
	if resp.IsError() {
		return "", c.apiError(resp)
	}

	jobID := parseJobID(resp.Body())
	if jobID == "" {
		return "", core.ErrSubmitFailed
	}

	c.logger.Info("print job submitted",
		zap.String("printer_id", job.PrinterID),
		zap.String("job_id", jobID),
	)
	return jobID, nil
}

// The API answers job creation with a bare integer id.
func parseJobID(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	id := scalarString(body)
	if id == "" {
		var obj struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(body, &obj); err == nil && obj.ID != nil {
			id = scalarString(obj.ID)
		}
	}
	if id == "0" {
		return ""
	}
	return id
}

func printerIDValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func normalizeState(state string) core.PrinterState {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "online":
		return core.PrinterOnline
	case "offline", "disconnected":
		return core.PrinterOffline
	default:
		return core.PrinterUnknown
	}
}

func (c *Client) apiError(resp *resty.Response) error {
	apiErr := &APIError{Status: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	c.logger.Warn("printnode request failed",
		zap.String("url", resp.Request.URL),
		zap.Int("status", apiErr.Status),
	)
	return apiErr
}


// Package client talks to a running hrimport server over its JSON API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JonMunkholm/hrimport/internal/core"
)

// DefaultTimeout covers a large roster; the server bounds a run by its
// own ingest timeout.
const DefaultTimeout = 10 * time.Minute

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("server returned %d: %s (Code: %s). %s", e.Status, e.Message, e.Code, e.Action)
	}
	return fmt.Sprintf("server returned %d: %s (Code: %s)", e.Status, e.Message, e.Code)
}

// Client is a thin typed wrapper over the server's API.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// New builds a client. Reads are retried on transport errors and 5xx;
// uploads are never retried.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json").
		AddRetryCondition(retryReads)
	if opts.APIKey != "" {
		rc.SetHeader("X-API-Key", opts.APIKey)
	}

	return &Client{http: rc, logger: logger}
}

func retryReads(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || resp.StatusCode() >= http.StatusInternalServerError
}

// Ingest uploads one roster and returns the server's report.
func (c *Client) Ingest(ctx context.Context, fileName string, data []byte, dryRun bool) (*core.Report, error) {
	c.logger.Info("uploading roster", "file", fileName, "bytes", len(data), "dry_run", dryRun)

	var report core.Report
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", fileName, bytes.NewReader(data)).
		SetFormData(map[string]string{"dry_run": strconv.FormatBool(dryRun)}).
		SetResult(&report).
		SetError(&APIError{}).
		Post("/api/ingest")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("ingest %s: %w", fileName, err)
	}
	return &report, nil
}

// Runs lists recorded runs, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]core.RunSummary, error) {
	var runs []core.RunSummary
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&runs).
		SetError(&APIError{}).
		Get("/api/runs")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Faculty returns one page of faculty records with IDs above afterID.
func (c *Client) Faculty(ctx context.Context, afterID int64, limit int) ([]core.Faculty, error) {
	var faculty []core.Faculty
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"after": strconv.FormatInt(afterID, 10),
			"limit": strconv.Itoa(limit),
		}).
		SetResult(&faculty).
		SetError(&APIError{}).
		Get("/api/faculty")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("list faculty: %w", err)
	}
	return faculty, nil
}

// Audit lists the changes one run made.
func (c *Client) Audit(ctx context.Context, runID string) ([]core.AuditEntry, error) {
	var entries []core.AuditEntry
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("runID", runID).
		SetResult(&entries).
		SetError(&APIError{}).
		Get("/api/runs/{runID}/audit")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("list audit for run %s: %w", runID, err)
	}
	return entries, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr.Code == "" {
		return &APIError{Status: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	}
	apiErr.Status = resp.StatusCode()
	return apiErr
}

package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reframe/internal/api"
)

// ErrUnavailable is returned when no daemon answers on the configured bind.
var ErrUnavailable = errors.New("daemon API unavailable")

// APIError is a non-2xx reply from the daemon.
type APIError struct {
	Status  int
	Message string
	Kind    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("daemon returned %d (%s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// Client talks to a running daemon over its HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// LogQuery selects log events.
type LogQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	JobID     int64
	Component string
}

// NewClient builds a client for bind ("host:port" or a URL).
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, fmt.Errorf("%w: no bind address configured", ErrUnavailable)
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	if host, port, err := net.SplitHostPort(base.Host); err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		base.Host = net.JoinHostPort("127.0.0.1", port)
	}
	base.Path, base.RawQuery, base.Fragment = "", "", ""
	// No client timeout: follow mode blocks until the caller cancels.
	return &Client{base: base, token: strings.TrimSpace(token), http: &http.Client{}}, nil
}

// Ping reports whether the daemon answers within timeout.
func (c *Client) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := c.Features(ctx)
	var apiErr *APIError
	if err != nil && !errors.Is(err, ErrUnavailable) && !errors.As(err, &apiErr) {
		// Timeouts and non-reframe listeners count as no daemon.
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Features fetches optional capability flags.
func (c *Client) Features(ctx context.Context) (api.FeaturesResponse, error) {
	var out api.FeaturesResponse
	err := c.do(ctx, http.MethodGet, "/api/features", nil, nil, &out)
	return out, err
}

// Jobs lists jobs, optionally filtered by status.
func (c *Client) Jobs(ctx context.Context, statuses []string) ([]api.Job, error) {
	query := url.Values{}
	for _, s := range statuses {
		query.Add("status", s)
	}
	var out api.JobListResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", query, nil, &out)
	return out.Jobs, err
}

// Job fetches one job. Missing jobs yield nil without error.
func (c *Client) Job(ctx context.Context, id int64) (*api.Job, error) {
	var out api.JobResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+strconv.FormatInt(id, 10), nil, nil, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// Submit queues a transform request.
func (c *Client) Submit(ctx context.Context, req api.TransformRequest) (api.Job, error) {
	var out api.JobResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &out)
	return out.Job, err
}

// Retry requeues a failed job.
func (c *Client) Retry(ctx context.Context, id int64) (api.Job, error) {
	var out api.JobResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+strconv.FormatInt(id, 10)+"/retry", nil, nil, &out)
	return out.Job, err
}

// Remove deletes a job that is not in flight.
func (c *Client) Remove(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

// Clear removes finished jobs; scope is "completed", "failed", or "all".
func (c *Client) Clear(ctx context.Context, scope string) (int64, error) {
	var out api.ClearResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/clear", url.Values{"scope": {scope}}, nil, &out)
	return out.Removed, err
}

// Logs fetches a page of log events.
func (c *Client) Logs(ctx context.Context, q LogQuery) (api.LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if q.JobID > 0 {
		values.Set("job", strconv.FormatInt(q.JobID, 10))
	}
	if strings.TrimSpace(q.Component) != "" {
		values.Set("component", strings.TrimSpace(q.Component))
	}
	var out api.LogStreamResponse
	err := c.do(ctx, http.MethodGet, "/api/logs", values, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrUnavailable
	}
	endpoint := *c.base
	endpoint.Path = path
	endpoint.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr *net.OpError
		if errors.As(err, &netErr) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var payload api.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &payload) != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Error, Kind: payload.Kind}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

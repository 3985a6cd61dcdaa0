package evalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"riskwatch/internal/logging"
)

const (
	evaluationsPath = "/api/risk/evaluations"
	triggerPath     = "/api/risk/evaluations/trigger"
)

// ClientOptions parameterise the evaluation API client.
type ClientOptions struct {
	BaseURL        string
	Timeout        time.Duration
	UserAgent      string
	BreakerEnabled bool
}

// Client talks to the risk-evaluation service.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker
}

// NewClient constructs an evaluation API client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")

	c := &Client{
		opts:    opts,
		logger:  logging.WithComponent(logger, "evalapi_client"),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}

	if opts.BreakerEnabled {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "evalapi",
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}

	return c
}

// QueryParams describe one evaluation query.
type QueryParams struct {
	Merchant string
	Interval Interval
	Since    int64
	Until    int64
	Limit    int
	Ensure   bool
	// Now is an optional simulated-time override passed through to the
	// backend as an ISO string.
	Now string
}

// QueryWindows issues the windowed evaluation query.
func (c *Client) QueryWindows(ctx context.Context, p QueryParams) ([]EvaluationWindow, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("evaluation api base url not configured")
	}
	if p.Merchant == "" {
		return nil, fmt.Errorf("merchant key required")
	}

	q := url.Values{}
	q.Set("merchant", p.Merchant)
	q.Set("interval", p.Interval.Token)
	q.Set("since", strconv.FormatInt(p.Since, 10))
	q.Set("until", strconv.FormatInt(p.Until, 10))
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	q.Set("ensure", strconv.FormatBool(p.Ensure))
	if p.Now != "" {
		q.Set("now", p.Now)
	}

	endpoint := c.baseURL + evaluationsPath + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	payload, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var res struct {
		Rows []EvaluationWindow `json:"rows"`
	}
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode evaluation rows: %w", err)
	}
	return res.Rows, nil
}

// TriggerParams describe a materialization request.
type TriggerParams struct {
	Merchant string
	Interval Interval
	Autoseed bool
	// MaxBackfillHours of zero means forward-only materialization; nil asks
	// the backend to pick dynamically.
	MaxBackfillHours *int
	Priority         int
	Since            *int64
	Until            *int64
	Now              string
}

type triggerRequest struct {
	Merchant         string `json:"merchant"`
	Interval         string `json:"interval"`
	Autoseed         bool   `json:"autoseed"`
	MaxBackfillHours *int   `json:"max_backfill_hours,omitempty"`
	Priority         int    `json:"priority"`
	Since            *int64 `json:"since,omitempty"`
	Until            *int64 `json:"until,omitempty"`
	Now              string `json:"now,omitempty"`
}

// Trigger asks the backend to (re)compute evaluation windows. The response
// is an acknowledgement only; computation happens asynchronously.
func (c *Client) Trigger(ctx context.Context, p TriggerParams) error {
	if c.baseURL == "" {
		return fmt.Errorf("evaluation api base url not configured")
	}

	body, err := json.Marshal(triggerRequest{
		Merchant:         p.Merchant,
		Interval:         p.Interval.Token,
		Autoseed:         p.Autoseed,
		MaxBackfillHours: p.MaxBackfillHours,
		Priority:         p.Priority,
		Since:            p.Since,
		Until:            p.Until,
		Now:              p.Now,
	})
	if err != nil {
		return fmt.Errorf("marshal trigger payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+triggerPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	if _, err := c.do(req); err != nil {
		return err
	}

	c.logger.Info().
		Str("merchant", p.Merchant).
		Str("interval", p.Interval.Token).
		Msg("trigger acknowledged")
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "riskwatch/1.0")
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.breaker == nil {
		return c.roundTrip(req)
	}

	payload, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(req)
	})
	if err != nil {
		return nil, err
	}
	return payload.([]byte), nil
}

func (c *Client) roundTrip(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}
	return payload, nil
}

// Package sheets fetches raw match rows from a spreadsheet values API,
// either directly or through a proxy that holds the API key.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/okian/ladder/pkg/metrics"
)

// Fetch modes.
const (
	ModeDirect = "direct"
	ModeProxy  = "proxy"
)

// Endpoint describes where rows come from.
type Endpoint struct {
	Mode          string
	BaseURL       string // direct: values API root, e.g. https://sheets.googleapis.com/v4/spreadsheets
	SpreadsheetID string
	Range         string // e.g. "Match History!A2:F9999"
	APIKey        string
	ProxyURL      string // proxy: full URL returning {"data":{"values":[...]}}
}

// URL returns the request URL for e.
func (e Endpoint) URL() (string, error) {
	switch e.Mode {
	case ModeProxy:
		if e.ProxyURL == "" {
			return "", fmt.Errorf("%w: proxy url is empty", ErrEndpoint)
		}
		return e.ProxyURL, nil
	case ModeDirect, "":
		if e.BaseURL == "" || e.SpreadsheetID == "" || e.Range == "" {
			return "", fmt.Errorf("%w: base url, spreadsheet id and range are required", ErrEndpoint)
		}
		u := strings.TrimRight(e.BaseURL, "/") + "/" + url.PathEscape(e.SpreadsheetID) + "/values/" + url.PathEscape(e.Range)
		if e.APIKey != "" {
			u += "?key=" + url.QueryEscape(e.APIKey)
		}
		return u, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrEndpoint, e.Mode)
	}
}

type valuesPayload struct {
	Values [][]string `json:"values"`
}

type proxyPayload struct {
	Data *valuesPayload `json:"data"`
}

// Client fetches rows over fasthttp. It is safe for concurrent use.
type Client struct {
	endpoint Endpoint
	url      string
	http     *fasthttp.Client

	defaultTimeout time.Duration
	retries        int
	backoffBase    time.Duration
}

// NewClient validates e and builds a client for it.
func NewClient(e Endpoint, opts ...Option) (*Client, error) {
	u, err := e.URL()
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:       e,
		url:            u,
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 4},
		defaultTimeout: 10 * time.Second,
		retries:        2,
		backoffBase:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch returns the raw rows. A payload without values yields no rows.
func (c *Client) Fetch(ctx context.Context) ([][]string, error) {
	start := time.Now()
	body, err := c.get(ctx)
	metrics.RecordFetchLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordFetchError(fetchReason(err))
		return nil, err
	}

	rows, err := c.decode(body)
	if err != nil {
		metrics.RecordFetchError("decode")
		return nil, err
	}
	return rows, nil
}

func (c *Client) decode(body []byte) ([][]string, error) {
	if c.endpoint.Mode == ModeProxy {
		var p proxyPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		if p.Data == nil {
			return nil, fmt.Errorf("%w: missing data envelope", ErrDecode)
		}
		return p.Data.Values, nil
	}

	var v valuesPayload
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return v.Values, nil
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.url)
	req.Header.Set("Accept", "application/json")

	attempts := c.retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRequest, err)
		}

		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("%w: %w", ErrRequest, err)
		} else {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return append([]byte(nil), resp.Body()...), nil
			}
			lastErr = fmt.Errorf("%w: status=%d body=%s", ErrStatus, status, truncate(string(resp.Body()), 512))
			if !shouldRetryStatus(status) {
				return nil, lastErr
			}
		}

		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, c.backoffDuration(attempt)); sleepErr != nil {
			return nil, lastErr
		}
		resp.Reset()
	}

	if lastErr == nil {
		lastErr = ErrRequest
	}
	return nil, lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (c *Client) backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * c.backoffBase
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusTooManyRequests,
		fasthttp.StatusInternalServerError,
		fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable,
		fasthttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func fetchReason(err error) string {
	switch {
	case errors.Is(err, ErrStatus):
		return "status"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "transport"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package evalclient

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
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"snowdiff_service/internal/domain/model"
	"snowdiff_service/internal/graph"
	"snowdiff_service/internal/log"
	"snowdiff_service/internal/metrics"
)

const (
	requestStats  = "stats"
	requestCount  = "count"
	requestMap    = "map"
	requestExport = "export"
)

// HTTPClient talks to the remote deferred-execution service. It holds no per-analysis
// state and is safe for concurrent use.
type HTTPClient struct {
	endpoint  string
	token     string
	client    *http.Client
	retryWait time.Duration
	metrics   *metrics.Metrics
}

type Option func(*HTTPClient)

// WithToken sets the bearer token of an already authenticated session.
func WithToken(token string) Option {
	return func(c *HTTPClient) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.client = hc }
}

// WithRetryWait sets the initial backoff before the single retry.
func WithRetryWait(d time.Duration) Option {
	return func(c *HTTPClient) { c.retryWait = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *HTTPClient) { c.metrics = m }
}

func NewHTTPClient(endpoint string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		retryWait: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type visualization struct {
	Palette []string `json:"palette"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
}

func toVisualization(s *model.LayerStyle) *visualization {
	if s == nil {
		return nil
	}
	return &visualization{Palette: s.Palette, Min: s.Min, Max: s.Max}
}

type statsRequest struct {
	Expression *graph.Node  `json:"expression"`
	Region     model.Region `json:"region"`
	Scale      float64      `json:"scale"`
}

type countRequest struct {
	Expression *graph.Node `json:"expression"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

type mapRequest struct {
	Expression    *graph.Node    `json:"expression"`
	Visualization *visualization `json:"visualization"`
}

type exportRequest struct {
	Expression    *graph.Node    `json:"expression"`
	Region        model.Region   `json:"region"`
	Scale         float64        `json:"scale"`
	MaxPixels     int64          `json:"max_pixels"`
	CRS           string         `json:"crs"`
	Format        string         `json:"format"`
	Visualization *visualization `json:"visualization,omitempty"`
}

type exportResponse struct {
	DownloadURL string `json:"download_url"`
}

// Stats asks the service to reduce expr over a region.
func (c *HTTPClient) Stats(ctx context.Context, expr *graph.Node, opts model.StatsOptions) (model.RasterStats, error) {
	var stats model.RasterStats
	err := c.call(ctx, requestStats, "/v1/stats", statsRequest{
		Expression: expr,
		Region:     opts.Region,
		Scale:      opts.Scale,
	}, &stats)
	return stats, err
}

// Count asks the service for the size of a collection expression.
func (c *HTTPClient) Count(ctx context.Context, expr *graph.Node) (int64, error) {
	var resp countResponse
	err := c.call(ctx, requestCount, "/v1/count", countRequest{Expression: expr}, &resp)
	return resp.Count, err
}

// MapID registers expr with a visualization and returns its tile template.
func (c *HTTPClient) MapID(ctx context.Context, expr *graph.Node, style model.LayerStyle) (model.TileSource, error) {
	var tiles model.TileSource
	err := c.call(ctx, requestMap, "/v1/maps", mapRequest{
		Expression:    expr,
		Visualization: toVisualization(&style),
	}, &tiles)
	if err == nil && tiles.URLFormat == "" {
		err = &model.RemoteError{Request: requestMap, Err: errors.New("response carries no tile url")}
	}
	return tiles, err
}

// DownloadURL requests a single-image export and returns where to fetch it.
func (c *HTTPClient) DownloadURL(ctx context.Context, expr *graph.Node, opts model.ExportOptions) (string, error) {
	var resp exportResponse
	err := c.call(ctx, requestExport, "/v1/exports", exportRequest{
		Expression:    expr,
		Region:        opts.Region,
		Scale:         opts.Scale,
		MaxPixels:     opts.MaxPixels,
		CRS:           opts.CRS,
		Format:        opts.Format,
		Visualization: toVisualization(opts.Visualize),
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.DownloadURL == "" {
		return "", &model.RemoteError{Request: requestExport, Err: errors.New("response carries no download url")}
	}
	return resp.DownloadURL, nil
}

// call posts body and decodes the answer into out, retrying once on transient failures.
func (c *HTTPClient) call(ctx context.Context, kind, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", kind, err)
	}

	start := time.Now()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	policy := backoff.WithContext(backoff.WithMaxRetries(b, 1), ctx)

	op := func() error {
		err := c.do(ctx, kind, path, payload, out)
		var re *model.RemoteError
		if err != nil && (!errors.As(err, &re) || !re.Transient) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.metrics.IncrementRetry(kind)
		log.Warnw("retrying evaluation request", "request", kind, "wait", wait, "error", err)
	}

	err = backoff.RetryNotify(op, policy, notify)
	c.metrics.ObserveBackendRequest(kind, time.Since(start), err)
	return err
}

func (c *HTTPClient) do(ctx context.Context, kind, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &model.RemoteError{Request: kind, Transient: isTransientNetErr(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(kind, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &model.RemoteError{Request: kind, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func statusError(kind string, code int, msg string) error {
	if msg == "" {
		msg = http.StatusText(code)
	}
	var cause error = errors.New(msg)
	if kind == requestExport && (code == http.StatusRequestEntityTooLarge || strings.Contains(msg, "must be less than or equal to")) {
		cause = fmt.Errorf("%w: %s", model.ErrExportTooLarge, msg)
	}
	return &model.RemoteError{
		Request:    kind,
		StatusCode: code,
		Transient:  code == http.StatusTooManyRequests || code >= http.StatusInternalServerError,
		Err:        cause,
	}
}

// isTransientNetErr treats timeouts, dropped connections and refused dials as retryable.
// Configuration failures such as a bad scheme, DNS misses and TLS errors are not, and
// neither is a cancellation that came from the caller.
func isTransientNetErr(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial" || opErr.Op == "read"
	}
	return false
}

// Package overpass downloads raw buildings, places and roads for a region
// from an Overpass API endpoint.
package overpass

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	op "github.com/serjvanilla/go-overpass"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/demand-cli/internal/geometry"
	"github.com/sells-group/demand-cli/internal/resilience"
)

// DefaultEndpoint is the public Overpass interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// Config configures a Client.
type Config struct {
	Endpoint string
	// Timeout bounds one HTTP request and is passed to Overpass as the
	// server-side query timeout.
	Timeout     time.Duration
	MaxParallel int
	// MinInterval is the minimum spacing between queries.
	MinInterval time.Duration
	Backoff     resilience.Backoff
	// Breaker is optional and may be shared between clients.
	Breaker *resilience.Breaker
}

// Client runs paced, retried Overpass queries.
type Client struct {
	api     op.Client
	limiter *rate.Limiter
	backoff resilience.Backoff
	breaker *resilience.Breaker
	timeout time.Duration
	log     *zap.Logger
}

// New creates a Client. Zero config values fall back to defaults.
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	if cfg.Backoff.OnRetry == nil {
		cfg.Backoff.OnRetry = resilience.LogRetries("overpass query")
	}

	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: statusTransport{next: http.DefaultTransport},
	}
	return &Client{
		api:     op.NewWithSettings(cfg.Endpoint, cfg.MaxParallel, httpClient),
		limiter: rate.NewLimiter(limit, 1),
		backoff: cfg.Backoff,
		breaker: cfg.Breaker,
		timeout: cfg.Timeout,
		log:     zap.L().With(zap.String("component", "overpass")),
	}
}

// query runs an Overpass QL body against bbox. The body uses {{bbox}} where
// the bounding filter goes.
func (c *Client) query(ctx context.Context, name, body string, bbox geometry.BBox) (op.Result, error) {
	q := fmt.Sprintf("[out:json][timeout:%d];\n(\n%s\n);\nout body;\n>;\nout skel qt;",
		int(c.timeout.Seconds()), strings.ReplaceAll(body, "{{bbox}}", qlBBox(bbox)))

	start := time.Now()
	res, err := resilience.Do(ctx, c.backoff, func(ctx context.Context) (op.Result, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return op.Result{}, err
		}
		if c.breaker == nil {
			return c.api.Query(q)
		}
		return resilience.Call(ctx, c.breaker, func(context.Context) (op.Result, error) {
			return c.api.Query(q)
		})
	})
	if err != nil {
		return op.Result{}, err
	}
	c.log.Debug("overpass: query complete",
		zap.String("query", name),
		zap.Int("nodes", len(res.Nodes)),
		zap.Int("ways", len(res.Ways)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// qlBBox formats bbox in Overpass order: south, west, north, east.
func qlBBox(b geometry.BBox) string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// statusTransport turns retryable HTTP statuses into transient errors so the
// backoff loop sees them regardless of how the response is reported upstream.
type statusTransport struct {
	next http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resilience.IsTransientStatus(resp.StatusCode) {
		resp.Body.Close()
		code := resp.StatusCode
		return nil, resilience.Transient(
			eris.Errorf("overpass: %d %s", code, strings.ToLower(http.StatusText(code))), code)
	}
	return resp, nil
}

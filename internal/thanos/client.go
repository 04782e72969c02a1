// Package thanos queries a Thanos or Prometheus HTTP API for indicator data.
package thanos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	promconfig "github.com/prometheus/common/config"
	"github.com/prometheus/common/model"
	"golang.org/x/time/rate"

	"github.com/donaldgifford/slo-reporter/internal/metrics"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// ErrUnexpectedResult is returned when the backend answers with a result
// type that cannot be turned into samples.
var ErrUnexpectedResult = errors.New("unexpected query result type")

// pingExpr is evaluated by Ping. Any healthy PromQL engine answers it.
const pingExpr = "vector(1)"

// Querier runs PromQL expressions and returns the samples of the first
// series, ordered by time.
type Querier interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, expr string, at time.Time) ([]float64, error)
	QueryRange(ctx context.Context, expr string, w domain.Window) ([]float64, error)
}

// Client implements Querier against the Prometheus HTTP API.
type Client struct {
	api     v1.API
	limiter *rate.Limiter
	timeout time.Duration
	log     *slog.Logger
}

type clientOptions struct {
	token     string
	insecure  bool
	timeout   time.Duration
	perSecond float64
	burst     int
	transport http.RoundTripper
	log       *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(o *clientOptions) {
		o.token = token
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify(skip bool) Option {
	return func(o *clientOptions) {
		o.insecure = skip
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithRateLimit caps the request rate sent to the backend.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *clientOptions) {
		o.perSecond = perSecond
		o.burst = burst
	}
}

// WithTransport replaces the base HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) {
		o.transport = rt
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) {
		o.log = l
	}
}

// NewClient creates a Client for the API at address.
func NewClient(address string, opts ...Option) (*Client, error) {
	o := &clientOptions{
		timeout:   30 * time.Second,
		perSecond: 5,
		burst:     10,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	rt := o.transport
	if rt == nil {
		tlsCfg, err := promconfig.NewTLSConfig(&promconfig.TLSConfig{
			InsecureSkipVerify: o.insecure, //nolint:gosec // opt-in for self-signed cluster endpoints
		})
		if err != nil {
			return nil, fmt.Errorf("building TLS config: %w", err)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsCfg
		rt = transport
	}
	if o.token != "" {
		rt = promconfig.NewAuthorizationCredentialsRoundTripper(
			"Bearer",
			promconfig.NewInlineSecret(o.token),
			rt,
		)
	}

	client, err := api.NewClient(api.Config{
		Address:      address,
		RoundTripper: rt,
	})
	if err != nil {
		return nil, fmt.Errorf("creating metrics backend client: %w", err)
	}

	return &Client{
		api:     v1.NewAPI(client),
		limiter: rate.NewLimiter(rate.Limit(o.perSecond), o.burst),
		timeout: o.timeout,
		log:     o.log,
	}, nil
}

// Ping evaluates a constant expression to confirm the backend answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.Query(ctx, pingExpr, time.Now()); err != nil {
		return fmt.Errorf("pinging metrics backend: %w", err)
	}
	return nil
}

// Query evaluates expr at a single instant.
func (c *Client) Query(ctx context.Context, expr string, at time.Time) ([]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, warnings, err := c.api.Query(ctx, expr, at)
	metrics.BackendRequestDuration.WithLabelValues("instant").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("instant query %q: %w", expr, err)
	}
	c.logWarnings(expr, warnings)

	return samples(result)
}

// QueryRange evaluates expr over the window at the window step.
func (c *Client) QueryRange(ctx context.Context, expr string, w domain.Window) ([]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, warnings, err := c.api.QueryRange(ctx, expr, v1.Range{
		Start: w.Start,
		End:   w.End,
		Step:  w.Step,
	})
	metrics.BackendRequestDuration.WithLabelValues("range").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("range query %q: %w", expr, err)
	}
	c.logWarnings(expr, warnings)

	return samples(result)
}

func (c *Client) logWarnings(expr string, warnings v1.Warnings) {
	for _, w := range warnings {
		c.log.Warn("metrics backend warning", "query", expr, "warning", w)
	}
}

// samples flattens the first series of a result into its values.
func samples(v model.Value) ([]float64, error) {
	switch r := v.(type) {
	case model.Matrix:
		if len(r) == 0 {
			return nil, nil
		}
		out := make([]float64, 0, len(r[0].Values))
		for _, p := range r[0].Values {
			out = append(out, float64(p.Value))
		}
		return out, nil
	case model.Vector:
		if len(r) == 0 {
			return nil, nil
		}
		return []float64{float64(r[0].Value)}, nil
	case *model.Scalar:
		return []float64{float64(r.Value)}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedResult, v)
	}
}

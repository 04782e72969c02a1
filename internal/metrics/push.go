package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// SLIValueName is the gauge pushed for every indicator value.
const SLIValueName = "thoth_sli_value"

// Publisher re-exposes computed indicator values.
type Publisher interface {
	Publish(ctx context.Context, samples []domain.Sample) error
}

// Pusher publishes indicator values to a Prometheus Pushgateway.
type Pusher struct {
	url         string
	job         string
	environment string
	client      *http.Client
	log         *slog.Logger
}

// PusherOption configures a Pusher.
type PusherOption func(*Pusher)

// WithPushClient sets the HTTP client used to reach the Pushgateway.
func WithPushClient(c *http.Client) PusherOption {
	return func(p *Pusher) {
		p.client = c
	}
}

// WithPushLogger sets a custom logger.
func WithPushLogger(l *slog.Logger) PusherOption {
	return func(p *Pusher) {
		p.log = l
	}
}

// NewPusher creates a Pusher for the gateway at url. Values are grouped under
// job and an environment label.
func NewPusher(url, job, environment string, opts ...PusherOption) *Pusher {
	p := &Pusher{
		url:         url,
		job:         job,
		environment: environment,
		client:      http.DefaultClient,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish replaces the job's group on the gateway with the given samples.
// Unavailable samples are skipped.
func (p *Pusher) Publish(ctx context.Context, samples []domain.Sample) error {
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: SLIValueName,
		Help: "Thoth service level indicator value for the evaluation window.",
	}, []string{"sli_class", "sli_name"})
	reg.MustRegister(gauge)

	pushed := 0
	for _, s := range samples {
		v, ok := s.Value.Float()
		if !ok {
			continue
		}
		gauge.WithLabelValues(s.Class, s.Name).Set(v)
		pushed++
	}
	if pushed == 0 {
		p.log.Debug("nothing to push")
		return nil
	}

	err := push.New(p.url, p.job).
		Gatherer(reg).
		Grouping("environment", p.environment).
		Client(p.client).
		PushContext(ctx)
	if err != nil {
		PushFailuresTotal.Inc()
		return fmt.Errorf("pushing to %s: %w", p.url, err)
	}

	p.log.Debug("pushed indicator values", "count", pushed, "skipped", len(samples)-pushed)
	return nil
}

// NoOpPublisher discards all samples. Used when no Pushgateway is configured.
type NoOpPublisher struct{}

// Publish does nothing.
func (NoOpPublisher) Publish(_ context.Context, _ []domain.Sample) error {
	return nil
}

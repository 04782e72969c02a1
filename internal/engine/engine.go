// Package engine runs the reporting pipeline: collect every indicator class
// from the metrics backend, persist snapshots, publish values, render the
// report and deliver it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/donaldgifford/slo-reporter/internal/metrics"
	"github.com/donaldgifford/slo-reporter/internal/notify"
	"github.com/donaldgifford/slo-reporter/internal/report"
	"github.com/donaldgifford/slo-reporter/internal/sli"
	"github.com/donaldgifford/slo-reporter/internal/store"
	"github.com/donaldgifford/slo-reporter/internal/thanos"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

var (
	// ErrBackendUnreachable is returned when the pre-flight ping fails.
	ErrBackendUnreachable = errors.New("metrics backend unreachable")
	// ErrRunInProgress is returned when Run is called while a run is active.
	ErrRunInProgress = errors.New("a run is already in progress")

	errNotFinite = errors.New("reduced value is not finite")
)

// Delivery describes what happened to the rendered report.
type Delivery string

// Delivery outcomes.
const (
	DeliveryEmail   Delivery = "email"
	DeliveryFile    Delivery = "file"
	DeliverySkipped Delivery = "skipped"
	DeliveryNone    Delivery = "none"
)

// ClassResult is the outcome of one indicator class in a run.
type ClassResult struct {
	Name   string        `json:"name"`
	Values domain.Values `json:"values"`
	// Failed lists the queries whose values are unavailable or, for an
	// adviser digest, the daily tables that could not be read.
	Failed []string `json:"failed,omitempty"`
	// HasPrior reports whether a prior snapshot was found.
	HasPrior bool `json:"has_prior"`
}

// RunResult summarizes a completed run.
type RunResult struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Window     domain.Window `json:"window"`
	DryRun     bool          `json:"dry_run"`
	StoreOnly  bool          `json:"store_only"`
	Classes    []ClassResult `json:"classes"`
	Delivery   Delivery      `json:"delivery"`
}

// Engine orchestrates a report run.
type Engine struct {
	querier   thanos.Querier
	registry  sli.Registry
	persister *Persister
	publisher metrics.Publisher
	mailer    notify.Mailer
	log       *slog.Logger

	now         func() time.Time
	days        int
	step        time.Duration
	dryRun      bool
	storeOnly   bool
	sendsOn     func(time.Weekday) bool
	subject     string
	environment string
	grafanaURL  string
	instance    string

	// running guards Run; stateMu guards the fields below it.
	running    sync.Mutex
	stateMu    sync.RWMutex
	latest     *RunResult
	lastReport []byte
}

// NewEngine creates a new Engine with injected dependencies. The persister
// may be nil when runs never store snapshots (dry-run).
func NewEngine(
	q thanos.Querier,
	registry sli.Registry,
	p *Persister,
	pub metrics.Publisher,
	m notify.Mailer,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		querier:   q,
		registry:  registry,
		persister: p,
		publisher: pub,
		mailer:    m,
		log:       slog.Default(),
		now:       time.Now,
		days:      7,
		step:      time.Hour,
		sendsOn:   func(d time.Weekday) bool { return d == time.Monday },
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.publisher == nil {
		eng.publisher = metrics.NoOpPublisher{}
	}
	return eng
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithClock replaces the time source used to build the window.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithWindow sets the evaluation window length and range query step.
func WithWindow(days int, step time.Duration) EngineOption {
	return func(e *Engine) {
		e.days = days
		e.step = step
	}
}

// WithDryRun renders the report locally and skips storage and publishing.
func WithDryRun(on bool) EngineOption {
	return func(e *Engine) {
		e.dryRun = on
	}
}

// WithStoreOnly stops each run after persisting and publishing.
func WithStoreOnly(on bool) EngineOption {
	return func(e *Engine) {
		e.storeOnly = on
	}
}

// WithSendDay sets the predicate deciding on which weekdays the report is
// mailed.
func WithSendDay(fn func(time.Weekday) bool) EngineOption {
	return func(e *Engine) {
		e.sendsOn = fn
	}
}

// WithSubject sets the mail subject. The report title is used when empty.
func WithSubject(s string) EngineOption {
	return func(e *Engine) {
		e.subject = s
	}
}

// WithEnvironment sets the deployment environment shown in the report.
func WithEnvironment(env string) EngineOption {
	return func(e *Engine) {
		e.environment = env
	}
}

// WithReferences sets the Grafana base URL and exporter instance used for
// the report's dashboard links.
func WithReferences(grafanaURL, instance string) EngineOption {
	return func(e *Engine) {
		e.grafanaURL = grafanaURL
		e.instance = instance
	}
}

// Registry returns the indicator classes collected by each run.
func (eng *Engine) Registry() sli.Registry {
	return eng.registry
}

// Latest returns the result of the last completed run, or nil.
func (eng *Engine) Latest() *RunResult {
	eng.stateMu.RLock()
	defer eng.stateMu.RUnlock()
	return eng.latest
}

// LastReport returns the last rendered HTML document, or nil.
func (eng *Engine) LastReport() []byte {
	eng.stateMu.RLock()
	defer eng.stateMu.RUnlock()
	return eng.lastReport
}

// Run executes one report run. Only a failed pre-flight ping, a canceled
// context or a failed delivery return an error; everything else degrades to
// unavailable values and log lines.
func (eng *Engine) Run(ctx context.Context) (*RunResult, error) {
	if !eng.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer eng.running.Unlock()

	started := eng.now()
	defer func() {
		metrics.RunDuration.Observe(eng.now().Sub(started).Seconds())
	}()

	result := &RunResult{
		ID:        uuid.NewString(),
		StartedAt: started,
		Window:    domain.NewWindow(started, eng.days, eng.step),
		DryRun:    eng.dryRun,
		StoreOnly: eng.storeOnly,
		Delivery:  DeliveryNone,
	}
	log := eng.log.With("run_id", result.ID)

	if err := eng.querier.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}
	log.Info("run started",
		"start", result.Window.Start.Format(time.RFC3339),
		"end", result.Window.End.Format(time.RFC3339),
		"classes", len(eng.registry),
		"dry_run", eng.dryRun,
		"store_only", eng.storeOnly,
	)

	var samples []domain.Sample
	sections := make([]report.Section, 0, len(eng.registry))

	for _, ind := range eng.registry {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if d, ok := ind.(sli.Digest); ok {
			values, section, skipped := eng.digest(ctx, log, d, result.Window.End)
			sections = append(sections, section)
			result.Classes = append(result.Classes, ClassResult{Name: d.Name(), Values: values, Failed: skipped})
			continue
		}

		raw, failed := eng.collect(ctx, log, ind, result.Window)
		values := ind.Evaluate(raw)

		var prior *domain.Row
		if !eng.dryRun && eng.persister != nil {
			var err error
			prior, err = eng.persister.Prior(ctx, ind, result.Window.PriorDate())
			if err != nil {
				log.Warn("reading prior snapshot", "class", ind.Name(), "error", err)
				prior = nil
			}

			row := ind.ToRow(values, prior, result.Window.End)
			if err := eng.persister.Store(ctx, ind, &row); err != nil {
				log.Error("storing snapshot", "class", ind.Name(), "error", err)
			}
		}

		for _, q := range ind.Queries() {
			samples = append(samples, domain.Sample{Class: ind.Name(), Name: q.Name, Value: raw.Get(q.Name)})
		}
		sections = append(sections, ind.Render(values, prior))
		result.Classes = append(result.Classes, ClassResult{
			Name:     ind.Name(),
			Values:   values,
			Failed:   failed,
			HasPrior: prior != nil,
		})
	}

	if !eng.dryRun {
		if err := eng.publisher.Publish(ctx, samples); err != nil {
			log.Error("publishing indicator values", "error", err)
		}
	}

	if eng.storeOnly {
		log.Info("store only, skipping report")
		return eng.finish(result, true), nil
	}

	doc := &report.Document{
		Environment: eng.environment,
		Window:      result.Window,
		Sections:    sections,
		References:  report.References(eng.grafanaURL, eng.environment, eng.instance, result.Window),
		GeneratedAt: eng.now(),
	}
	html, err := report.RenderDocument(doc)
	if err != nil {
		return nil, err
	}
	eng.stateMu.Lock()
	eng.lastReport = html
	eng.stateMu.Unlock()

	delivery, err := eng.deliver(ctx, log, doc, html)
	result.Delivery = delivery
	if err != nil {
		return eng.finish(result, false), err
	}
	return eng.finish(result, true), nil
}

// digest summarizes the daily tables of d. Dry-run reads nothing and renders
// an empty section.
func (eng *Engine) digest(
	ctx context.Context,
	log *slog.Logger,
	d sli.Digest,
	end time.Time,
) (domain.Values, report.Section, []string) {
	var (
		records []store.Record
		skipped []string
	)
	if !eng.dryRun && eng.persister != nil {
		records, skipped = eng.persister.Daily(ctx, d, end)
	}
	values, section := d.Summarize(records)
	log.Debug("digest summarized",
		"class", d.Name(),
		"records", len(records),
		"skipped_days", len(skipped),
	)
	return values, section, skipped
}

func (eng *Engine) deliver(ctx context.Context, log *slog.Logger, doc *report.Document, html []byte) (Delivery, error) {
	msg := &notify.Message{
		Subject: eng.subject,
		HTML:    html,
		Date:    doc.Window.End,
	}
	if msg.Subject == "" {
		msg.Subject = doc.Title()
	}

	if eng.dryRun {
		if err := eng.mailer.Send(ctx, msg); err != nil {
			return DeliveryFile, fmt.Errorf("writing report: %w", err)
		}
		return DeliveryFile, nil
	}

	day := doc.Window.End.Weekday()
	if !eng.sendsOn(day) {
		log.Info("not a send day, skipping email", "weekday", day.String())
		return DeliverySkipped, nil
	}
	if err := eng.mailer.Send(ctx, msg); err != nil {
		return DeliveryEmail, fmt.Errorf("delivering report: %w", err)
	}
	log.Info("report sent", "subject", msg.Subject)
	return DeliveryEmail, nil
}

func (eng *Engine) finish(result *RunResult, ok bool) *RunResult {
	result.FinishedAt = eng.now()
	if ok {
		metrics.LastSuccessfulRun.Set(float64(result.FinishedAt.Unix()))
	}

	eng.stateMu.Lock()
	eng.latest = result
	eng.stateMu.Unlock()

	eng.log.Info("run finished",
		"run_id", result.ID,
		"delivery", result.Delivery,
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)
	return result
}

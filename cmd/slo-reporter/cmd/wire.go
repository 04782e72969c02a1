package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/donaldgifford/slo-reporter/internal/config"
	"github.com/donaldgifford/slo-reporter/internal/engine"
	"github.com/donaldgifford/slo-reporter/internal/metrics"
	"github.com/donaldgifford/slo-reporter/internal/notify"
	"github.com/donaldgifford/slo-reporter/internal/sli"
	"github.com/donaldgifford/slo-reporter/internal/store"
	"github.com/donaldgifford/slo-reporter/internal/thanos"
)

// components holds everything a run needs, built from the configuration.
type components struct {
	querier *thanos.Client
	engine  *engine.Engine
}

// buildOptions are command line choices that do not live in the config file.
type buildOptions struct {
	classes []string
	open    bool
}

func buildComponents(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	opts buildOptions,
) (*components, error) {
	querier, err := buildQuerier(cfg, log)
	if err != nil {
		return nil, err
	}

	registry, err := sli.NewRegistry(sli.ParamsFromConfig(cfg)).Select(opts.classes)
	if err != nil {
		return nil, fmt.Errorf("selecting indicator classes: %w", err)
	}

	persister, err := buildPersister(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	eng := engine.NewEngine(
		querier,
		registry,
		persister,
		buildPublisher(cfg, log),
		buildMailer(cfg, log, opts.open),
		engine.WithLogger(log),
		engine.WithWindow(cfg.Window.Days, cfg.Window.Step),
		engine.WithDryRun(bool(cfg.DryRun)),
		engine.WithStoreOnly(bool(cfg.StoreOnly)),
		engine.WithSendDay(cfg.Email.SendsOn),
		engine.WithSubject(cfg.Email.Subject),
		engine.WithEnvironment(cfg.Environment),
		engine.WithReferences(cfg.Report.GrafanaURL, cfg.Instances.MetricsExporter),
	)

	return &components{querier: querier, engine: eng}, nil
}

func buildQuerier(cfg *config.Config, log *slog.Logger) (*thanos.Client, error) {
	mb := cfg.MetricsBackend
	c, err := thanos.NewClient(mb.URL,
		thanos.WithToken(mb.Token),
		thanos.WithInsecureSkipVerify(bool(mb.InsecureSkipVerify)),
		thanos.WithTimeout(mb.Timeout),
		thanos.WithRateLimit(mb.RateLimit.PerSecond, mb.RateLimit.Burst),
		thanos.WithLogger(log.With("component", "thanos")),
	)
	if err != nil {
		return nil, fmt.Errorf("creating metrics backend client: %w", err)
	}
	return c, nil
}

// buildPersister returns nil in dry-run mode, which never touches storage.
func buildPersister(ctx context.Context, cfg *config.Config, log *slog.Logger) (*engine.Persister, error) {
	if cfg.DryRun {
		return nil, nil
	}

	storeLog := log.With("component", "store")
	private, err := store.NewS3Store(ctx, &cfg.Storage.Private, store.WithLogger(storeLog))
	if err != nil {
		return nil, fmt.Errorf("creating private store: %w", err)
	}

	opts := []engine.PersisterOption{engine.WithPersisterLogger(storeLog)}
	if cfg.Storage.Public.Enabled() {
		public, err := store.NewS3Store(ctx, cfg.Storage.Public, store.WithLogger(storeLog))
		if err != nil {
			return nil, fmt.Errorf("creating public store: %w", err)
		}
		opts = append(opts, engine.WithPublicStore(public))
	}

	return engine.NewPersister(private, opts...), nil
}

func buildPublisher(cfg *config.Config, log *slog.Logger) metrics.Publisher {
	if cfg.Pushgateway.URL == "" {
		log.Info("pushgateway not configured, indicator values will not be pushed")
		return metrics.NoOpPublisher{}
	}
	return metrics.NewPusher(
		cfg.Pushgateway.URL,
		cfg.Pushgateway.Job,
		cfg.Environment,
		metrics.WithPushLogger(log.With("component", "pushgateway")),
	)
}

func buildMailer(cfg *config.Config, log *slog.Logger, open bool) notify.Mailer {
	switch {
	case bool(cfg.DryRun):
		return notify.NewFileMailer(cfg.Report.OutputDir,
			notify.WithOpenBrowser(open || bool(cfg.Report.Open)),
			notify.WithFileLogger(log),
		)
	case bool(cfg.StoreOnly):
		return notify.NewNoOpMailer(log)
	default:
		return notify.NewSMTPMailer(&cfg.Email, notify.WithLogger(log.With("component", "smtp")))
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/slo-reporter/internal/api/handlers"
	"github.com/donaldgifford/slo-reporter/internal/api/middleware"
	"github.com/donaldgifford/slo-reporter/internal/config"
	"github.com/donaldgifford/slo-reporter/internal/engine"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var classes []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the report scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := setupLogger(cfg)
			return runServe(cmd.Context(), cfg, log, classes)
		},
	}

	cmd.Flags().StringSliceVar(&classes, "class", nil, "only run the named indicator classes (repeatable)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger, classes []string) error {
	c, err := buildComponents(ctx, cfg, log, buildOptions{classes: classes})
	if err != nil {
		return err
	}

	scheduler, err := engine.NewScheduler(c.engine, cfg.Schedule.Cron, log.With("component", "scheduler"))
	if err != nil {
		return fmt.Errorf("creating scheduler for %q: %w", cfg.Schedule.Cron, err)
	}

	e := newServer(cfg, log, c)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server",
		"addr", addr,
		"schedule", cfg.Schedule.Cron,
		"dry_run", bool(cfg.DryRun),
		"store_only", bool(cfg.StoreOnly),
	)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	}()
	scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn("report run still active at shutdown")
	}

	log.Info("server stopped")
	return nil
}

// newServer builds the Echo instance with the probe, metrics, report and API
// routes.
func newServer(cfg *config.Config, log *slog.Logger, c *components) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	e.Use(middleware.Recovery(log))
	e.Use(middleware.RequestLog(log))
	e.Use(middleware.Metrics())
	// A triggered run answers only when the report is out.
	e.Use(middleware.LiftWriteDeadline(http.MethodPost + " " + handlers.RunsPath))

	health := handlers.NewHealthHandler(c.querier)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/report", handlers.NewReportHandler(c.engine).Report)

	api := humaecho.New(e, huma.DefaultConfig("slo-reporter", Version))
	handlers.RegisterRunRoutes(api, handlers.NewRunsHandler(c.engine))
	handlers.RegisterIndicatorRoutes(api, handlers.NewIndicatorsHandler(c.engine.Registry()))

	return e
}

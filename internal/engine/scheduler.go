package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/donaldgifford/slo-reporter/internal/metrics"
)

// Scheduler runs the engine on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	engine  *Engine
	log     *slog.Logger
	entryID cron.EntryID
}

// NewScheduler creates a Scheduler running eng at every tick of spec, a
// standard five field cron expression. A tick that fires while the previous
// run is still going is skipped.
func NewScheduler(eng *Engine, spec string, log *slog.Logger) (*Scheduler, error) {
	cl := cronLogger{log: log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))

	s := &Scheduler{
		cron:   c,
		engine: eng,
		log:    log,
	}

	id, err := c.AddFunc(spec, s.run)
	if err != nil {
		return nil, err
	}
	s.entryID = id

	return s, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
	s.SyncNextRunTimestamp()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// SyncNextRunTimestamp exports the next scheduled run time.
func (s *Scheduler) SyncNextRunTimestamp() {
	if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
		metrics.NextRunTimestamp.Set(float64(next.Unix()))
	}
}

func (s *Scheduler) run() {
	defer s.SyncNextRunTimestamp()

	ctx := context.Background()
	s.log.Info("scheduled run starting")
	if _, err := s.engine.Run(ctx); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.log.Warn("scheduled run skipped, another run is in progress")
			return
		}
		s.log.Error("scheduled run failed", "error", err)
	}
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

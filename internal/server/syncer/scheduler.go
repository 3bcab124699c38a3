package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/logging"
	"github.com/boleyla/panel/internal/server/models"
	"github.com/robfig/cron/v3"
)

// Runner is what the scheduler triggers.
type Runner interface {
	Run(ctx context.Context) (*models.SyncResult, error)
}

// Scheduler triggers Runner on a cron schedule. A tick that arrives while the
// previous one is still running is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler accepts standard five-field expressions and descriptors such
// as "@hourly" or "@every 10m".
func NewScheduler(schedule string, r Runner, l logging.Logger) (*Scheduler, error) {
	l = l.With("module", "sync_scheduler")
	s := &Scheduler{runner: r, logger: l}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.cron = cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithLogger(cronLogger{l}),
		cron.WithChain(cron.Recover(cronLogger{l}), cron.SkipIfStillRunning(cronLogger{l})),
	)
	if _, err := s.cron.AddFunc(schedule, func() { s.tick(s.ctx) }); err != nil {
		s.cancel()
		return nil, fmt.Errorf("%w: sync schedule %q: %w", common.ErrorInvalidArgument, schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(s.ctx, "sync scheduler started", "next", s.cron.Entries()[0].Next)
}

// Stop cancels a running sync and waits for it to return, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.runner.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorSyncInProgress):
		s.logger.Info(ctx, "scheduled sync skipped, another run is in progress")
	default:
		s.logger.Warn(ctx, "scheduled sync failed", "error", err)
	}
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct{ l logging.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(context.Background(), msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(context.Background(), msg, append(keysAndValues, "error", err)...)
}

// Package server assembles the panel daemon: storage, traffic services, the
// proxy config syncer, and the admin gRPC and health/metrics HTTP listeners.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/boleyla/panel/internal/logging"
	"github.com/boleyla/panel/internal/server/archive"
	"github.com/boleyla/panel/internal/server/config"
	"github.com/boleyla/panel/internal/server/httpapi"
	"github.com/boleyla/panel/internal/server/repositories/repomanager"
	"github.com/boleyla/panel/internal/server/services"
	"github.com/boleyla/panel/internal/server/syncer"
	"github.com/boleyla/panel/internal/server/xray"
	"github.com/coder/quartz"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/boleyla/panel/internal/server/grpc"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	logCloser io.Closer
	db        *sql.DB
	registry  *prometheus.Registry

	accountService *services.AccountService
	historyService *services.HistoryService
	syncer         *syncer.Syncer
	scheduler      *syncer.Scheduler
}

func NewApp(c *config.Config) (app *App, err error) {
	logger, logCloser, err := logging.New(logging.Options{
		Level:      c.LogLevel,
		File:       c.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app = &App{config: c, logger: logger, logCloser: logCloser}
	defer func() {
		if err != nil {
			_ = app.close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	app.db, err = repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, app.db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(app.db, "panel"),
	)

	clock := quartz.NewReal()
	metrics := services.NewMetrics(app.registry)
	app.accountService = services.NewAccountService(app.db, rm, clock, logger, metrics)
	app.historyService = services.NewHistoryService(app.db, rm, clock, logger, metrics)

	app.syncer = syncer.New(syncer.Options{
		TemplatePath:  c.XrayTemplatePath,
		OutputDir:     c.XrayOutputDir,
		Workers:       c.SyncWorkers,
		RenderTimeout: c.RenderTimeout,
		WriteTimeout:  c.WriteTimeout,
	}, rm.Profiles(app.db), xray.NewRenderer(c.XrayBasePort), clock, logger, syncer.NewMetrics(app.registry))

	if c.ArchiveEnabled {
		up, err := archive.NewUploader(ctx, archive.Options{
			Bucket:        c.S3Bucket,
			Region:        c.S3Region,
			AccessKey:     c.S3RootUser,
			SecretKey:     c.S3RootPassword,
			BaseEndpoint:  c.S3BaseEndpoint,
			RetentionDays: c.ArchiveRetentionDays,
			Passphrase:    []byte(c.ArchivePassphrase),
		}, clock, logger)
		if err != nil {
			return nil, fmt.Errorf("archive init error: %w", err)
		}
		app.syncer.SetArchiver(up)
	}

	if c.SyncSchedule != "" {
		app.scheduler, err = syncer.NewScheduler(c.SyncSchedule, app.syncer, logger)
		if err != nil {
			return nil, fmt.Errorf("scheduler init error: %w", err)
		}
	}

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.accountService, app.historyService, app.syncer, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server stopped", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.db, app.registry, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server stopped", "error", err)
		cancelFunc()
	}
}

// initialSync publishes once at startup. A failure is logged and the daemon
// keeps serving the previous artifact.
func (app *App) initialSync(ctx context.Context) {
	res, err := app.syncer.Run(ctx)
	if err != nil {
		app.logger.Warn(ctx, "startup sync failed", "error", err)
		return
	}
	app.logger.Info(ctx, "startup sync done", "status", res.Status, "changed", res.Changed)
}

// Run serves until ctx is cancelled, a termination signal arrives or a
// listener fails, then releases every resource the App holds.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "grpc", app.config.EndpointAddrGRPC, "http", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	if app.config.SyncOnStart {
		app.initialSync(ctx)
	}
	if app.scheduler != nil {
		app.scheduler.Start()
	}

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "Stopping app...")
	return app.close()
}

func (app *App) close() error {
	var result *multierror.Error

	if app.scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := app.scheduler.Stop(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop scheduler: %w", err))
		}
		cancel()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close db: %w", err))
		}
	}
	if app.logCloser != nil {
		if err := app.logCloser.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close log: %w", err))
		}
	}

	return result.ErrorOrNil()
}

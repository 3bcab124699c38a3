// Package syncer publishes the proxy engine's config: it renders every
// active profile, merges the fragments into the base template and replaces
// the artifact on disk in one atomic step.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/filex"
	"github.com/boleyla/panel/internal/logging"
	"github.com/boleyla/panel/internal/server/models"
	"github.com/boleyla/panel/internal/server/xray"
	"github.com/coder/quartz"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ArtifactName is the file the proxy engine loads from the output directory.
const ArtifactName = "config.json"

const lockName = ".config.json.lock"

// writeArtifact is a test seam over filex.ReplaceAtomic.
var writeArtifact = filex.ReplaceAtomic

// ProfileSource lists active profiles in ascending id order.
type ProfileSource interface {
	ListActiveViews(ctx context.Context) ([]models.ProfileView, error)
}

// Renderer turns one profile into an inbound fragment. It is called from
// several goroutines at once.
type Renderer interface {
	Render(ctx context.Context, v models.ProfileView) (xray.Fragment, error)
}

// Archiver keeps an off-host copy of a published artifact.
type Archiver interface {
	Archive(ctx context.Context, runID string, at time.Time, data []byte) (key string, err error)
}

// Options configures a Syncer. RenderTimeout bounds each profile render and
// WriteTimeout bounds publishing the artifact. Workers below 1 means one.
type Options struct {
	TemplatePath  string
	OutputDir     string
	Workers       int
	RenderTimeout time.Duration
	WriteTimeout  time.Duration
}

// Syncer runs at most one sync at a time per process, and the lock file in
// the output directory keeps a second process from writing concurrently.
type Syncer struct {
	opts     Options
	profiles ProfileSource
	renderer Renderer
	archiver Archiver
	clock    quartz.Clock
	logger   logging.Logger
	metrics  *Metrics

	mu sync.Mutex
}

// New returns a Syncer without an archiver. metrics may be nil.
func New(opts Options, profiles ProfileSource, renderer Renderer, clock quartz.Clock, l logging.Logger, metrics *Metrics) *Syncer {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Syncer{
		opts:     opts,
		profiles: profiles,
		renderer: renderer,
		clock:    clock,
		logger:   l.With("module", "syncer"),
		metrics:  metrics,
	}
}

// SetArchiver enables archiving of changed artifacts. Call before the first Run.
func (s *Syncer) SetArchiver(a Archiver) {
	s.archiver = a
}

// ArtifactPath is where Run publishes.
func (s *Syncer) ArtifactPath() string {
	return filepath.Join(s.opts.OutputDir, ArtifactName)
}

// Run performs one sync. A run that is already in progress is not waited
// for; the call fails with common.ErrorSyncInProgress instead.
//
// The returned result is non-nil whenever the run started, including failed
// and cancelled runs, so callers can report per-item outcomes alongside the
// error.
func (s *Syncer) Run(ctx context.Context) (*models.SyncResult, error) {
	if !s.mu.TryLock() {
		return nil, common.ErrorSyncInProgress
	}
	defer s.mu.Unlock()

	dir, err := filex.EnsureDir(s.opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorArtifactWrite, err)
	}
	fl := flock.New(filepath.Join(dir, lockName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: lock: %w", common.ErrorArtifactWrite, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s is held by another process", common.ErrorSyncInProgress, fl.Path())
	}
	defer func() { _ = fl.Unlock() }()

	res := &models.SyncResult{
		RunID:        uuid.NewString(),
		ArtifactPath: filepath.Join(dir, ArtifactName),
		StartedAt:    s.clock.Now(),
	}
	logger := s.logger.With("run_id", res.RunID)

	err = s.run(ctx, logger, res)

	res.FinishedAt = s.clock.Now()
	if err != nil {
		res.Error = err.Error()
	}
	s.metrics.observe(res)

	args := []any{
		"status", res.Status,
		"items", len(res.Items),
		"failed", len(res.Failed()),
		"changed", res.Changed,
		"took", res.FinishedAt.Sub(res.StartedAt),
	}
	switch res.Status {
	case models.SyncSucceeded:
		logger.Info(ctx, "sync finished", args...)
	case models.SyncPartial, models.SyncCancelled:
		logger.Warn(ctx, "sync finished", args...)
	default:
		logger.Error(ctx, "sync failed", append(args, "error", err)...)
	}
	return res, err
}

func (s *Syncer) run(ctx context.Context, logger logging.Logger, res *models.SyncResult) error {
	res.Status = models.SyncFailed

	tpl, err := xray.LoadTemplate(s.opts.TemplatePath)
	if err != nil {
		return err
	}

	views, err := s.profiles.ListActiveViews(ctx)
	if err != nil {
		if ctx.Err() != nil {
			res.Status = models.SyncCancelled
			return ctx.Err()
		}
		return fmt.Errorf("list profiles: %w", err)
	}

	fragments := s.renderAll(ctx, views, res)
	if err := ctx.Err(); err != nil {
		res.Status = models.SyncCancelled
		return err
	}

	ok := make([]xray.Fragment, 0, len(fragments))
	for i, f := range fragments {
		if res.Items[i].OK {
			ok = append(ok, f)
		}
	}

	data, err := xray.Encode(xray.Merge(tpl, ok...))
	if err != nil {
		return fmt.Errorf("%w: encode: %w", common.ErrorArtifactWrite, err)
	}

	same, err := filex.SameContent(res.ArtifactPath, data)
	if err != nil {
		logger.Warn(ctx, "cannot compare with current artifact", "error", err)
	}
	if !same {
		wctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
		err := writeArtifact(wctx, res.ArtifactPath, data, 0o644)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrorArtifactWrite, err)
		}
		res.Changed = true
		logger.Info(ctx, "artifact published", "path", res.ArtifactPath, "size", humanize.Bytes(uint64(len(data))))
	}

	res.Status = models.SyncSucceeded
	if len(res.Failed()) > 0 {
		res.Status = models.SyncPartial
	}

	if res.Changed && s.archiver != nil {
		key, err := s.archiver.Archive(ctx, res.RunID, res.StartedAt, data)
		if err != nil {
			res.ArchiveError = err.Error()
			logger.Warn(ctx, "archive failed", "error", err)
		} else {
			res.ArchiveKey = key
		}
	}
	return nil
}

// renderAll renders views on a bounded pool. Once ctx is done no further
// render is started; those already running are awaited. res.Items and the
// returned fragments cover only the renders that ran, in view order.
func (s *Syncer) renderAll(ctx context.Context, views []models.ProfileView, res *models.SyncResult) []xray.Fragment {
	fragments := make([]xray.Fragment, len(views))
	items := make([]models.SyncItem, len(views))
	ran := make([]bool, len(views))

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	for i, v := range views {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// A slot can free up after cancellation.
			if ctx.Err() != nil {
				return nil
			}
			rctx, cancel := context.WithTimeout(ctx, s.opts.RenderTimeout)
			defer cancel()

			f, err := s.renderer.Render(rctx, v)
			items[i], ran[i] = item(v.Profile.ID, err), true
			if err == nil {
				fragments[i] = f
			}
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for i := range views {
		if !ran[i] {
			continue
		}
		items[n], fragments[n] = items[i], fragments[i]
		n++
	}
	res.Items = items[:n]

	for _, it := range res.Items {
		if !it.OK {
			s.logger.Debug(ctx, "profile not rendered", "profile_id", it.ProfileID, "code", it.Code, "error", it.Error)
		}
	}
	return fragments[:n]
}

func item(profileID int64, err error) models.SyncItem {
	it := models.SyncItem{ProfileID: profileID, OK: err == nil}
	if err == nil {
		return it
	}
	it.Error = err.Error()
	switch {
	case errors.Is(err, common.ErrorNotFound):
		it.Code = models.ItemNotFound
	case errors.Is(err, context.DeadlineExceeded):
		it.Code = models.ItemTimeout
	default:
		it.Code = models.ItemRenderError
	}
	return it
}

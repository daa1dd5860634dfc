package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/probelab/spool-ingest/internal/logctx"
	"github.com/probelab/spool-ingest/pkg/logging"
	"github.com/probelab/spool-ingest/pkg/sink"
	"github.com/probelab/spool-ingest/pkg/spoolfs"
	"github.com/probelab/spool-ingest/pkg/validate"
)

// Config holds the spool watcher settings.
type Config struct {
	// InDir is the spool directory to watch.
	InDir string
	// DoneDir receives ingested files. Empty means <InDir>/done.
	DoneDir string
	// FailedDir receives rejected files. Empty means <InDir>/failed.
	FailedDir string
	// Interval is the target pass cadence. Zero or negative runs a single
	// pass.
	Interval time.Duration
	// Concurrency is the number of files processed at once, capped at the
	// CPU count.
	Concurrency int
	// DryRun parses and validates but neither writes nor moves files.
	DryRun bool
	// DryRunOut receives dry-run statements. Defaults to os.Stdout.
	DryRunOut io.Writer
}

// DefaultConfig returns settings for a single-pass run over a local spool.
func DefaultConfig(inDir string) Config {
	return Config{
		InDir:       inDir,
		Concurrency: 1,
	}
}

// Validate checks configuration values and returns an error for invalid settings.
func (c *Config) Validate() error {
	if c.InDir == "" {
		return fmt.Errorf("InDir is required")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("Concurrency must be non-negative, got %d", c.Concurrency)
	}
	return nil
}

// normalize fills derived defaults and caps.
func (c *Config) normalize() {
	if c.DoneDir == "" {
		c.DoneDir = filepath.Join(c.InDir, "done")
	}
	if c.FailedDir == "" {
		c.FailedDir = filepath.Join(c.InDir, "failed")
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if n := runtime.NumCPU(); c.Concurrency > n {
		c.Concurrency = n
	}
}

// Runner drives repeated scan passes over the spool directory.
type Runner struct {
	cfg  Config
	pool *Pool
}

// NewRunner validates the configuration and prepares the terminal
// directories. The spool directory itself must already exist; a typo in
// its path should fail loudly rather than create an empty tree.
func NewRunner(cfg Config, s sink.Sink, v *validate.Registry) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.normalize()

	if !spoolfs.Exists(cfg.InDir) {
		return nil, fmt.Errorf("spool directory %s does not exist", cfg.InDir)
	}
	if err := spoolfs.EnsureDir(cfg.DoneDir); err != nil {
		return nil, err
	}
	if err := spoolfs.EnsureDir(cfg.FailedDir); err != nil {
		return nil, err
	}

	proc := &Processor{
		Sink:      s,
		Validator: v,
		DoneDir:   cfg.DoneDir,
		FailedDir: cfg.FailedDir,
		DryRun:    cfg.DryRun,
		DryRunOut: cfg.DryRunOut,
	}
	return &Runner{cfg: cfg, pool: NewPool(proc, cfg.Concurrency)}, nil
}

// Run executes scan passes until the context is cancelled. Pass timing is
// self-correcting: the sleep shrinks by however long the pass took, so
// pass starts stay a fixed interval apart.
func (r *Runner) Run(ctx context.Context) error {
	log := logging.WithPhase("ingest")
	log.Info().
		Str("in_dir", r.cfg.InDir).
		Str("done_dir", r.cfg.DoneDir).
		Str("failed_dir", r.cfg.FailedDir).
		Int("concurrency", r.cfg.Concurrency).
		Bool("dry_run", r.cfg.DryRun).
		Msg("watching spool directory")

	for {
		passID := uuid.NewString()
		pctx := logctx.WithStr(ctx, "pass_id", passID)

		start := time.Now()
		stats, err := r.runPass(pctx)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		ev := logging.PassComplete(log, elapsed).
			Str("pass_id", passID).
			Count("files", stats.Files).
			Count("records", stats.Records).
			Int64("files_failed", stats.Failed).
			Rate("records", stats.Records)
		if stats.Stuck > 0 {
			ev.Int64("files_stuck", stats.Stuck)
		}
		for class, n := range stats.ByClass {
			ev.Int64("failed_"+string(class), n)
		}

		if err := ctx.Err(); err != nil {
			ev.Log("pass interrupted")
			return err
		}
		if r.cfg.Interval <= 0 {
			ev.Log("single pass finished")
			return nil
		}

		sleep := sleepFor(r.cfg.Interval, elapsed)
		ev.Dur("sleep", sleep).Log("pass completed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// runPass walks the spool once, feeding files to the pool as they are
// found. The scan runs concurrently with processing so a large backlog
// starts draining immediately.
func (r *Runner) runPass(ctx context.Context) (PassStats, error) {
	scanner := spoolfs.NewScanner(r.cfg.InDir, r.cfg.DoneDir, r.cfg.FailedDir)

	paths := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(paths)
		scanErr <- scanner.Walk(ctx, func(path string) error {
			select {
			case paths <- path:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	stats := r.pool.Run(ctx, paths)

	if err := <-scanErr; err != nil && !errors.Is(err, context.Canceled) {
		return stats, fmt.Errorf("scan %s: %w", r.cfg.InDir, err)
	}
	return stats, nil
}

// sleepFor returns how long to wait so passes start interval apart. A
// pass that overran its interval starts the next one immediately.
func sleepFor(interval, elapsed time.Duration) time.Duration {
	if wait := interval - elapsed; wait > 0 {
		return wait
	}
	return 0
}

package ingest

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/probelab/spool-ingest/internal/logctx"
)

// FileProcessor is the per-file pipeline run by pool workers.
type FileProcessor interface {
	Process(ctx context.Context, path string) Outcome
}

var _ FileProcessor = (*Processor)(nil)

// PassStats aggregates file outcomes over one scan pass.
type PassStats struct {
	// Files is the number of files that reached a terminal state.
	Files int64
	// Records counts records whose batches committed (or, in dry-run,
	// would have).
	Records int64
	// Failed counts files whose data did not land.
	Failed int64
	// Stuck counts files whose batch committed but whose move failed.
	Stuck int64
	// ByClass breaks Failed and Stuck down by failure class.
	ByClass map[FailureClass]int64
}

// Pool fans spool files out to a bounded set of workers sharing one
// processor.
type Pool struct {
	proc  FileProcessor
	limit int

	files   atomic.Int64
	records atomic.Int64
	failed  atomic.Int64
	stuck   atomic.Int64

	mu      sync.Mutex
	byClass map[FailureClass]int64
}

// NewPool creates a pool running at most limit files at once.
func NewPool(proc FileProcessor, limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{proc: proc, limit: limit}
}

// Run drains the paths channel and blocks until every submitted file has
// reached a terminal state. Cancelling the context stops the feed;
// in-flight files still finish, so no file is left half-processed.
func (p *Pool) Run(ctx context.Context, paths <-chan string) PassStats {
	p.reset()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for path := range paths {
		g.Go(func() error {
			p.runOne(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	return p.snapshot()
}

// runOne runs the processor with panic containment. A crashed worker must
// not take down the pass; the file stays in place and counts as failed.
func (p *Pool) runOne(ctx context.Context, path string) {
	defer func() {
		if r := recover(); r != nil {
			log := logctx.FromContext(ctx)
			log.Error().
				Str("path", path).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("worker crashed processing file")
			p.count(Outcome{Path: path, Class: FailPanic})
		}
	}()

	out := p.proc.Process(logctx.WithStr(ctx, "path", path), path)
	p.count(out)
}

func (p *Pool) count(out Outcome) {
	p.files.Add(1)
	switch {
	case out.Class == FailRelocation:
		p.stuck.Add(1)
		p.records.Add(int64(out.Records))
		p.countClass(out.Class)
	case out.Failed():
		p.failed.Add(1)
		p.countClass(out.Class)
	default:
		p.records.Add(int64(out.Records))
	}
}

func (p *Pool) countClass(c FailureClass) {
	p.mu.Lock()
	p.byClass[c]++
	p.mu.Unlock()
}

func (p *Pool) reset() {
	p.files.Store(0)
	p.records.Store(0)
	p.failed.Store(0)
	p.stuck.Store(0)
	p.mu.Lock()
	p.byClass = make(map[FailureClass]int64)
	p.mu.Unlock()
}

func (p *Pool) snapshot() PassStats {
	p.mu.Lock()
	byClass := make(map[FailureClass]int64, len(p.byClass))
	for c, n := range p.byClass {
		byClass[c] = n
	}
	p.mu.Unlock()

	return PassStats{
		Files:   p.files.Load(),
		Records: p.records.Load(),
		Failed:  p.failed.Load(),
		Stuck:   p.stuck.Load(),
		ByClass: byClass,
	}
}

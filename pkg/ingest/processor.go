// Package ingest drives spool files through parse, validation, batch write
// and relocation.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/probelab/spool-ingest/internal/logctx"
	"github.com/probelab/spool-ingest/pkg/batch"
	"github.com/probelab/spool-ingest/pkg/record"
	"github.com/probelab/spool-ingest/pkg/sink"
	"github.com/probelab/spool-ingest/pkg/spoolfs"
	"github.com/probelab/spool-ingest/pkg/validate"
)

// Processor turns one spool file into one committed batch and moves the
// file to its terminal directory. A file either lands completely or not at
// all; on any rejection it moves to the failed directory untouched.
type Processor struct {
	Sink      sink.Sink
	Validator *validate.Registry
	DoneDir   string
	FailedDir string

	// DryRun parses, validates and prints the would-be statements, but
	// neither writes to the sink nor moves files.
	DryRun bool
	// DryRunOut receives dry-run statements. Defaults to os.Stdout.
	DryRunOut io.Writer
}

// Outcome describes the terminal state of one file.
type Outcome struct {
	Path string
	// Records counts the file's records once its batch committed (or, in
	// dry-run, would have). Zero on any failure before commit.
	Records int
	Class   FailureClass
	Err     error
	// Committed is true once the sink accepted the batch. A committed
	// outcome can still carry FailRelocation.
	Committed bool
	// MovedTo is the file's new path, empty if it stayed in place.
	MovedTo string
}

// Failed reports whether the file was rejected before its batch committed.
func (o Outcome) Failed() bool {
	return o.Class != FailNone && o.Class != FailRelocation
}

// Process runs one file through the pipeline. The returned outcome is
// terminal: the file was moved, or deliberately left in place.
func (p *Processor) Process(ctx context.Context, path string) Outcome {
	log := logctx.FromContext(ctx)
	out := Outcome{Path: path}

	f, err := os.Open(path)
	if err != nil {
		return p.fail(ctx, out, FailParse, fmt.Errorf("open file: %w", err))
	}

	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		f.Close()
		return p.fail(ctx, out, FailEmptyFile, ErrEmptyFile)
	}

	res, err := record.Parse(f)
	f.Close()
	if err != nil {
		return p.fail(ctx, out, FailParse, err)
	}
	if res.MultiLine {
		log.Debug().Msg("records spanned multiple lines")
	}

	out.Records = len(res.Records)
	if out.Records == 0 {
		return p.fail(ctx, out, FailEmptyFile, ErrEmptyFile)
	}

	if p.Validator != nil {
		for i, rec := range res.Records {
			if err := p.Validator.Validate(rec); err != nil {
				return p.fail(ctx, out, FailValidation, fmt.Errorf("record %d: %w", i, err))
			}
		}
	}

	b, err := batch.Build(res.Records)
	if err != nil {
		return p.fail(ctx, out, FailMissingDataID, err)
	}

	if p.DryRun {
		w := p.DryRunOut
		if w == nil {
			w = os.Stdout
		}
		b.Dump(w)
		log.Info().Int("records", out.Records).Msg("dry run, batch not written")
		return out
	}

	if err := p.Sink.Write(ctx, b); err != nil {
		return p.fail(ctx, out, FailSinkWrite, err)
	}
	out.Committed = true

	moved, err := spoolfs.Relocate(path, p.DoneDir)
	if err != nil {
		out.Class = FailRelocation
		out.Err = err
		log.Error().Err(err).Msg("batch committed but file not relocated")
		return out
	}
	out.MovedTo = moved

	log.Debug().Int("records", out.Records).Msg("file ingested")
	return out
}

// fail records the rejection and moves the file aside so the next pass
// does not pick it up again. Dry-run leaves rejected files in place too.
func (p *Processor) fail(ctx context.Context, out Outcome, class FailureClass, err error) Outcome {
	log := logctx.FromContext(ctx)
	out.Records = 0
	out.Class = class
	out.Err = err

	log.Error().Err(err).Str("class", string(class)).Msg("file rejected")

	if p.DryRun {
		return out
	}
	moved, mvErr := spoolfs.Relocate(out.Path, p.FailedDir)
	if mvErr != nil {
		log.Warn().Err(mvErr).Msg("rejected file left in place")
		return out
	}
	out.MovedTo = moved
	return out
}

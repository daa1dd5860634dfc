// Package sink abstracts the write side of the pipeline.
package sink

import (
	"context"

	"github.com/probelab/spool-ingest/pkg/batch"
)

// Sink commits whole batches. Write is all-or-nothing: when it returns an
// error, none of the batch's rows may remain visible.
type Sink interface {
	Write(ctx context.Context, b *batch.Batch) error
	Close() error
}

// Package batch builds atomic write batches from parsed records.
package batch

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/probelab/spool-ingest/pkg/record"
)

// ErrMissingDataID reports a record without a usable discriminator field.
var ErrMissingDataID = errors.New("record missing DataId field")

// Op is one insert operation: a table with matched column/value pairs.
// Column order follows the record's field order.
type Op struct {
	Table   string
	Columns []string
	Values  []interface{}
}

// Statement renders the positional-placeholder insert for this operation.
func (o Op) Statement() string {
	ph := make([]string, len(o.Columns))
	for i := range ph {
		ph[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		o.Table, strings.Join(o.Columns, ","), strings.Join(ph, ","))
}

// Batch is the ordered set of insert operations derived from exactly one
// file. A sink takes it as a single atomic unit.
type Batch struct {
	Ops []Op
}

// TableName derives a table identifier from a DataId value: dots become
// underscores and the result is lowercased (unquoted Cassandra identifiers
// fold to lowercase server-side, so this matches what the cluster stores).
func TableName(dataID string) string {
	return strings.ToLower(strings.ReplaceAll(dataID, ".", "_"))
}

// Build derives one insert operation per record and appends them all into a
// single batch. A record without a DataId aborts the whole file; no partial
// batch is ever produced.
func Build(records []record.Record) (*Batch, error) {
	b := &Batch{Ops: make([]Op, 0, len(records))}
	for i, rec := range records {
		id, ok := rec.DataID()
		if !ok {
			return nil, fmt.Errorf("record %d: %w", i, ErrMissingDataID)
		}
		b.Ops = append(b.Ops, Op{
			Table:   TableName(id),
			Columns: rec.Columns(),
			Values:  rec.Values(),
		})
	}
	return b, nil
}

// Dump writes each operation's statement and values, one per line.
// Dry-run mode prints this instead of executing the batch.
func (b *Batch) Dump(w io.Writer) {
	for _, op := range b.Ops {
		vals := make([]string, len(op.Values))
		for i, v := range op.Values {
			vals[i] = fmt.Sprint(v)
		}
		fmt.Fprintf(w, "%s (%s)\n", op.Statement(), strings.Join(vals, ","))
	}
}

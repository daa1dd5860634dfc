// Package validate holds per-DataId sanity checks applied before a file's
// records are committed.
package validate

import (
	"fmt"

	"github.com/probelab/spool-ingest/pkg/record"
)

// Check inspects a single record and reports why it should be rejected.
// A nil return accepts the record.
type Check func(record.Record) error

// Registry maps DataId values to their checks. Records whose DataId has no
// registered check are accepted unchanged.
type Registry struct {
	checks map[string]Check
}

// NewRegistry returns a registry with the built-in checks installed.
func NewRegistry() *Registry {
	r := &Registry{checks: make(map[string]Check)}
	r.Register("PROBE.EXP.PING", checkPing)
	return r
}

// Register installs or replaces the check for a DataId.
func (r *Registry) Register(dataID string, c Check) {
	r.checks[dataID] = c
}

// Validate runs the check registered for the record's DataId, if any.
// Records without a DataId pass here; the batch builder rejects those on
// its own terms.
func (r *Registry) Validate(rec record.Record) error {
	id, ok := rec.DataID()
	if !ok {
		return nil
	}
	c, ok := r.checks[id]
	if !ok {
		return nil
	}
	return c(rec)
}

// checkPing rejects ping results with out-of-range measurements, which
// probes occasionally emit after a clock step or a modem driver reset.
func checkPing(rec record.Record) error {
	seq, err := numField(rec, "SequenceNumber")
	if err != nil {
		return err
	}
	if seq < 0 {
		return fmt.Errorf("SequenceNumber %v is negative", seq)
	}
	for _, name := range []string{"Rtt", "Bytes", "TimeStamp"} {
		v, err := numField(rec, name)
		if err != nil {
			return err
		}
		if v <= 0 {
			return fmt.Errorf("%s %v is not positive", name, v)
		}
	}
	return nil
}

func numField(rec record.Record, name string) (float64, error) {
	v, ok := rec.Float64(name)
	if !ok {
		return 0, fmt.Errorf("field %s is missing or not numeric", name)
	}
	return v, nil
}

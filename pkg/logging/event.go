package logging

import (
	"time"

	"github.com/probelab/spool-ingest/pkg/humanfmt"
	"github.com/rs/zerolog"
)

// Event builds consistent completion log events. In pretty mode, count, byte,
// duration, and rate fields get "_h" human-readable companions.
type Event struct {
	log     zerolog.Logger
	event   string
	elapsed time.Duration
	fields  map[string]interface{}
}

// NewEvent creates an event builder for an operation that took elapsed time.
func NewEvent(log zerolog.Logger, event string, elapsed time.Duration) *Event {
	return &Event{
		log:     log,
		event:   event,
		elapsed: elapsed,
		fields:  make(map[string]interface{}),
	}
}

// Str adds a string field.
func (e *Event) Str(key, val string) *Event {
	e.fields[key] = val
	return e
}

// Int adds an int field.
func (e *Event) Int(key string, val int) *Event {
	e.fields[key] = val
	return e
}

// Int64 adds an int64 field.
func (e *Event) Int64(key string, val int64) *Event {
	e.fields[key] = val
	return e
}

// Count adds a count with optional human-readable companion.
func (e *Event) Count(key string, n int64) *Event {
	e.fields[key] = n
	if IsPrettyMode() {
		e.fields[key+"_h"] = humanfmt.Count(n)
	}
	return e
}

// Bytes adds a byte count with optional human-readable companion.
func (e *Event) Bytes(key string, n int64) *Event {
	e.fields[key] = n
	if IsPrettyMode() {
		e.fields[key+"_h"] = humanfmt.Bytes(n)
	}
	return e
}

// Dur adds a duration as key_ms with optional human-readable companion.
func (e *Event) Dur(key string, d time.Duration) *Event {
	e.fields[key+"_ms"] = d.Milliseconds()
	if IsPrettyMode() {
		e.fields[key+"_h"] = humanfmt.Duration(d)
	}
	return e
}

// Rate adds an events-per-second field computed against the event's elapsed time.
func (e *Event) Rate(key string, n int64) *Event {
	if e.elapsed > 0 {
		e.fields[key+"_per_sec"] = float64(n) / e.elapsed.Seconds()
		if IsPrettyMode() {
			e.fields[key+"_rate_h"] = humanfmt.Rate(n, e.elapsed)
		}
	}
	return e
}

// Log emits the event at info level.
func (e *Event) Log(msg string) {
	ev := e.log.Info().
		Str("event", e.event).
		Int64("duration_ms", e.elapsed.Milliseconds())

	if IsPrettyMode() {
		ev = ev.Str("duration_h", humanfmt.Duration(e.elapsed))
	}

	for k, v := range e.fields {
		ev = ev.Interface(k, v)
	}

	ev.Msg(msg)
}

// PassComplete returns an event builder for a finished scan pass.
func PassComplete(log zerolog.Logger, elapsed time.Duration) *Event {
	return NewEvent(log, "pass_completed", elapsed)
}

package batch

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/probelab/spool-ingest/pkg/record"
)

func parseRecords(t *testing.T, input string) []record.Record {
	t.Helper()
	res, err := record.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return res.Records
}

func TestTableName(t *testing.T) {
	tests := []struct {
		dataID string
		want   string
	}{
		{"PROBE.EXP.PING", "probe_exp_ping"},
		{"PROBE.META.NODE.SENSOR", "probe_meta_node_sensor"},
		{"PROBE.EXP.EXHAUSTIVE.PARIS", "probe_exp_exhaustive_paris"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := TableName(tt.dataID); got != tt.want {
			t.Errorf("TableName(%q) = %q, want %q", tt.dataID, got, tt.want)
		}
	}
}

func TestBuildPreservesOrder(t *testing.T) {
	recs := parseRecords(t, `{"DataId": "PROBE.EXP.PING", "NodeId": "45", "Rtt": 24.5}
{"DataId": "PROBE.META.NODE.EVENT", "EventType": "Watchdog.Failed"}
`)
	b, err := Build(recs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(b.Ops) != 2 {
		t.Fatalf("got %d ops, want 2", len(b.Ops))
	}

	op := b.Ops[0]
	if op.Table != "probe_exp_ping" {
		t.Errorf("table = %q, want probe_exp_ping", op.Table)
	}
	wantCols := []string{"DataId", "NodeId", "Rtt"}
	if len(op.Columns) != len(wantCols) {
		t.Fatalf("got %d columns, want %d", len(op.Columns), len(wantCols))
	}
	for i, c := range wantCols {
		if op.Columns[i] != c {
			t.Errorf("column %d = %q, want %q", i, op.Columns[i], c)
		}
	}
	if len(op.Values) != len(op.Columns) {
		t.Fatalf("values/columns mismatch: %d vs %d", len(op.Values), len(op.Columns))
	}
	if rtt, ok := op.Values[2].(float64); !ok || rtt != 24.5 {
		t.Errorf("Rtt value = %v, want 24.5", op.Values[2])
	}

	if b.Ops[1].Table != "probe_meta_node_event" {
		t.Errorf("second table = %q, want probe_meta_node_event", b.Ops[1].Table)
	}
}

func TestBuildMissingDataID(t *testing.T) {
	recs := parseRecords(t, `{"DataId": "PROBE.EXP.PING", "Rtt": 24.5}
{"NodeId": "45", "Rtt": 30.1}
`)
	b, err := Build(recs)
	if err == nil {
		t.Fatal("expected error for record without DataId")
	}
	if !errors.Is(err, ErrMissingDataID) {
		t.Errorf("error = %v, want ErrMissingDataID", err)
	}
	if !strings.Contains(err.Error(), "record 1") {
		t.Errorf("error should name the offending record, got %q", err)
	}
	if b != nil {
		t.Error("no partial batch should be returned on error")
	}
}

func TestBuildNonStringDataID(t *testing.T) {
	recs := parseRecords(t, `{"DataId": 42, "Rtt": 24.5}`+"\n")
	if _, err := Build(recs); !errors.Is(err, ErrMissingDataID) {
		t.Errorf("error = %v, want ErrMissingDataID", err)
	}
}

func TestBuildEmpty(t *testing.T) {
	b, err := Build(nil)
	if err != nil {
		t.Fatalf("Build(nil): %v", err)
	}
	if len(b.Ops) != 0 {
		t.Errorf("got %d ops, want 0", len(b.Ops))
	}
}

func TestOpStatement(t *testing.T) {
	op := Op{
		Table:   "probe_exp_ping",
		Columns: []string{"DataId", "NodeId", "Rtt"},
		Values:  []interface{}{"PROBE.EXP.PING", "45", 24.5},
	}
	want := "INSERT INTO probe_exp_ping (DataId,NodeId,Rtt) VALUES (?,?,?)"
	if got := op.Statement(); got != want {
		t.Errorf("Statement() = %q, want %q", got, want)
	}
}

func TestDump(t *testing.T) {
	recs := parseRecords(t, `{"DataId": "PROBE.EXP.PING", "Rtt": 24.5}`+"\n")
	b, err := Build(recs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var buf bytes.Buffer
	b.Dump(&buf)
	out := buf.String()
	if !strings.Contains(out, "INSERT INTO probe_exp_ping (DataId,Rtt) VALUES (?,?)") {
		t.Errorf("dump missing statement, got %q", out)
	}
	if !strings.Contains(out, "(PROBE.EXP.PING,24.5)") {
		t.Errorf("dump missing values, got %q", out)
	}
}

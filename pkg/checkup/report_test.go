package checkup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// fakeQuerier serves canned metadata and rows keyed by table name, with
// the watchdog query kept apart from the plain event-table query.
type fakeQuerier struct {
	tables map[string][]string
	rows   map[string][]map[string]interface{}
	errs   map[string]error
	stmts  []string
}

func (f *fakeQuerier) TableColumns(ctx context.Context) (map[string][]string, error) {
	return f.tables, nil
}

func (f *fakeQuerier) Select(ctx context.Context, stmt string) ([]map[string]interface{}, error) {
	f.stmts = append(f.stmts, stmt)

	key := ""
	if strings.Contains(stmt, "eventtype") {
		key = "watchdog"
	} else {
		fields := strings.Fields(stmt)
		for i, tok := range fields {
			if tok == "FROM" && i+1 < len(fields) {
				key = fields[i+1]
				break
			}
		}
	}
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.rows[key], nil
}

const testNow = float64(1700000000)

func newTestQuerier() *fakeQuerier {
	return &fakeQuerier{
		tables: map[string][]string{
			"probe_exp_ping":        {"nodeid", "timestamp", "operator", "iccid", "rtt"},
			"probe_meta_device_gps": {"nodeid", "timestamp", "latitude", "longitude"},
			"probe_log":             {"msg", "severity"},
		},
		rows: map[string][]map[string]interface{}{
			"probe_meta_node_sensor": {
				{"nodeid": "45"},
				{"nodeid": "7"},
			},
			"watchdog": {
				{"nodeid": "45"},
			},
			"probe_meta_device_gps": {
				{"nodeid": "7", "timestamp": testNow - 5000},
				{"nodeid": "7", "timestamp": testNow - 90000},
			},
			"probe_exp_ping": {
				{"nodeid": "45", "timestamp": testNow - 50000, "operator": "TelenorSE", "iccid": "89460"},
				{"nodeid": "45", "timestamp": testNow - 200000, "operator": "Telia", "iccid": "89461"},
			},
		},
	}
}

func TestRunReport(t *testing.T) {
	q := newTestQuerier()
	rep, err := run(context.Background(), q, testNow, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if want := int64(testNow) - 7*24*3600; rep.Cutoff != want {
		t.Errorf("Cutoff = %d, want %d", rep.Cutoff, want)
	}
	if len(rep.UnauditedTables) != 1 || rep.UnauditedTables[0] != "probe_log" {
		t.Errorf("UnauditedTables = %v, want [probe_log]", rep.UnauditedTables)
	}

	if len(rep.Nodes) != 2 || rep.Nodes[0].NodeID != 7 || rep.Nodes[1].NodeID != 45 {
		t.Fatalf("Nodes = %+v, want ids [7 45]", rep.Nodes)
	}

	n7, n45 := rep.Nodes[0], rep.Nodes[1]
	if n7.GPSTimestamp != testNow-5000 {
		t.Errorf("GPSTimestamp = %v, want the newest fix %v", n7.GPSTimestamp, testNow-5000)
	}
	if !rep.Active(n7.GPSTimestamp) {
		t.Error("node 7's GPS fix should be active")
	}
	if n7.WatchdogFailed {
		t.Error("node 7 had no watchdog failure")
	}

	if !n45.WatchdogFailed {
		t.Error("node 45 should carry the watchdog failure")
	}
	if len(n45.PingSIMs) != 2 {
		t.Errorf("node 45 has %d ping SIMs, want 2", len(n45.PingSIMs))
	}
	if got := rep.simSummary(n45.PingSIMs); got != "1 (TelenorSE,-,-)" {
		t.Errorf("ping summary = %q, want the stale SIM excluded", got)
	}

	// 4 discovery + watchdog + gps + ping + modem.
	if len(q.stmts) != 8 {
		t.Errorf("ran %d statements, want 8", len(q.stmts))
	}
	for _, stmt := range q.stmts {
		if !strings.Contains(stmt, "ALLOW FILTERING") {
			t.Errorf("statement without ALLOW FILTERING: %q", stmt)
		}
		if !strings.Contains(stmt, fmt.Sprintf("timestamp > %d", rep.Cutoff)) {
			t.Errorf("statement without cutoff filter: %q", stmt)
		}
	}
}

func TestRunToleratesQueryErrors(t *testing.T) {
	q := newTestQuerier()
	q.errs = map[string]error{
		"probe_exp_ping": errors.New("no viable alternative at input"),
	}

	rep, err := run(context.Background(), q, testNow, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("run should tolerate per-table errors: %v", err)
	}
	if !strings.Contains(rep.QueryErrors["probe_exp_ping"], "no viable alternative") {
		t.Errorf("QueryErrors = %v", rep.QueryErrors)
	}
	if len(rep.Nodes) != 2 {
		t.Errorf("other tables should still be reported, got %d nodes", len(rep.Nodes))
	}

	var buf bytes.Buffer
	rep.Render(&buf)
	if !strings.Contains(buf.String(), "Error for table probe_exp_ping : no viable alternative") {
		t.Errorf("rendered report should surface the error, got %q", buf.String())
	}
}

func TestRenderReport(t *testing.T) {
	q := newTestQuerier()
	rep, err := run(context.Background(), q, testNow, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var buf bytes.Buffer
	rep.Render(&buf)
	out := buf.String()

	lines := strings.Split(out, "\n")
	if len(lines[0]) != 80 || !strings.HasPrefix(lines[0], "####") || !strings.HasSuffix(lines[0], "#") {
		t.Errorf("banner line = %q, want 80 columns of # padding", lines[0])
	}
	if !strings.Contains(out, "probe_log\n") {
		t.Error("unaudited table missing from report")
	}

	wantHeader := fmt.Sprintf("| %-6s | %-3s | %-2s | %-30s | %-30s |",
		"NodeID", "GPS", "WD", "Ping(operator)", "Modem(operator)")
	if !strings.Contains(out, wantHeader) {
		t.Errorf("missing header row, got %q", out)
	}

	want7 := fmt.Sprintf("| %-6d | %-3s | %-2s | %-30s | %-30s |",
		7, "X", "-", "0 (-,-,-)", "0 (-,-,-)")
	if !strings.Contains(out, want7) {
		t.Errorf("missing node 7 row %q in %q", want7, out)
	}

	want45 := fmt.Sprintf("| %-6d | %-3s | %-2s | %-30s | %-30s |",
		45, "-", "X", "1 (TelenorSE,-,-)", "0 (-,-,-)")
	if !strings.Contains(out, want45) {
		t.Errorf("missing node 45 row %q in %q", want45, out)
	}
}

func TestReportActive(t *testing.T) {
	r := &Report{Now: 1000000}
	tests := []struct {
		ts   float64
		want bool
	}{
		{1000000 - 99999, true},
		{1000000 - 100000, false},
		{1000000 + 50000, true},
		{0, false},
	}
	for _, tt := range tests {
		if got := r.Active(tt.ts); got != tt.want {
			t.Errorf("Active(%v) = %v, want %v", tt.ts, got, tt.want)
		}
	}
}

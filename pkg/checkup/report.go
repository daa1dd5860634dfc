package checkup

import (
	"context"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Tables the checkup inspects.
const (
	tableSensor     = "probe_meta_node_sensor"
	tableParis      = "probe_exp_exhaustive_paris"
	tableTraceroute = "probe_exp_simple_traceroute"
	tableEvent      = "probe_meta_node_event"
	tableGPS        = "probe_meta_device_gps"
	tablePing       = "probe_exp_ping"
	tableModem      = "probe_meta_device_modem"
)

// discoveryTables are broad tables most nodes write to. Together they give
// the set of nodes seen in the window at all.
var discoveryTables = []string{tableSensor, tableParis, tableTraceroute, tableEvent}

// Grace is the slack in seconds allowed between now and a node's newest
// row before the node counts as silent on a check. Nodes upload in bursts
// over flaky links, so this is deliberately generous (a bit over a day).
const Grace = 100000

// SIMStatus is the newest activity seen for one SIM card.
type SIMStatus struct {
	Operator  string
	Timestamp float64
}

// NodeStatus is one node's activity summary.
type NodeStatus struct {
	NodeID int
	// WatchdogFailed is set when the node logged a Watchdog.Failed event
	// inside the window.
	WatchdogFailed bool
	// GPSTimestamp is the newest GPS fix in the window, 0 if none.
	GPSTimestamp float64
	// PingSIMs and ModemSIMs hold the newest row per SIM, keyed by ICCID.
	PingSIMs  map[int64]SIMStatus
	ModemSIMs map[int64]SIMStatus
}

// Report is the outcome of one checkup run.
type Report struct {
	// Now is the reference time for activity windows, in unix seconds.
	Now float64
	// Cutoff is the oldest timestamp considered, in unix seconds.
	Cutoff int64
	// UnauditedTables lack a timestamp or nodeid column, so they cannot
	// take part in any of the checks.
	UnauditedTables []string
	// Nodes is sorted by node id.
	Nodes []NodeStatus
	// QueryErrors maps a table to the error its query returned. The rest
	// of the report is built from the tables that worked.
	QueryErrors map[string]string
}

// Run inspects the keyspace and summarizes per-node activity since
// now minus span.
func Run(ctx context.Context, q Querier, span time.Duration) (*Report, error) {
	return run(ctx, q, float64(time.Now().Unix()), span)
}

func run(ctx context.Context, q Querier, now float64, span time.Duration) (*Report, error) {
	rep := &Report{
		Now:         now,
		Cutoff:      int64(now - span.Seconds()),
		QueryErrors: make(map[string]string),
	}

	tables, err := q.TableColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	for name, cols := range tables {
		if !slices.Contains(cols, "timestamp") || !slices.Contains(cols, "nodeid") {
			rep.UnauditedTables = append(rep.UnauditedTables, name)
		}
	}
	sort.Strings(rep.UnauditedTables)

	status := make(map[int]*NodeStatus)
	node := func(id int) *NodeStatus {
		ns, ok := status[id]
		if !ok {
			ns = &NodeStatus{NodeID: id}
			status[id] = ns
		}
		return ns
	}

	// Which nodes wrote anything at all.
	for _, table := range discoveryTables {
		stmt := fmt.Sprintf(
			"SELECT DISTINCT nodeid FROM %s WHERE timestamp > %d ALLOW FILTERING",
			table, rep.Cutoff)
		rows, err := q.Select(ctx, stmt)
		if err != nil {
			rep.QueryErrors[table] = err.Error()
			continue
		}
		for _, row := range rows {
			if id, ok := asNodeID(row["nodeid"]); ok {
				node(id)
			}
		}
	}

	// Watchdog restarts inside the window.
	stmt := fmt.Sprintf(
		"SELECT DISTINCT nodeid FROM %s WHERE timestamp > %d AND eventtype = 'Watchdog.Failed' ALLOW FILTERING",
		tableEvent, rep.Cutoff)
	if rows, err := q.Select(ctx, stmt); err != nil {
		rep.QueryErrors[tableEvent+" (watchdog)"] = err.Error()
	} else {
		for _, row := range rows {
			if id, ok := asNodeID(row["nodeid"]); ok {
				node(id).WatchdogFailed = true
			}
		}
	}

	// Newest GPS fix per node.
	stmt = fmt.Sprintf(
		"SELECT nodeid, timestamp FROM %s WHERE timestamp > %d ALLOW FILTERING",
		tableGPS, rep.Cutoff)
	if rows, err := q.Select(ctx, stmt); err != nil {
		rep.QueryErrors[tableGPS] = err.Error()
	} else {
		for _, row := range rows {
			id, ok := asNodeID(row["nodeid"])
			if !ok {
				continue
			}
			ts, ok := asFloat(row["timestamp"])
			if !ok {
				continue
			}
			if ns := node(id); ts > ns.GPSTimestamp {
				ns.GPSTimestamp = ts
			}
		}
	}

	// Newest row per SIM card for the connectivity checks.
	simTables := []struct {
		table string
		dst   func(*NodeStatus) *map[int64]SIMStatus
	}{
		{tablePing, func(ns *NodeStatus) *map[int64]SIMStatus { return &ns.PingSIMs }},
		{tableModem, func(ns *NodeStatus) *map[int64]SIMStatus { return &ns.ModemSIMs }},
	}
	for _, st := range simTables {
		stmt := fmt.Sprintf(
			"SELECT nodeid, timestamp, operator, iccid FROM %s WHERE timestamp > %d ALLOW FILTERING",
			st.table, rep.Cutoff)
		rows, err := q.Select(ctx, stmt)
		if err != nil {
			rep.QueryErrors[st.table] = err.Error()
			continue
		}
		for _, row := range rows {
			id, ok := asNodeID(row["nodeid"])
			if !ok {
				continue
			}
			ts, ok := asFloat(row["timestamp"])
			if !ok {
				continue
			}
			iccid, ok := asICCID(row["iccid"])
			if !ok {
				continue
			}
			dst := st.dst(node(id))
			if *dst == nil {
				*dst = make(map[int64]SIMStatus)
			}
			if cur, ok := (*dst)[iccid]; !ok || ts > cur.Timestamp {
				(*dst)[iccid] = SIMStatus{Operator: fmt.Sprint(row["operator"]), Timestamp: ts}
			}
		}
	}

	for _, id := range slices.Sorted(maps.Keys(status)) {
		rep.Nodes = append(rep.Nodes, *status[id])
	}
	return rep, nil
}

// Active reports whether ts falls inside the grace window around the
// report's reference time.
func (r *Report) Active(ts float64) bool {
	return ts != 0 && math.Abs(r.Now-ts) < Grace
}

// Render writes the report as a fixed-width table. GPS marks a recent
// fix, WD marks a watchdog failure inside the window.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintln(w, padRight("#### These tables do not contain timestamp or/and nodeid ", '#', 80))
	for _, table := range r.UnauditedTables {
		fmt.Fprintln(w, table)
	}
	fmt.Fprintln(w, padRight("", '#', 80))

	for _, table := range slices.Sorted(maps.Keys(r.QueryErrors)) {
		fmt.Fprintf(w, "Error for table %s : %s\n", table, r.QueryErrors[table])
	}

	fmt.Fprintf(w, "| %-6s | %-3s | %-2s | %-30s | %-30s |\n",
		"NodeID", "GPS", "WD", "Ping(operator)", "Modem(operator)")
	fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
		strings.Repeat("-", 6), strings.Repeat("-", 3), strings.Repeat("-", 2),
		strings.Repeat("-", 30), strings.Repeat("-", 30))

	for _, ns := range r.Nodes {
		gps := "-"
		if r.Active(ns.GPSTimestamp) {
			gps = "X"
		}
		wd := "-"
		if ns.WatchdogFailed {
			wd = "X"
		}
		fmt.Fprintf(w, "| %-6d | %-3s | %-2s | %-30s | %-30s |\n",
			ns.NodeID, gps, wd, r.simSummary(ns.PingSIMs), r.simSummary(ns.ModemSIMs))
	}
}

// simSummary renders "2 (opA,opB,-)": how many SIMs were active in the
// grace window, and their operators padded to at least three slots.
func (r *Report) simSummary(sims map[int64]SIMStatus) string {
	var operators []string
	for _, sim := range sims {
		if r.Active(sim.Timestamp) {
			operators = append(operators, sim.Operator)
		}
	}
	sort.Strings(operators)

	n := len(operators)
	for len(operators) < 3 {
		operators = append(operators, "-")
	}
	return fmt.Sprintf("%d (%s)", n, strings.Join(operators, ","))
}

func padRight(s string, pad byte, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(string(pad), width-len(s))
}

// asNodeID coerces a nodeid column to an int. Most tables store node ids
// as text.
func asNodeID(v interface{}) (int, bool) {
	switch n := v.(type) {
	case string:
		id, err := strconv.Atoi(strings.TrimSpace(n))
		return id, err == nil
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asICCID(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return id, err == nil
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

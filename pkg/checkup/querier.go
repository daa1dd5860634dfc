package checkup

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"github.com/probelab/spool-ingest/pkg/sink"
)

// Querier is the slice of the cluster a checkup needs: keyspace metadata
// and plain SELECT statements.
type Querier interface {
	// TableColumns returns each table's column names, keyed by table name.
	TableColumns(ctx context.Context) (map[string][]string, error)
	// Select runs a statement and returns every row as a column map.
	Select(ctx context.Context, stmt string) ([]map[string]interface{}, error)
}

// ClusterQuerier runs checkup queries against a live Cassandra keyspace.
type ClusterQuerier struct {
	session  *gocql.Session
	keyspace string
}

var _ Querier = (*ClusterQuerier)(nil)

// Open connects to the cluster. Unlike the ingest sink there is no retry
// here; a checkup should fail fast when the cluster is down.
func Open(cfg sink.CassandraConfig) (*ClusterQuerier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	session, err := sink.NewCluster(cfg).CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to cassandra %v: %w", cfg.Hosts, err)
	}
	return &ClusterQuerier{session: session, keyspace: cfg.Keyspace}, nil
}

// Close shuts down the session.
func (q *ClusterQuerier) Close() {
	q.session.Close()
}

// TableColumns returns the column names of every table in the keyspace.
func (q *ClusterQuerier) TableColumns(ctx context.Context) (map[string][]string, error) {
	md, err := q.session.KeyspaceMetadata(q.keyspace)
	if err != nil {
		return nil, fmt.Errorf("keyspace metadata for %s: %w", q.keyspace, err)
	}
	tables := make(map[string][]string, len(md.Tables))
	for name, tm := range md.Tables {
		cols := make([]string, 0, len(tm.Columns))
		for col := range tm.Columns {
			cols = append(cols, col)
		}
		tables[name] = cols
	}
	return tables, nil
}

// Select runs a statement and drains all rows into column maps.
func (q *ClusterQuerier) Select(ctx context.Context, stmt string) ([]map[string]interface{}, error) {
	iter := q.session.Query(stmt).WithContext(ctx).Iter()
	var rows []map[string]interface{}
	for {
		row := make(map[string]interface{})
		if !iter.MapScan(row) {
			break
		}
		rows = append(rows, row)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return rows, nil
}

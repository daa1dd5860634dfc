package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/probelab/spool-ingest/pkg/batch"
	"github.com/probelab/spool-ingest/pkg/logging"
)

// SQLiteConfig holds settings for the embedded SQLite sink.
type SQLiteConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string
	// Synchronous sets the SQLite synchronous pragma.
	// "NORMAL" is the default (good balance of safety and speed).
	// "OFF" for maximum speed (unsafe on crash).
	// "FULL" for maximum safety.
	Synchronous string
	// MmapSize is the mmap size in bytes (default 256MB).
	MmapSize int64
	// CacheSizeKB is the cache size in KB (default 64MB).
	CacheSizeKB int
}

// DefaultSQLiteConfig returns a default configuration for a local spool
// database.
func DefaultSQLiteConfig(dbPath string) SQLiteConfig {
	return SQLiteConfig{
		DBPath:      dbPath,
		Synchronous: "NORMAL",
		MmapSize:    268435456, // 256MB
		CacheSizeKB: 65536,     // 64MB
	}
}

// Validate checks configuration values and returns an error for invalid settings.
func (c *SQLiteConfig) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DBPath is required")
	}
	switch c.Synchronous {
	case "", "OFF", "NORMAL", "FULL":
		// Valid values
	default:
		return fmt.Errorf("invalid Synchronous value %q: must be OFF, NORMAL, or FULL", c.Synchronous)
	}
	if c.MmapSize < 0 {
		return fmt.Errorf("MmapSize must be non-negative, got %d", c.MmapSize)
	}
	if c.CacheSizeKB < 0 {
		return fmt.Errorf("CacheSizeKB must be non-negative, got %d", c.CacheSizeKB)
	}
	return nil
}

// SQLite writes batches into a local database file. Tables and columns are
// created on demand from the records themselves, which keeps the sink
// usable on probes with no cluster access. One instance is shared by every
// pool worker; Write is safe for concurrent use.
type SQLite struct {
	db *sql.DB

	// mu guards columns and the create-then-reload sequence that fills it.
	mu sync.Mutex
	// columns caches the known column set per table so ALTER TABLE runs
	// once per new field, not once per row. Keys are lowercased because
	// SQLite identifiers are case-insensitive.
	columns map[string]map[string]bool
}

var _ Sink = (*SQLite)(nil)

// OpenSQLite creates or opens the database file.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logging.WithPhase("sqlite_open")

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows one writer at a time. A single pooled connection makes
	// concurrent Writes queue instead of failing with SQLITE_BUSY, and
	// keeps the per-connection pragmas below in force for every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA synchronous=%s", cfg.Synchronous),
		"PRAGMA temp_store=MEMORY",
		fmt.Sprintf("PRAGMA mmap_size=%d", cfg.MmapSize),
		fmt.Sprintf("PRAGMA cache_size=-%d", cfg.CacheSizeKB),
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute pragma %q: %w", pragma, err)
		}
	}

	log.Info().
		Str("db_path", cfg.DBPath).
		Str("synchronous", cfg.Synchronous).
		Msg("opened SQLite sink")

	return &SQLite{
		db:      db,
		columns: make(map[string]map[string]bool),
	}, nil
}

// Write inserts the whole batch inside one transaction. Schema changes run
// first, outside the transaction; they are idempotent, so a later rollback
// leaves at worst an empty table or column behind.
func (s *SQLite) Write(ctx context.Context, b *batch.Batch) error {
	if len(b.Ops) == 0 {
		return nil
	}

	for _, op := range b.Ops {
		if err := s.ensureColumns(op.Table, op.Columns); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	for _, op := range b.Ops {
		args, err := bindValues(op.Values)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert into %s: %w", op.Table, err)
		}
		if _, err := tx.ExecContext(ctx, insertSQL(op), args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert into %s: %w", op.Table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ensureColumns creates the table and any missing columns for an
// operation. Columns are declared without a type so each stored value
// keeps its own storage class.
func (s *SQLite) ensureColumns(table string, cols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known, ok := s.columns[table]
	if !ok {
		if err := s.createTable(table, cols); err != nil {
			return err
		}
		loaded, err := s.loadColumns(table)
		if err != nil {
			return err
		}
		known = loaded
		s.columns[table] = known
	}

	for _, c := range cols {
		key := strings.ToLower(c)
		if known[key] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), quoteIdent(c))
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("add column %s to %s: %w", c, table, err)
		}
		known[key] = true
	}
	return nil
}

// createTable creates the table with the first record's columns. The table
// may already exist from an earlier run with a different field set, so the
// caller reloads the real schema afterwards.
func (s *SQLite) createTable(table string, cols []string) error {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		quoteIdent(table), strings.Join(quoted, ", "))
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func (s *SQLite) loadColumns(table string) (map[string]bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("read schema of %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   sql.NullString
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan schema row of %s: %w", table, err)
		}
		cols[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read schema of %s: %w", table, err)
	}
	return cols, nil
}

// bindValues converts record values into driver arguments. Scalars pass
// through; nested objects and arrays are stored as their JSON text.
func bindValues(values []interface{}) ([]interface{}, error) {
	args := make([]interface{}, len(values))
	for i, v := range values {
		switch v.(type) {
		case nil, bool, int64, float64, string:
			args[i] = v
		default:
			enc, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode nested value: %w", err)
			}
			args[i] = string(enc)
		}
	}
	return args, nil
}

func insertSQL(op batch.Op) string {
	quoted := make([]string, len(op.Columns))
	ph := make([]string, len(op.Columns))
	for i, c := range op.Columns {
		quoted[i] = quoteIdent(c)
		ph[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(op.Table), strings.Join(quoted, ", "), strings.Join(ph, ", "))
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

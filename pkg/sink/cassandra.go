package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gocql/gocql"

	"github.com/probelab/spool-ingest/pkg/batch"
	"github.com/probelab/spool-ingest/pkg/logging"
)

// CassandraConfig holds connection settings for the measurement cluster.
type CassandraConfig struct {
	// Hosts are the cluster contact points.
	Hosts []string
	// Keyspace holds all measurement tables.
	Keyspace string
	// Username and Password authenticate against the cluster. Leaving both
	// empty disables authentication.
	Username string
	Password string
	// Timeout bounds individual queries.
	Timeout time.Duration
	// ConnectAttempts is how many times the initial session setup is tried
	// before giving up. On a rebooted host Cassandra usually comes up
	// slower than this service does.
	ConnectAttempts uint
	// ConnectDelay is the base delay between connect attempts.
	ConnectDelay time.Duration
}

// DefaultCassandraConfig returns settings matching a single local node.
func DefaultCassandraConfig() CassandraConfig {
	return CassandraConfig{
		Hosts:           []string{"127.0.0.1"},
		Keyspace:        "probe_data",
		Timeout:         30 * time.Second,
		ConnectAttempts: 5,
		ConnectDelay:    2 * time.Second,
	}
}

// Validate checks configuration values and returns an error for invalid settings.
func (c *CassandraConfig) Validate() error {
	if len(c.Hosts) == 0 {
		return fmt.Errorf("Hosts is required")
	}
	if c.Keyspace == "" {
		return fmt.Errorf("Keyspace is required")
	}
	if (c.Username == "") != (c.Password == "") {
		return fmt.Errorf("Username and Password must be set together")
	}
	if c.ConnectAttempts == 0 {
		return fmt.Errorf("ConnectAttempts must be positive")
	}
	return nil
}

// Cassandra writes each file's inserts as one logged batch, so the rows
// land together or not at all.
type Cassandra struct {
	session *gocql.Session
}

var _ Sink = (*Cassandra)(nil)

// NewCluster builds the gocql cluster settings shared by the ingest sink
// and the checkup queries.
func NewCluster(cfg CassandraConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.One
	cluster.Timeout = cfg.Timeout
	cluster.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: 3}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	return cluster
}

// OpenCassandra connects to the cluster, retrying with backoff while it
// comes up.
func OpenCassandra(ctx context.Context, cfg CassandraConfig) (*Cassandra, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logging.WithPhase("cassandra_connect")
	cluster := NewCluster(cfg)

	session, err := retry.DoWithData(
		func() (*gocql.Session, error) { return cluster.CreateSession() },
		retry.Context(ctx),
		retry.Attempts(cfg.ConnectAttempts),
		retry.Delay(cfg.ConnectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().
				Uint("attempt", n+1).
				Err(err).
				Msg("cassandra not reachable yet")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to cassandra %v: %w", cfg.Hosts, err)
	}

	log.Info().
		Strs("hosts", cfg.Hosts).
		Str("keyspace", cfg.Keyspace).
		Msg("connected to cassandra")

	return &Cassandra{session: session}, nil
}

// Write executes the batch as a single logged batch.
func (c *Cassandra) Write(ctx context.Context, b *batch.Batch) error {
	if len(b.Ops) == 0 {
		return nil
	}

	cb := c.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, op := range b.Ops {
		cb.Query(op.Statement(), op.Values...)
	}
	if err := c.session.ExecuteBatch(cb); err != nil {
		return fmt.Errorf("execute batch of %d inserts: %w", len(b.Ops), err)
	}
	return nil
}

// Close shuts down the session.
func (c *Cassandra) Close() error {
	c.session.Close()
	return nil
}

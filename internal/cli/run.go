package cli

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/probelab/spool-ingest/internal/logctx"
	"github.com/probelab/spool-ingest/pkg/ingest"
	"github.com/probelab/spool-ingest/pkg/logging"
	"github.com/probelab/spool-ingest/pkg/memdiag"
	"github.com/probelab/spool-ingest/pkg/sink"
	"github.com/probelab/spool-ingest/pkg/validate"
)

func runIngest(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	in := fs.String("in", "", "spool directory to watch")
	done := fs.String("done", "", "directory for ingested files (default <in>/done)")
	failed := fs.String("failed", "", "directory for rejected files (default <in>/failed)")
	interval := fs.Int("interval", 0, "seconds between scan passes (0 runs a single pass)")
	concurrency := fs.Int("concurrency", 1, "files processed at once")
	hosts := fs.String("hosts", "127.0.0.1", "comma-separated Cassandra contact points")
	keyspace := fs.String("keyspace", "probe_data", "Cassandra keyspace")
	user := fs.String("user", "", "database user")
	password := fs.String("password", "", "database password")
	authEnv := fs.Bool("auth-env", false, "read credentials from "+EnvDBUser+" and "+EnvDBPassword)
	sqlitePath := fs.String("sqlite", "", "write to a local SQLite file instead of Cassandra")
	dryRun := fs.Bool("dry-run", false, "print batches instead of writing them")
	debug := fs.Bool("debug", false, "enable debug logging")
	human := fs.Bool("human", false, "human-readable log output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logging.Init(*debug, *human)

	if *in == "" {
		return errors.New("--in is required")
	}

	memdiag.StartGlobal()
	defer memdiag.StopGlobal()

	cfg := ingest.Config{
		InDir:       *in,
		DoneDir:     *done,
		FailedDir:   *failed,
		Interval:    time.Duration(*interval) * time.Second,
		Concurrency: *concurrency,
		DryRun:      *dryRun,
		DryRunOut:   os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logctx.WithLogger(ctx, *logging.L())

	var s sink.Sink
	switch {
	case *dryRun:
		// Batches go to stdout, nothing to connect to.
	case *sqlitePath != "":
		sq, err := sink.OpenSQLite(sink.DefaultSQLiteConfig(*sqlitePath))
		if err != nil {
			return err
		}
		defer sq.Close()
		s = sq
	default:
		u, p, err := credentials(*user, *password, *authEnv)
		if err != nil {
			return err
		}
		ccfg := sink.DefaultCassandraConfig()
		ccfg.Hosts = splitHosts(*hosts)
		ccfg.Keyspace = *keyspace
		ccfg.Username = u
		ccfg.Password = p
		cs, err := sink.OpenCassandra(ctx, ccfg)
		if err != nil {
			return err
		}
		defer cs.Close()
		s = cs
	}

	r, err := ingest.NewRunner(cfg, s, validate.NewRegistry())
	if err != nil {
		return err
	}
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

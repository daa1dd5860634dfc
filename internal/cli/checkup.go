package cli

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/probelab/spool-ingest/pkg/checkup"
	"github.com/probelab/spool-ingest/pkg/logging"
	"github.com/probelab/spool-ingest/pkg/sink"
)

func runCheckup(args []string) error {
	fs := flag.NewFlagSet("checkup", flag.ContinueOnError)
	hosts := fs.String("hosts", "127.0.0.1", "comma-separated Cassandra contact points")
	keyspace := fs.String("keyspace", "", "Cassandra keyspace to inspect")
	timespan := fs.String("timespan", "", "event window, e.g. 30m, 12h, 2d, 1w")
	user := fs.String("user", "", "database user")
	password := fs.String("password", "", "database password")
	authEnv := fs.Bool("auth-env", false, "read credentials from "+EnvDBUser+" and "+EnvDBPassword)
	debug := fs.Bool("debug", false, "enable debug logging")
	human := fs.Bool("human", false, "human-readable log output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logging.Init(*debug, *human)

	if *keyspace == "" {
		return errors.New("--keyspace is required")
	}
	if *timespan == "" {
		return errors.New("--timespan is required")
	}
	span, err := checkup.ParseTimespan(*timespan)
	if err != nil {
		return err
	}

	u, p, err := credentials(*user, *password, *authEnv)
	if err != nil {
		return err
	}

	cfg := sink.DefaultCassandraConfig()
	cfg.Hosts = splitHosts(*hosts)
	cfg.Keyspace = *keyspace
	cfg.Username = u
	cfg.Password = p

	q, err := checkup.Open(cfg)
	if err != nil {
		return err
	}
	defer q.Close()

	rep, err := checkup.Run(context.Background(), q, span)
	if err != nil {
		return err
	}
	rep.Render(os.Stdout)
	return nil
}

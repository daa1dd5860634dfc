// Command spool-ingest watches a spool directory for measurement files
// and loads them into Cassandra.
package main

import (
	"fmt"
	"os"

	"github.com/probelab/spool-ingest/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

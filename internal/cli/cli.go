// Package cli implements the command-line interface for spool-ingest.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment variables honored by --auth-env.
const (
	EnvDBUser     = "SPOOL_DB_USER"
	EnvDBPassword = "SPOOL_DB_PASSWORD"
)

// Run executes the CLI with the given arguments.
func Run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: spool-ingest <command> [options]\ncommands: run, checkup")
	}

	switch args[0] {
	case "run":
		return runIngest(args[1:])
	case "checkup":
		return runCheckup(args[1:])
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// credentials resolves the database user and password. Explicit flags take
// precedence over the environment.
func credentials(user, password string, authEnv bool) (string, string, error) {
	if authEnv {
		envUser, ok := os.LookupEnv(EnvDBUser)
		if !ok {
			return "", "", fmt.Errorf("--auth-env set but %s is missing", EnvDBUser)
		}
		envPassword, ok := os.LookupEnv(EnvDBPassword)
		if !ok {
			return "", "", fmt.Errorf("--auth-env set but %s is missing", EnvDBPassword)
		}
		if user == "" {
			user = envUser
		}
		if password == "" {
			password = envPassword
		}
	}
	if user == "" || password == "" {
		return "", "", errors.New("provide --auth-env, or both --user and --password")
	}
	return user, password, nil
}

func splitHosts(s string) []string {
	parts := strings.Split(s, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		if h := strings.TrimSpace(p); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

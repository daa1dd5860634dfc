package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const pingLine = `{"DataId": "PROBE.EXP.PING", "NodeId": "45", "SequenceNumber": 1, "Rtt": 24.5, "Bytes": 84, "TimeStamp": 1700000000.5, "Guid": "g1", "Operator": "OpA", "Iccid": "89460000000000000001"}`

func writeSpoolFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestRunNoArgs(t *testing.T) {
	err := Run(nil)
	if err == nil {
		t.Fatal("expected error with no args")
	}
	if !strings.Contains(err.Error(), "usage") {
		t.Errorf("expected usage message, got: %v", err)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	err := Run([]string{"unknown"})
	if err == nil {
		t.Fatal("expected error with unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected 'unknown command' error, got: %v", err)
	}
}

func TestRunMissingIn(t *testing.T) {
	err := Run([]string{"run", "--dry-run"})
	if err == nil {
		t.Fatal("expected error with missing --in")
	}
	if !strings.Contains(err.Error(), "--in") {
		t.Errorf("expected '--in' error, got: %v", err)
	}
}

func TestRunMissingCredentials(t *testing.T) {
	os.Unsetenv(EnvDBUser)
	os.Unsetenv(EnvDBPassword)

	err := Run([]string{"run", "--in", t.TempDir()})
	if err == nil {
		t.Fatal("expected error with no credentials")
	}
	if !strings.Contains(err.Error(), "--user") {
		t.Errorf("expected credentials error, got: %v", err)
	}
}

func TestCheckupMissingKeyspace(t *testing.T) {
	err := Run([]string{"checkup", "--timespan", "2d"})
	if err == nil {
		t.Fatal("expected error with missing --keyspace")
	}
	if !strings.Contains(err.Error(), "--keyspace") {
		t.Errorf("expected '--keyspace' error, got: %v", err)
	}
}

func TestCheckupMissingTimespan(t *testing.T) {
	err := Run([]string{"checkup", "--keyspace", "probe_data"})
	if err == nil {
		t.Fatal("expected error with missing --timespan")
	}
	if !strings.Contains(err.Error(), "--timespan") {
		t.Errorf("expected '--timespan' error, got: %v", err)
	}
}

func TestCheckupBadTimespan(t *testing.T) {
	err := Run([]string{"checkup", "--keyspace", "probe_data", "--timespan", "5x"})
	if err == nil {
		t.Fatal("expected error with bad timespan")
	}
	if !strings.Contains(err.Error(), "invalid timespan") {
		t.Errorf("expected 'invalid timespan' error, got: %v", err)
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	os.Setenv(EnvDBUser, "envuser")
	os.Setenv(EnvDBPassword, "envpass")
	defer os.Unsetenv(EnvDBUser)
	defer os.Unsetenv(EnvDBPassword)

	user, password, err := credentials("", "", true)
	if err != nil {
		t.Fatalf("credentials error: %v", err)
	}
	if user != "envuser" || password != "envpass" {
		t.Errorf("got %q/%q, want envuser/envpass", user, password)
	}
}

func TestCredentialsFlagOverridesEnv(t *testing.T) {
	os.Setenv(EnvDBUser, "envuser")
	os.Setenv(EnvDBPassword, "envpass")
	defer os.Unsetenv(EnvDBUser)
	defer os.Unsetenv(EnvDBPassword)

	user, password, err := credentials("cliuser", "", true)
	if err != nil {
		t.Fatalf("credentials error: %v", err)
	}
	if user != "cliuser" {
		t.Errorf("user = %q, want cliuser", user)
	}
	if password != "envpass" {
		t.Errorf("password = %q, want envpass", password)
	}
}

func TestCredentialsMissingEnv(t *testing.T) {
	os.Unsetenv(EnvDBUser)
	os.Unsetenv(EnvDBPassword)

	_, _, err := credentials("", "", true)
	if err == nil {
		t.Fatal("expected error with missing env vars")
	}
	if !strings.Contains(err.Error(), EnvDBUser) {
		t.Errorf("expected %s in error, got: %v", EnvDBUser, err)
	}
}

func TestCredentialsFlagsOnly(t *testing.T) {
	user, password, err := credentials("u", "p", false)
	if err != nil {
		t.Fatalf("credentials error: %v", err)
	}
	if user != "u" || password != "p" {
		t.Errorf("got %q/%q, want u/p", user, password)
	}

	if _, _, err := credentials("u", "", false); err == nil {
		t.Error("expected error with password missing")
	}
}

func TestSplitHosts(t *testing.T) {
	got := splitHosts("10.0.0.1, 10.0.0.2,,10.0.0.3")
	want := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitHosts = %v, want %v", got, want)
	}
}

func TestRunDryRunSinglePass(t *testing.T) {
	dir := t.TempDir()
	path := writeSpoolFile(t, dir, "45_ping.json", pingLine+"\n")

	if err := Run([]string{"run", "--in", dir, "--dry-run"}); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	// Dry run leaves the spool untouched.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to stay in place: %v", path, err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "done"))
	if err != nil {
		t.Fatalf("read done dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("done dir has %d entries, want 0", len(entries))
	}
}

func TestRunSQLiteSinglePass(t *testing.T) {
	dir := t.TempDir()
	writeSpoolFile(t, dir, "45_ping.json", pingLine+"\n")
	dbPath := filepath.Join(t.TempDir(), "spool.db")

	if err := Run([]string{"run", "--in", dir, "--sqlite", dbPath}); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("expected database at %s: %v", dbPath, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "done", "45_ping.json")); err != nil {
		t.Errorf("expected file in done dir: %v", err)
	}
}

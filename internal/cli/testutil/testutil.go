// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/bridgeport/internal/cli/config"
	"github.com/spf13/cobra"
)

// legacyVars are the unprefixed variables the config loader reads.
var legacyVars = []string{"PORT", "BRIDGE", "MONGODB_READ_CREDS", "MONGODB_WRITE_CREDS", "MONGODB_DATABASE"}

// Isolate clears configuration from the environment, moves to an empty
// working directory and resets the loaded configuration after the test.
func Isolate(t *testing.T) string {
	t.Helper()

	for _, name := range legacyVars {
		t.Setenv(name, "")
	}
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) {
			t.Setenv(name, "")
			_ = os.Unsetenv(name)
		}
	}

	dir := t.TempDir()
	t.Chdir(dir)
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	return dir
}

// WriteConfig writes bridgeport.yaml into dir and returns its path.
func WriteConfig(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "bridgeport.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// Result holds the captured output of a command run.
type Result struct {
	Stdout string
	Stderr string
	Err    error
}

// Run executes cmd with args, feeding stdin, and captures its output.
func Run(t *testing.T, cmd *cobra.Command, stdin string, args ...string) Result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

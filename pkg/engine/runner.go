package engine

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

// Runner abstracts process invocation and PATH lookups so the pipeline can
// be exercised in tests without touching the host. The real implementation
// is ExecRunner.
type Runner interface {
	// Run invokes a command with inherited stdio and blocks until it exits.
	Run(ctx context.Context, name string, args ...string) error

	// Output invokes a command and returns its trimmed stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)

	// LookPath resolves a command name on the executable search path.
	LookPath(name string) (string, error)
}

// ExecRunner runs commands on the host via os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Output implements Runner.
func (ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	return strings.TrimSpace(string(out)), err
}

// LookPath implements Runner.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

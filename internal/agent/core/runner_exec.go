package core

import (
	"context"
	"os/exec"
	"strings"
)

// execRunner runs commands on the host through os/exec.
type execRunner struct{}

// NewExecRunner returns the production CommandRunner.
func NewExecRunner() CommandRunner {
	return &execRunner{}
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (r *execRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *execRunner) StartDetached(ctx context.Context, name string, args ...string) error {
	// Deliberately not CommandContext: the child must outlive the agent's
	// request scope (the installer may restart the agent itself).
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}

	// Reap the child in the background so it does not linger as a zombie.
	go func() { _ = cmd.Wait() }()

	return nil
}

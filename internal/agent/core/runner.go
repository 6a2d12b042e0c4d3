package core

import (
	"context"
)

// CommandRunner is the outbound port for privileged or scripted actions the
// agent delegates to the host system (connectivity probing, installer launch,
// reboot). Injectable so tests can record invocations instead of executing.
type CommandRunner interface {
	// Run executes a command and waits for it, returning an error on
	// non-zero exit status.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes a command and returns its trimmed standard output.
	Output(ctx context.Context, name string, args ...string) (string, error)

	// StartDetached launches a command without waiting for completion.
	// The returned error reflects the launch only, never the outcome.
	StartDetached(ctx context.Context, name string, args ...string) error
}

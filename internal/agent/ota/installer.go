package ota

import (
	"context"
	"fmt"

	"github.com/powerdock-io/powerdock/internal/agent/core"
	"github.com/powerdock-io/powerdock/internal/pkg/metrics"
	"github.com/powerdock-io/powerdock/pkg/log"
)

// Installer launches the external update installer as a detached command.
// The install itself is a black box; success means the command launched, not
// that the update completed.
type Installer struct {
	runner  core.CommandRunner
	command []string
	owner   string
	repo    string
}

// NewInstaller builds an installer around the configured command. The owner,
// repo and version are appended to the command's argv on launch.
func NewInstaller(runner core.CommandRunner, command []string, owner, repo string) *Installer {
	return &Installer{
		runner:  runner,
		command: command,
		owner:   owner,
		repo:    repo,
	}
}

// Launch starts the installer for the given version and returns the launch
// outcome. It never waits for the install to finish.
func (i *Installer) Launch(ctx context.Context, version string) error {
	if len(i.command) == 0 {
		return fmt.Errorf("no installer command configured")
	}

	argv := append(append([]string{}, i.command...), i.owner, i.repo, version)
	log.Info("Launching update installer", "argv", argv)

	if err := i.runner.StartDetached(ctx, argv[0], argv[1:]...); err != nil {
		metrics.InstallerLaunchesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("installer launch failed: %w", err)
	}

	metrics.InstallerLaunchesTotal.WithLabelValues("started").Inc()
	return nil
}

// Package sysctl wraps the host power-management commands the control
// surface exposes.
package sysctl

import (
	"context"

	"github.com/powerdock-io/powerdock/internal/agent/core"
	"github.com/powerdock-io/powerdock/pkg/log"
)

// Controller issues reboot and shutdown requests to the host. The agent
// runs unprivileged; the sudoers policy on the unit whitelists exactly
// these two invocations.
type Controller struct {
	runner core.CommandRunner
	logger log.Logger
}

func NewController(runner core.CommandRunner, logger log.Logger) *Controller {
	return &Controller{runner: runner, logger: logger.WithName("sysctl")}
}

func (c *Controller) Reboot(ctx context.Context) error {
	c.logger.Info("reboot requested")
	return c.runner.Run(ctx, "sudo", "reboot")
}

func (c *Controller) Shutdown(ctx context.Context) error {
	c.logger.Info("shutdown requested")
	return c.runner.Run(ctx, "sudo", "shutdown", "-h", "now")
}

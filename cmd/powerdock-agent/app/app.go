package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/powerdock-io/powerdock/cmd/powerdock-agent/app/options"
	"github.com/powerdock-io/powerdock/internal/agent"
	"github.com/powerdock-io/powerdock/pkg/log"
)

const commandDesc = `The PowerDock agent runs on the charger unit. It ingests the charge
controller's telemetry feed, drives the module display, checks the release
channel for firmware updates, and exposes the local control API the on-device
GUI talks to.`

func NewAgentCommand() *cobra.Command {
	opts := options.NewAgentOptions()

	cmd := &cobra.Command{
		Use:          "powerdock-agent",
		Short:        "Launch the PowerDock device agent",
		Long:         commandDesc,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if errs := opts.Validate(); len(errs) > 0 {
				return fmt.Errorf("invalid options: %v", errs)
			}
			return run(opts)
		},
		Args: cobra.NoArgs,
	}

	opts.AddFlags(cmd.Flags())

	return cmd
}

func run(opts *options.AgentOptions) error {
	log.Init(opts.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := opts.Config()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	a, err := agent.New(cfg, agent.Options{
		Http: opts.Http,
		Mqtt: opts.Mqtt,
	}, log.Std())
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return a.Run(ctx)
}

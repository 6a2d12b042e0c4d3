package agent

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/powerdock-io/powerdock/internal/agent/connectivity"
	"github.com/powerdock-io/powerdock/internal/agent/core"
	"github.com/powerdock-io/powerdock/internal/agent/display"
	"github.com/powerdock-io/powerdock/internal/agent/notifier"
	"github.com/powerdock-io/powerdock/internal/agent/ota"
	"github.com/powerdock-io/powerdock/internal/agent/server"
	"github.com/powerdock-io/powerdock/internal/agent/sysctl"
	"github.com/powerdock-io/powerdock/internal/agent/telemetry"
	"github.com/powerdock-io/powerdock/pkg/log"
	"github.com/powerdock-io/powerdock/pkg/mqtt"
	"github.com/powerdock-io/powerdock/pkg/options"
)

// Options bundles the process-level option groups the command layer
// collects.
type Options struct {
	Http *options.HttpOptions
	Mqtt *options.MqttOptions
}

// Agent owns every long-running piece of the device daemon and implements
// the control surface the HTTP server exposes.
type Agent struct {
	cfg    *Config
	opts   Options
	logger log.Logger

	mqttClient   mqtt.Client
	orchestrator *ota.Orchestrator
	ingestor     *telemetry.Ingestor
	stats        *telemetry.StatsReader
	watcher      *telemetry.Watcher
	power        *sysctl.Controller
	httpServer   *server.Server
}

// New assembles the agent from configuration. Nothing is started; Run does
// that.
func New(cfg *Config, opts Options, logger log.Logger) (*Agent, error) {
	a := &Agent{cfg: cfg, opts: opts, logger: logger}

	runner := core.NewExecRunner()

	surfaces := []core.Display{display.NewLogDisplay(logger)}
	if opts.Mqtt.Enabled() {
		mqttCfg := opts.Mqtt.ToClientConfig()
		mqttCfg.WillTopic = opts.Mqtt.TopicRoot + "/" + cfg.deviceID() + "/presence"
		mqttCfg.WillPayload = []byte("offline")
		mqttCfg.WillQoS = 1
		mqttCfg.WillRetain = true

		client, err := mqtt.NewClient(mqttCfg)
		if err != nil {
			return nil, err
		}
		a.mqttClient = client
		surfaces = append(surfaces,
			notifier.NewMqttNotifier(client, opts.Mqtt.TopicRoot, cfg.deviceID(), logger))
	}
	disp := display.NewFanout(surfaces...)

	probe := connectivity.NewProbe(runner, cfg.WirelessInterface)
	releases := ota.NewReleaseClient(cfg.APIBaseURL, cfg.RepoOwner, cfg.RepoName, cfg.InsecureSkipVerify)
	installer := ota.NewInstaller(runner, cfg.InstallCommand, cfg.RepoOwner, cfg.RepoName)

	loadToken := func() string { return "" }
	if cfg.TokenFile != "" {
		tokenFile := cfg.TokenFile
		loadToken = func() string { return ota.LoadToken(tokenFile) }
	}

	a.orchestrator = ota.NewOrchestrator(
		disp, probe, releases, installer, loadToken, ota.ParseVersion(cfg.CurrentVersion))

	a.ingestor = telemetry.NewIngestor(telemetry.Config{
		FeedFile:    cfg.FeedFile,
		ModuleCount: cfg.ModuleCount,
		VMin:        cfg.VMin,
		VMax:        cfg.VMax,
	}, disp, logger)
	a.stats = telemetry.NewStatsReader(cfg.StatsFile, cfg.ModuleCount, disp, logger)
	a.watcher = telemetry.NewWatcher(cfg.FeedFile, logger)

	a.power = sysctl.NewController(runner, logger)

	if opts.Http.Enabled {
		a.httpServer = server.New(opts.Http, a, logger)
	}

	return a, nil
}

// Run starts every component and blocks until the context is cancelled or a
// component fails fatally.
func (a *Agent) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.mqttClient != nil {
		if err := a.mqttClient.Start(ctx); err != nil {
			// Reporting is optional; the charger must keep working with
			// the broker down.
			a.logger.Warn("mqtt connection not started", "err", err.Error())
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			a.mqttClient.Disconnect(dctx)
		}()

		g.Go(func() error { return a.announcePresence(ctx) })
	}

	if a.httpServer != nil {
		g.Go(func() error { return a.httpServer.Run(ctx) })
	}

	g.Go(func() error { return a.watcher.Run(ctx) })
	g.Go(func() error { return a.runTelemetryLoop(ctx) })
	g.Go(func() error { return a.runStatsLoop(ctx) })

	g.Go(func() error {
		a.orchestrator.StartupCheck(ctx, a.cfg.UpdateChecksEnabled)
		return nil
	})

	a.logger.Info("agent running",
		"modules", a.cfg.ModuleCount,
		"feed", a.cfg.FeedFile,
		"repo", a.cfg.RepoOwner+"/"+a.cfg.RepoName,
		"version", a.cfg.CurrentVersion,
	)

	return g.Wait()
}

// announcePresence publishes the retained online marker once the broker
// connection is up. The will registered at connect time flips it back to
// offline if the agent disappears.
func (a *Agent) announcePresence(ctx context.Context) error {
	if err := a.mqttClient.AwaitConnection(ctx); err != nil {
		return nil
	}
	topic := a.opts.Mqtt.TopicRoot + "/" + a.cfg.deviceID() + "/presence"
	if err := a.mqttClient.Publish(ctx, topic, 1, true, []byte("online")); err != nil {
		a.logger.Debug("presence publish failed", "err", err.Error())
	}
	return nil
}

// runTelemetryLoop polls the feed on a fixed cadence and additionally
// whenever the watcher reports a change.
func (a *Agent) runTelemetryLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.ingestor.Poll()
		case <-a.watcher.Nudges():
			a.ingestor.Poll()
		}
	}
}

func (a *Agent) runStatsLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.StatsInterval)
	defer ticker.Stop()

	a.stats.Poll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.stats.Poll()
		}
	}
}

// Control surface, consumed by the HTTP server.

func (a *Agent) CheckForUpdate(ctx context.Context) { a.orchestrator.CheckForUpdate(ctx) }
func (a *Agent) ConfirmUpdate(ctx context.Context)  { a.orchestrator.Confirm(ctx) }
func (a *Agent) CancelUpdate(ctx context.Context)   { a.orchestrator.Cancel(ctx) }

func (a *Agent) UpdateState() (string, string) {
	return a.orchestrator.State(), a.orchestrator.PendingVersion()
}

func (a *Agent) Reboot(ctx context.Context) error   { return a.power.Reboot(ctx) }
func (a *Agent) Shutdown(ctx context.Context) error { return a.power.Shutdown(ctx) }

func (c *Config) deviceID() string {
	if c.DeviceID != "" {
		return c.DeviceID
	}
	host, err := os.Hostname()
	if err != nil {
		return "powerdock"
	}
	return host
}

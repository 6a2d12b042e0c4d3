package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/powerdock-io/powerdock/internal/agent/core"
	"github.com/powerdock-io/powerdock/internal/pkg/metrics"
	"github.com/powerdock-io/powerdock/pkg/log"
)

const (
	// minFeedSize is the plausibility floor for the telemetry feed. The
	// charge controller writes the file non-atomically, so a short read
	// usually means we raced a truncate+write cycle.
	minFeedSize = 50

	// voltageWarnInterval spaces per-module voltage warnings.
	voltageWarnInterval = 60 * time.Second
)

// moduleSample is the per-module slice of the feed the ingestor cares
// about. Everything else in the entry is preserved by the controller for
// other consumers and ignored here.
type moduleSample struct {
	BusVoltage *float64 `json:"bus_voltage"`
}

// Config carries the tunables of the telemetry ingestor.
type Config struct {
	// FeedFile is the path of the JSON telemetry feed.
	FeedFile string

	// ModuleCount is the number of charge modules the display exposes.
	ModuleCount int

	// VMin and VMax bound the charge percentage mapping.
	VMin float64
	VMax float64
}

// Ingestor polls the charge-controller telemetry feed and pushes per-module
// charge state to the display. It is resilient by construction: every
// failure mode is a skipped poll, never an error return.
type Ingestor struct {
	cfg     Config
	display core.Display
	logger  log.Logger

	// now is the clock, injectable for tests.
	now func() time.Time

	health IngestionHealth

	// voltageWarn holds one limiter per module so a single misbehaving
	// module cannot suppress warnings from its neighbors.
	voltageWarn []RateLimiter

	// feedReadable is true once a poll has found a plausible feed, so the
	// missing/short skip logs only on the healthy-to-missing transition and
	// stays silent on a feed that has never appeared.
	feedReadable bool

	// warnedExtraModules latches the oversized-feed diagnostic.
	warnedExtraModules bool
}

func NewIngestor(cfg Config, display core.Display, logger log.Logger) *Ingestor {
	warn := make([]RateLimiter, cfg.ModuleCount)
	for i := range warn {
		warn[i] = NewRateLimiter(voltageWarnInterval)
	}

	return &Ingestor{
		cfg:         cfg,
		display:     display,
		logger:      logger.WithName("telemetry"),
		now:         time.Now,
		health:      NewIngestionHealth(),
		voltageWarn: warn,
	}
}

// Poll reads the feed once and pushes whatever valid module samples it
// finds to the display. Invalid polls leave the display untouched; the last
// good values remain visible.
func (ing *Ingestor) Poll() {
	info, err := os.Stat(ing.cfg.FeedFile)
	if err != nil {
		// Feed absent is the normal state before the controller has
		// produced its first sample. Not a failure either way.
		ing.skipFeed("missing", fmt.Sprintf("telemetry feed gone: %v", err))
		return
	}

	if info.Size() < minFeedSize {
		// Probably a torn write. Skip without touching the failure
		// streak so a slow writer does not look like an outage.
		ing.skipFeed("short", fmt.Sprintf("telemetry feed below plausibility floor: %d bytes", info.Size()))
		return
	}
	ing.feedReadable = true

	data, err := os.ReadFile(ing.cfg.FeedFile)
	if err != nil {
		ing.failPoll("read", fmt.Sprintf("telemetry feed read failed: %v", err))
		return
	}

	ing.ingest(data)
}

func (ing *Ingestor) ingest(data []byte) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		ing.failPoll("parse", fmt.Sprintf("telemetry feed is not a JSON object: %v", err))
		return
	}

	rawModules, ok := root["modules"]
	if !ok {
		ing.failPoll("parse", "telemetry feed has no modules array")
		return
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rawModules, &entries); err != nil {
		ing.failPoll("parse", fmt.Sprintf("telemetry modules field is not an array: %v", err))
		return
	}

	if len(entries) > ing.cfg.ModuleCount {
		if !ing.warnedExtraModules {
			ing.warnedExtraModules = true
			ing.logger.Warn("telemetry feed has more modules than the display",
				"feed", len(entries), "display", ing.cfg.ModuleCount)
		}
		entries = entries[:ing.cfg.ModuleCount]
	}

	now := ing.now()
	for i, raw := range entries {
		var sample moduleSample
		if err := json.Unmarshal(raw, &sample); err != nil {
			// One malformed entry does not poison the poll; the
			// remaining modules still update.
			ing.warnVoltage(i, "malformed", now,
				fmt.Sprintf("module %d entry malformed: %v", i+1, err))
			continue
		}
		if sample.BusVoltage == nil {
			ing.warnVoltage(i, "missing", now,
				fmt.Sprintf("module %d has no bus_voltage", i+1))
			continue
		}

		voltage := *sample.BusVoltage
		if voltage < ing.cfg.VMin || voltage > ing.cfg.VMax {
			ing.warnVoltage(i, "out_of_range", now,
				fmt.Sprintf("module %d bus_voltage %.2f outside [%.1f, %.1f]",
					i+1, voltage, ing.cfg.VMin, ing.cfg.VMax))
		}

		ing.display.UpdateModule(i, ing.percent(voltage), voltage)
	}

	metrics.TelemetryPollsTotal.WithLabelValues("ok").Inc()
	metrics.TelemetryConsecutiveFailures.Set(0)
	if ing.health.Recover() {
		ing.logger.Info("telemetry feed recovered")
	}
}

// percent maps a bus voltage onto the display's 0-100 charge scale,
// clamped at both ends.
func (ing *Ingestor) percent(voltage float64) int {
	span := ing.cfg.VMax - ing.cfg.VMin
	if span <= 0 {
		return 0
	}
	p := math.Round(100 * (voltage - ing.cfg.VMin) / span)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p)
}

// skipFeed records a skipped poll, logging only when this skip is a
// transition away from a previously-readable feed.
func (ing *Ingestor) skipFeed(outcome, msg string) {
	if ing.feedReadable {
		ing.feedReadable = false
		ing.logger.Debug(msg)
	}
	metrics.TelemetryPollsTotal.WithLabelValues(outcome).Inc()
}

func (ing *Ingestor) failPoll(outcome, msg string) {
	metrics.TelemetryPollsTotal.WithLabelValues(outcome).Inc()
	metrics.TelemetryConsecutiveFailures.Set(float64(ing.health.ConsecutiveFailures + 1))

	if ing.health.Fail(ing.now()) {
		ing.logger.Warn(msg, "consecutiveFailures", ing.health.ConsecutiveFailures)
	}
}

func (ing *Ingestor) warnVoltage(index int, kind string, now time.Time, msg string) {
	metrics.VoltageWarningsTotal.WithLabelValues(fmt.Sprintf("%d", index+1), kind).Inc()

	if index < len(ing.voltageWarn) && ing.voltageWarn[index].Allow(now) {
		ing.logger.Warn(msg)
	}
}

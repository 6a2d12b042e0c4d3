// Package display provides the surfaces the agent core pushes state to. The
// log surface is always present; richer surfaces (the MQTT notifier, a local
// GUI talking over the control API) are layered on via the fanout.
package display

import (
	"github.com/powerdock-io/powerdock/internal/agent/core"
	"github.com/powerdock-io/powerdock/pkg/log"
)

// LogDisplay renders display traffic into the structured log. It is the
// fallback surface on headless units and the audit trail everywhere else.
// Module updates are logged at debug only: at the poll cadence they would
// drown everything else.
type LogDisplay struct {
	logger log.Logger
}

func NewLogDisplay(logger log.Logger) *LogDisplay {
	return &LogDisplay{logger: logger.WithName("display")}
}

func (d *LogDisplay) PresentMessage(text string, severity core.Severity) {
	switch severity {
	case core.SeverityError:
		d.logger.Warn(text, "severity", string(severity))
	case core.SeverityWarning:
		d.logger.Warn(text, "severity", string(severity))
	default:
		d.logger.Info(text, "severity", string(severity))
	}
}

func (d *LogDisplay) PresentUpdateDecision(version string) {
	d.logger.Info("update available, awaiting confirmation", "version", version)
}

func (d *LogDisplay) UpdateModule(index, percent int, voltage float64) {
	d.logger.Debug("module state", "module", index+1, "percent", percent, "voltage", voltage)
}

func (d *LogDisplay) UpdateBatteryDetail(detail core.BatteryDetail) {
	d.logger.Debug("battery detail",
		"module", detail.ModuleID,
		"chargingTime", detail.ChargingTime,
		"energy", detail.EnergyWh,
		"charge", detail.Charge,
		"health", detail.Health,
	)
}

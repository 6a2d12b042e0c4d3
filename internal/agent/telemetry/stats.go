package telemetry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/powerdock-io/powerdock/internal/agent/core"
	"github.com/powerdock-io/powerdock/pkg/log"
)

// batteryStats mirrors the per-module entries of the statistics file the
// charge controller maintains alongside the live feed. All fields are
// pointers so a missing value renders as N/A rather than zero.
type batteryStats struct {
	ChargingSeconds *int64   `json:"charging_time_s"`
	EnergyWh        *float64 `json:"energy_wh"`
	ChargeAh        *float64 `json:"charge_ah"`
	MinTempC        *float64 `json:"min_temp_c"`
	MaxTempC        *float64 `json:"max_temp_c"`
	HealthPct       *float64 `json:"health_pct"`
	ChargePct       *float64 `json:"charge_pct"`
}

type statsFile struct {
	Modules []batteryStats `json:"modules"`
}

// StatsReader loads accumulated battery statistics and pushes detail rows
// to the display. Unlike the live feed this file changes slowly, so it is
// polled on its own, longer cadence.
type StatsReader struct {
	path        string
	moduleCount int
	display     core.Display
	logger      log.Logger

	warnedMissing bool
}

func NewStatsReader(path string, moduleCount int, display core.Display, logger log.Logger) *StatsReader {
	return &StatsReader{
		path:        path,
		moduleCount: moduleCount,
		display:     display,
		logger:      logger.WithName("stats"),
	}
}

// Poll reads the statistics file once. An unreadable file clears the panel
// to N/A rather than leaving stale numbers on screen.
func (s *StatsReader) Poll() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !s.warnedMissing {
			s.warnedMissing = true
			s.logger.Debug("battery statistics unavailable", "path", s.path, "err", err.Error())
			for i := 0; i < s.moduleCount; i++ {
				s.display.UpdateBatteryDetail(formatDetail(i, batteryStats{}))
			}
		}
		return
	}
	s.warnedMissing = false

	var file statsFile
	if err := json.Unmarshal(data, &file); err != nil {
		s.logger.Debug("battery statistics malformed", "err", err.Error())
		return
	}

	n := len(file.Modules)
	if n > s.moduleCount {
		n = s.moduleCount
	}

	for i := 0; i < n; i++ {
		s.display.UpdateBatteryDetail(formatDetail(i, file.Modules[i]))
	}
}

// formatDetail renders one module's statistics into display-ready strings.
// Formatting lives here, not in the display, so every surface shows the
// same text.
func formatDetail(index int, st batteryStats) core.BatteryDetail {
	return core.BatteryDetail{
		ModuleID:     index + 1,
		ChargingTime: formatDuration(st.ChargingSeconds),
		EnergyWh:     formatUnit(st.EnergyWh, "%.2f Wh"),
		ChargeAh:     formatUnit(st.ChargeAh, "%.3f Ah"),
		MinTemp:      formatUnit(st.MinTempC, "%.1f C"),
		MaxTemp:      formatUnit(st.MaxTempC, "%.1f C"),
		Health:       formatUnit(st.HealthPct, "%.1f %%"),
		Charge:       formatUnit(st.ChargePct, "%.1f %%"),
	}
}

func formatDuration(seconds *int64) string {
	if seconds == nil || *seconds < 0 {
		return "N/A"
	}
	s := *seconds
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

func formatUnit(v *float64, format string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}

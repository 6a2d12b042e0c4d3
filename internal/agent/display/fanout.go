package display

import "github.com/powerdock-io/powerdock/internal/agent/core"

// Fanout replicates display traffic to several surfaces. Display calls are
// fire-and-forget, so there is nothing to aggregate; each surface simply
// sees every call in order.
type Fanout struct {
	surfaces []core.Display
}

func NewFanout(surfaces ...core.Display) *Fanout {
	return &Fanout{surfaces: surfaces}
}

func (f *Fanout) PresentMessage(text string, severity core.Severity) {
	for _, s := range f.surfaces {
		s.PresentMessage(text, severity)
	}
}

func (f *Fanout) PresentUpdateDecision(version string) {
	for _, s := range f.surfaces {
		s.PresentUpdateDecision(version)
	}
}

func (f *Fanout) UpdateModule(index, percent int, voltage float64) {
	for _, s := range f.surfaces {
		s.UpdateModule(index, percent, voltage)
	}
}

func (f *Fanout) UpdateBatteryDetail(detail core.BatteryDetail) {
	for _, s := range f.surfaces {
		s.UpdateBatteryDetail(detail)
	}
}

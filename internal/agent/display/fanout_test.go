package display

import (
	"testing"

	"github.com/powerdock-io/powerdock/internal/agent/core"
)

type countingDisplay struct {
	messages  int
	decisions int
	modules   int
	details   int
}

func (d *countingDisplay) PresentMessage(string, core.Severity)   { d.messages++ }
func (d *countingDisplay) PresentUpdateDecision(string)           { d.decisions++ }
func (d *countingDisplay) UpdateModule(int, int, float64)         { d.modules++ }
func (d *countingDisplay) UpdateBatteryDetail(core.BatteryDetail) { d.details++ }

func TestFanoutReachesEverySurface(t *testing.T) {
	a, b := &countingDisplay{}, &countingDisplay{}
	f := NewFanout(a, b)

	f.PresentMessage("Software is up to date", core.SeverityInfo)
	f.PresentUpdateDecision("1.0.4")
	f.UpdateModule(0, 50, 19.5)
	f.UpdateBatteryDetail(core.BatteryDetail{ModuleID: 1})

	for i, d := range []*countingDisplay{a, b} {
		if d.messages != 1 || d.decisions != 1 || d.modules != 1 || d.details != 1 {
			t.Errorf("surface %d saw %+v, want one of each", i, *d)
		}
	}
}

func TestFanoutWithoutSurfaces(t *testing.T) {
	f := NewFanout()
	f.PresentMessage("ok", core.SeverityInfo)
	f.UpdateModule(0, 0, 18.0)
}

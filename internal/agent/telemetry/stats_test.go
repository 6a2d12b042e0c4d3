package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/powerdock-io/powerdock/pkg/log"
)

func TestStatsPollFormatsDetails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battery_stats.json")
	content := `{"modules": [{
		"charging_time_s": 3725,
		"energy_wh": 12.3456,
		"charge_ah": 0.98765,
		"min_temp_c": 21.04,
		"max_temp_c": 33.96,
		"health_pct": 97.5,
		"charge_pct": 50.0
	}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	disp := &recordingDisplay{}
	NewStatsReader(path, 8, disp, log.NewNopLogger()).Poll()

	if len(disp.details) != 1 {
		t.Fatalf("got %d detail rows, want 1", len(disp.details))
	}
	got := disp.details[0]
	if got.ModuleID != 1 {
		t.Errorf("ModuleID = %d, want 1", got.ModuleID)
	}
	if got.ChargingTime != "01:02:05" {
		t.Errorf("ChargingTime = %q, want %q", got.ChargingTime, "01:02:05")
	}
	if got.EnergyWh != "12.35 Wh" {
		t.Errorf("EnergyWh = %q, want %q", got.EnergyWh, "12.35 Wh")
	}
	if got.ChargeAh != "0.988 Ah" {
		t.Errorf("ChargeAh = %q, want %q", got.ChargeAh, "0.988 Ah")
	}
	if got.MinTemp != "21.0 C" {
		t.Errorf("MinTemp = %q, want %q", got.MinTemp, "21.0 C")
	}
	if got.MaxTemp != "34.0 C" {
		t.Errorf("MaxTemp = %q, want %q", got.MaxTemp, "34.0 C")
	}
	if got.Health != "97.5 %" {
		t.Errorf("Health = %q, want %q", got.Health, "97.5 %")
	}
	if got.Charge != "50.0 %" {
		t.Errorf("Charge = %q, want %q", got.Charge, "50.0 %")
	}
}

func TestStatsPollMissingFieldsRenderNA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battery_stats.json")
	if err := os.WriteFile(path, []byte(`{"modules": [{"energy_wh": 1.0}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	disp := &recordingDisplay{}
	NewStatsReader(path, 8, disp, log.NewNopLogger()).Poll()

	if len(disp.details) != 1 {
		t.Fatalf("got %d detail rows, want 1", len(disp.details))
	}
	got := disp.details[0]
	if got.ChargingTime != "N/A" || got.Health != "N/A" || got.Charge != "N/A" {
		t.Errorf("missing fields should render as N/A, got %+v", got)
	}
	if got.EnergyWh != "1.00 Wh" {
		t.Errorf("EnergyWh = %q, want %q", got.EnergyWh, "1.00 Wh")
	}
}

func TestStatsPollMissingFileClearsPanel(t *testing.T) {
	disp := &recordingDisplay{}
	r := NewStatsReader(filepath.Join(t.TempDir(), "absent.json"), 3, disp, log.NewNopLogger())

	r.Poll()

	// One N/A row per module, pushed once on the transition.
	if len(disp.details) != 3 {
		t.Fatalf("missing file produced %d detail rows, want 3", len(disp.details))
	}
	for _, d := range disp.details {
		if d.ChargingTime != "N/A" || d.EnergyWh != "N/A" || d.Charge != "N/A" {
			t.Errorf("detail row not cleared: %+v", d)
		}
	}

	r.Poll()
	if len(disp.details) != 3 {
		t.Fatalf("second poll pushed more rows: %d", len(disp.details))
	}
}

func TestStatsPollTruncatesExtraModules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battery_stats.json")
	content := `{"modules": [{"charge_pct": 1.0}, {"charge_pct": 2.0}, {"charge_pct": 3.0}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	disp := &recordingDisplay{}
	NewStatsReader(path, 2, disp, log.NewNopLogger()).Poll()

	if len(disp.details) != 2 {
		t.Fatalf("got %d detail rows with moduleCount=2, want 2", len(disp.details))
	}
}

package core

// Severity classifies a user-visible status message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// BatteryDetail carries pre-formatted strings for the per-module detail view.
// Formatting happens in the core so every display implementation renders the
// same text ("N/A" included).
type BatteryDetail struct {
	ModuleID     int
	ChargingTime string
	EnergyWh     string
	ChargeAh     string
	MinTemp      string
	MaxTemp      string
	Health       string
	Charge       string
}

// Display is the outbound port to the GUI process. All calls are
// fire-and-forget: the core never consumes a return value from the surface.
type Display interface {
	// PresentMessage shows a short transient status message.
	PresentMessage(text string, severity Severity)

	// PresentUpdateDecision asks the user to confirm or cancel installing
	// the given version. The answer arrives later through the update
	// orchestrator's Confirm/Cancel entry points.
	PresentUpdateDecision(version string)

	// UpdateModule pushes one module's charge percentage and raw bus
	// voltage to the surface.
	UpdateModule(index int, percent int, voltage float64)

	// UpdateBatteryDetail refreshes the statistics panel for one module.
	UpdateBatteryDetail(detail BatteryDetail)
}

// Package connectivity answers "is there route-level network connectivity"
// by consulting the host's network management tooling. Every check is
// advisory: a missing tool or non-zero exit is "unknown" and the probe falls
// through to the next check instead of failing outright.
package connectivity

import (
	"context"
	"strings"

	"github.com/powerdock-io/powerdock/internal/agent/core"
	"github.com/powerdock-io/powerdock/internal/pkg/metrics"
	"github.com/powerdock-io/powerdock/pkg/log"
)

// Probe checks OS-level connectivity indicators through the command runner.
// It mutates nothing and never retries; callers invoke it synchronously on
// demand.
type Probe struct {
	runner core.CommandRunner

	// iface is the primary wireless interface, wlan0 by default.
	iface string
}

func NewProbe(runner core.CommandRunner, iface string) *Probe {
	if iface == "" {
		iface = "wlan0"
	}
	return &Probe{runner: runner, iface: iface}
}

// HasConnectivity runs the check sequence and returns true as soon as one
// check affirmatively establishes connectivity. It returns false only when
// no check could.
func (p *Probe) HasConnectivity(ctx context.Context) bool {
	connected := p.hasConnectivity(ctx)

	if connected {
		metrics.ConnectivityStatus.Set(1)
	} else {
		metrics.ConnectivityStatus.Set(0)
	}

	return connected
}

func (p *Probe) hasConnectivity(ctx context.Context) bool {
	// Advisory precursor: note whether NetworkManager is even running. Its
	// absence does not conclude anything, nmcli below will fail on its own.
	if out, err := p.runner.Output(ctx, "systemctl", "is-active", "NetworkManager.service"); err == nil {
		log.Debug("NetworkManager service state", "state", out)
	}

	// General network state as reported by NetworkManager.
	if out, err := p.runner.Output(ctx, "nmcli", "-t", "-f", "STATE", "general"); err == nil {
		state := strings.TrimSpace(out)
		log.Debug("General network state", "state", state)
		if state == "connected" || strings.HasPrefix(state, "connected ") {
			log.Debug("Connectivity established via general network state")
			return true
		}
	}

	// Primary wireless interface state.
	if out, err := p.runner.Output(ctx, "nmcli", "-t", "-f", "GENERAL.STATE", "device", "show", p.iface); err == nil {
		log.Debug("Wireless device state", "iface", p.iface, "state", out)
		// nmcli prints "100 (connected)" when the device is fully up.
		if strings.Contains(out, "(connected)") || strings.Contains(out, "100") {
			log.Debug("Connectivity established via wireless device state", "iface", p.iface)
			return true
		}
	}

	// Last resort: a default route implies some upstream path.
	if out, err := p.runner.Output(ctx, "ip", "route", "show", "default"); err == nil {
		if strings.TrimSpace(out) != "" {
			log.Debug("Connectivity established via default route")
			return true
		}
	}

	log.Debug("No connectivity check succeeded")
	return false
}

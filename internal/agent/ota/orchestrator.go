package ota

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/looplab/fsm"

	"github.com/powerdock-io/powerdock/internal/agent/core"
	"github.com/powerdock-io/powerdock/internal/pkg/metrics"
	fsmutil "github.com/powerdock-io/powerdock/internal/pkg/util/fsm"
	"github.com/powerdock-io/powerdock/pkg/log"
)

// Update flow states.
const (
	StateIdle                 = "Idle"
	StateChecking             = "Checking"
	StateAwaitingConfirmation = "AwaitingConfirmation"
	StateInstalling           = "Installing"
	StateCancelled            = "Cancelled"
)

const (
	// EventCheck claims the single check-in-flight slot.
	EventCheck = "event_check"
	// EventUpdateFound moves to the confirm/cancel decision point.
	EventUpdateFound = "event_update_found"
	// EventUpToDate ends a check that found nothing newer.
	EventUpToDate = "event_up_to_date"
	// EventCheckFailed ends a check that could not complete.
	EventCheckFailed = "event_check_failed"
	// EventConfirm accepts the pending update.
	EventConfirm = "event_confirm"
	// EventCancel discards the pending update.
	EventCancel = "event_cancel"
	// EventFinalize returns a transient state (Installing, Cancelled) to Idle.
	EventFinalize = "event_finalize"
)

// ConnectivityProbe answers whether route-level network connectivity exists.
type ConnectivityProbe interface {
	HasConnectivity(ctx context.Context) bool
}

// ReleaseFetcher fetches latest-release metadata.
type ReleaseFetcher interface {
	FetchLatestRelease(ctx context.Context, token string) (ReleaseInfo, error)
}

// InstallLauncher starts the external installer for a version.
type InstallLauncher interface {
	Launch(ctx context.Context, version string) error
}

// Orchestrator owns the update flow: at most one check in flight, a
// connectivity precondition before any network call, and a single explicit
// confirm/cancel decision point. All failures return it to Idle; it has no
// terminal state.
type Orchestrator struct {
	fsm *fsm.FSM

	display   core.Display
	probe     ConnectivityProbe
	releases  ReleaseFetcher
	installer InstallLauncher
	loadToken func() string

	current Version

	// mu guards pendingVersion. The FSM's internal lock covers state
	// transitions, but the control API reads the pending version from
	// request goroutines while a check runs on another.
	mu sync.Mutex

	// pendingVersion is only set while in AwaitingConfirmation or Installing.
	pendingVersion string
}

// NewOrchestrator wires the update state machine. loadToken may be nil when
// no token file is configured.
func NewOrchestrator(
	display core.Display,
	probe ConnectivityProbe,
	releases ReleaseFetcher,
	installer InstallLauncher,
	loadToken func() string,
	current Version,
) *Orchestrator {
	o := &Orchestrator{
		display:   display,
		probe:     probe,
		releases:  releases,
		installer: installer,
		loadToken: loadToken,
		current:   current,
	}
	if o.loadToken == nil {
		o.loadToken = func() string { return "" }
	}

	events := fsm.Events{
		{Name: EventCheck, Src: []string{StateIdle}, Dst: StateChecking},
		{Name: EventUpdateFound, Src: []string{StateChecking}, Dst: StateAwaitingConfirmation},
		{Name: EventUpToDate, Src: []string{StateChecking}, Dst: StateIdle},
		{Name: EventCheckFailed, Src: []string{StateChecking}, Dst: StateIdle},
		{Name: EventConfirm, Src: []string{StateAwaitingConfirmation}, Dst: StateInstalling},
		{Name: EventCancel, Src: []string{StateAwaitingConfirmation}, Dst: StateCancelled},
		{Name: EventFinalize, Src: []string{StateInstalling, StateCancelled}, Dst: StateIdle},
	}

	callbacks := fsm.Callbacks{
		"enter_" + StateAwaitingConfirmation: fsmutil.WrapEvent(o.actionEnterAwaiting),
		"enter_" + StateCancelled:            fsmutil.WrapEvent(o.actionEnterCancelled),
	}

	o.fsm = fsm.NewFSM(StateIdle, events, callbacks)
	return o
}

// State returns the current update flow state.
func (o *Orchestrator) State() string {
	return o.fsm.Current()
}

// PendingVersion returns the version awaiting confirmation, or "".
func (o *Orchestrator) PendingVersion() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pendingVersion
}

func (o *Orchestrator) setPending(version string) {
	o.mu.Lock()
	o.pendingVersion = version
	o.mu.Unlock()
}

// takePending clears the pending version and returns what it was.
func (o *Orchestrator) takePending() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	version := o.pendingVersion
	o.pendingVersion = ""
	return version
}

// CheckForUpdate runs one full update check. Calling it while a check or a
// pending decision is active is a no-op.
func (o *Orchestrator) CheckForUpdate(ctx context.Context) {
	if err := o.fsm.Event(ctx, EventCheck); err != nil {
		log.Debug("Update check rejected, flow already active", "state", o.fsm.Current())
		metrics.UpdateChecksTotal.WithLabelValues("rejected").Inc()
		return
	}

	if !o.probe.HasConnectivity(ctx) {
		log.Warn("Update check aborted: no network connectivity")
		o.display.PresentMessage("No network connection", core.SeverityError)
		metrics.UpdateChecksTotal.WithLabelValues("no_connectivity").Inc()
		o.mustEvent(ctx, EventCheckFailed)
		return
	}

	o.display.PresentMessage("Checking for updates...", core.SeverityInfo)
	log.Info("Checking for updates", "currentVersion", o.current)

	info, err := o.releases.FetchLatestRelease(ctx, o.loadToken())
	if err != nil {
		o.reportFetchFailure(err)
		o.mustEvent(ctx, EventCheckFailed)
		return
	}

	log.Info("Latest release fetched", "tag", info.RawTag, "version", info.Version)

	if !IsNewer(o.current, info.Version) {
		log.Info("Software is up to date", "currentVersion", o.current, "latest", info.Version)
		o.display.PresentMessage("Software is up to date", core.SeverityInfo)
		metrics.UpdateChecksTotal.WithLabelValues("up_to_date").Inc()
		o.mustEvent(ctx, EventUpToDate)
		return
	}

	o.setPending(info.Version.String())
	metrics.UpdateChecksTotal.WithLabelValues("update_available").Inc()
	o.mustEvent(ctx, EventUpdateFound)
}

// Confirm accepts the pending update and launches the installer. Outside
// AwaitingConfirmation it is a no-op.
func (o *Orchestrator) Confirm(ctx context.Context) {
	if err := o.fsm.Event(ctx, EventConfirm); err != nil {
		log.Debug("Confirm ignored, no decision pending", "state", o.fsm.Current())
		return
	}

	version := o.takePending()

	log.Info("Update confirmed, starting installation", "version", version)
	o.display.PresentMessage("Installing update...", core.SeverityWarning)

	if err := o.installer.Launch(ctx, version); err != nil {
		log.Error(err, "Failed to start update installation", "version", version)
		o.display.PresentMessage("Update failed to start", core.SeverityError)
	} else {
		log.Info("Update installation started", "version", version)
		o.display.PresentMessage("Update started - check logs", core.SeverityInfo)
	}

	o.mustEvent(ctx, EventFinalize)
}

// Cancel discards the pending update. Outside AwaitingConfirmation it is a
// no-op.
func (o *Orchestrator) Cancel(ctx context.Context) {
	if err := o.fsm.Event(ctx, EventCancel); err != nil {
		log.Debug("Cancel ignored, no decision pending", "state", o.fsm.Current())
		return
	}

	o.mustEvent(ctx, EventFinalize)
}

// StartupCheck runs the one automatic check on process start, gated on the
// persisted preference and current connectivity.
func (o *Orchestrator) StartupCheck(ctx context.Context, enabled bool) {
	if !enabled {
		log.Info("Automatic update checks disabled in settings")
		return
	}

	if !o.probe.HasConnectivity(ctx) {
		log.Warn("No network connectivity at startup, skipping update check")
		return
	}

	log.Info("Network available at startup, checking for updates")
	o.CheckForUpdate(ctx)
}

func (o *Orchestrator) actionEnterAwaiting(ctx context.Context, e *fsm.Event) error {
	version := o.PendingVersion()
	log.Info("Update available, awaiting user decision", "version", version)
	o.display.PresentUpdateDecision(version)
	return nil
}

func (o *Orchestrator) actionEnterCancelled(ctx context.Context, e *fsm.Event) error {
	log.Info("Update cancelled by user", "version", o.takePending())
	o.display.PresentMessage("Update cancelled", core.SeverityWarning)
	return nil
}

// reportFetchFailure maps each fetch error kind to its own user-visible
// message and operator log line.
func (o *Orchestrator) reportFetchFailure(err error) {
	var fe *FetchError
	if !errors.As(err, &fe) {
		log.Error(err, "Update check failed")
		o.display.PresentMessage("Update check failed", core.SeverityError)
		metrics.UpdateChecksTotal.WithLabelValues("unknown").Inc()
		return
	}

	metrics.UpdateChecksTotal.WithLabelValues(fe.Kind.String()).Inc()

	switch fe.Kind {
	case FetchConnectionFailed:
		log.Error(fe, "Release API unreachable")
		o.display.PresentMessage("Connection failed", core.SeverityError)
	case FetchAuthFailed:
		log.Error(fe, "Release API authentication failed, check the configured token")
		o.display.PresentMessage("Auth failed", core.SeverityError)
	case FetchNotFound:
		// Private repo without token, wrong repo name, or no releases yet.
		log.Warn("Release API returned 404", "error", fe.Error())
		o.display.PresentMessage("No releases found", core.SeverityError)
	case FetchAPIError:
		log.Error(fe, "Release API error", "status", fe.StatusCode)
		o.display.PresentMessage(fmt.Sprintf("API error (%d)", fe.StatusCode), core.SeverityError)
	case FetchInvalidResponse:
		log.Error(fe, "Release API returned an unusable response")
		o.display.PresentMessage("Invalid response", core.SeverityError)
	}
}

// mustEvent fires transitions that are legal by construction; a failure here
// is a programming error worth surfacing, not a user condition.
func (o *Orchestrator) mustEvent(ctx context.Context, event string) {
	if err := o.fsm.Event(ctx, event); err != nil {
		log.Error(err, "Unexpected state transition failure", "event", event, "state", o.fsm.Current())
	}
}

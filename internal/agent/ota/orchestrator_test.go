package ota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/powerdock-io/powerdock/internal/agent/core"
)

type fakeDisplay struct {
	mu        sync.Mutex
	messages  []string
	decisions []string
}

func (d *fakeDisplay) PresentMessage(text string, severity core.Severity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, text)
}

func (d *fakeDisplay) PresentUpdateDecision(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decisions = append(d.decisions, version)
}

func (d *fakeDisplay) UpdateModule(index int, percent int, voltage float64) {}
func (d *fakeDisplay) UpdateBatteryDetail(detail core.BatteryDetail)        {}

func (d *fakeDisplay) lastMessage() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.messages) == 0 {
		return ""
	}
	return d.messages[len(d.messages)-1]
}

type fakeProbe struct{ connected bool }

func (p *fakeProbe) HasConnectivity(ctx context.Context) bool { return p.connected }

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	info    ReleaseInfo
	err     error
	blockCh chan struct{} // when non-nil, FetchLatestRelease blocks until closed
}

func (f *fakeFetcher) FetchLatestRelease(ctx context.Context, token string) (ReleaseInfo, error) {
	f.mu.Lock()
	f.calls++
	block := f.blockCh
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return f.info, f.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeInstaller struct {
	launched []string
	err      error
}

func (i *fakeInstaller) Launch(ctx context.Context, version string) error {
	i.launched = append(i.launched, version)
	return i.err
}

func newTestOrchestrator(probe *fakeProbe, fetcher *fakeFetcher) (*Orchestrator, *fakeDisplay, *fakeInstaller) {
	display := &fakeDisplay{}
	installer := &fakeInstaller{}
	o := NewOrchestrator(display, probe, fetcher, installer, nil, ParseVersion("1.0.3"))
	return o, display, installer
}

func TestCheckForUpdateOffersNewerVersion(t *testing.T) {
	fetcher := &fakeFetcher{info: ReleaseInfo{Version: Version{1, 0, 4}, RawTag: "v1.0.4"}}
	o, display, _ := newTestOrchestrator(&fakeProbe{connected: true}, fetcher)

	o.CheckForUpdate(context.Background())

	if got := o.State(); got != StateAwaitingConfirmation {
		t.Fatalf("state = %s, want AwaitingConfirmation", got)
	}
	if len(display.decisions) != 1 || display.decisions[0] != "1.0.4" {
		t.Errorf("decisions = %v, want [1.0.4]", display.decisions)
	}
	if o.PendingVersion() != "1.0.4" {
		t.Errorf("PendingVersion = %q, want 1.0.4", o.PendingVersion())
	}
}

func TestCheckForUpdateUpToDate(t *testing.T) {
	fetcher := &fakeFetcher{info: ReleaseInfo{Version: Version{1, 0, 3}, RawTag: "v1.0.3"}}
	o, display, _ := newTestOrchestrator(&fakeProbe{connected: true}, fetcher)

	o.CheckForUpdate(context.Background())

	if got := o.State(); got != StateIdle {
		t.Fatalf("state = %s, want Idle", got)
	}
	if got := display.lastMessage(); got != "Software is up to date" {
		t.Errorf("last message = %q", got)
	}
}

func TestCheckForUpdateNoConnectivitySkipsFetch(t *testing.T) {
	fetcher := &fakeFetcher{}
	o, display, _ := newTestOrchestrator(&fakeProbe{connected: false}, fetcher)

	o.CheckForUpdate(context.Background())

	if fetcher.callCount() != 0 {
		t.Error("release client must not be invoked without connectivity")
	}
	if got := o.State(); got != StateIdle {
		t.Fatalf("state = %s, want Idle", got)
	}
	if got := display.lastMessage(); got != "No network connection" {
		t.Errorf("last message = %q", got)
	}
}

func TestCheckForUpdateRejectedWhileChecking(t *testing.T) {
	fetcher := &fakeFetcher{
		info:    ReleaseInfo{Version: Version{1, 0, 3}},
		blockCh: make(chan struct{}),
	}
	o, _, _ := newTestOrchestrator(&fakeProbe{connected: true}, fetcher)

	done := make(chan struct{})
	go func() {
		o.CheckForUpdate(context.Background())
		close(done)
	}()

	// Wait for the first check to claim the slot.
	deadline := time.After(2 * time.Second)
	for o.State() != StateChecking {
		select {
		case <-deadline:
			t.Fatal("first check never reached Checking")
		case <-time.After(time.Millisecond):
		}
	}

	// Second call must be an idempotent no-op.
	o.CheckForUpdate(context.Background())
	if got := o.State(); got != StateChecking {
		t.Errorf("state after rejected call = %s, want Checking", got)
	}

	close(fetcher.blockCh)
	<-done

	if fetcher.callCount() != 1 {
		t.Errorf("fetcher called %d times, want 1", fetcher.callCount())
	}
}

// The control API reads the pending version from request goroutines while a
// check runs on another, so the accessors must be safe under the race
// detector.
func TestPendingVersionReadableDuringCheck(t *testing.T) {
	fetcher := &fakeFetcher{
		info:    ReleaseInfo{Version: Version{1, 0, 4}, RawTag: "v1.0.4"},
		blockCh: make(chan struct{}),
	}
	o, _, _ := newTestOrchestrator(&fakeProbe{connected: true}, fetcher)

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.CheckForUpdate(context.Background())
	}()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = o.PendingVersion()
				_ = o.State()
			}
		}
	}()

	close(fetcher.blockCh)
	<-done
	close(stop)
	wg.Wait()

	if got := o.PendingVersion(); got != "1.0.4" {
		t.Errorf("PendingVersion = %q after check, want 1.0.4", got)
	}
	if got := o.State(); got != StateAwaitingConfirmation {
		t.Errorf("state = %s, want AwaitingConfirmation", got)
	}
}

func TestCheckForUpdateFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"not found", &FetchError{Kind: FetchNotFound, StatusCode: 404}, "No releases found"},
		{"auth failed", &FetchError{Kind: FetchAuthFailed, StatusCode: 401}, "Auth failed"},
		{"connection failed", &FetchError{Kind: FetchConnectionFailed}, "Connection failed"},
		{"api error", &FetchError{Kind: FetchAPIError, StatusCode: 500}, "API error (500)"},
		{"invalid response", &FetchError{Kind: FetchInvalidResponse}, "Invalid response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{err: tt.err}
			o, display, _ := newTestOrchestrator(&fakeProbe{connected: true}, fetcher)

			o.CheckForUpdate(context.Background())

			if got := o.State(); got != StateIdle {
				t.Fatalf("state = %s, want Idle", got)
			}
			if got := display.lastMessage(); got != tt.wantMsg {
				t.Errorf("last message = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfirmLaunchesInstallerAndReturnsToIdle(t *testing.T) {
	fetcher := &fakeFetcher{info: ReleaseInfo{Version: Version{2, 0, 0}, RawTag: "v2.0.0"}}
	o, _, installer := newTestOrchestrator(&fakeProbe{connected: true}, fetcher)

	o.CheckForUpdate(context.Background())
	o.Confirm(context.Background())

	if len(installer.launched) != 1 || installer.launched[0] != "2.0.0" {
		t.Errorf("launched = %v, want [2.0.0]", installer.launched)
	}
	if got := o.State(); got != StateIdle {
		t.Errorf("state = %s, want Idle", got)
	}
	if o.PendingVersion() != "" {
		t.Errorf("pending version not cleared: %q", o.PendingVersion())
	}
}

func TestCancelDiscardsPendingUpdate(t *testing.T) {
	fetcher := &fakeFetcher{info: ReleaseInfo{Version: Version{2, 0, 0}}}
	o, display, installer := newTestOrchestrator(&fakeProbe{connected: true}, fetcher)

	o.CheckForUpdate(context.Background())
	o.Cancel(context.Background())

	if len(installer.launched) != 0 {
		t.Error("installer must not launch after cancel")
	}
	if got := o.State(); got != StateIdle {
		t.Errorf("state = %s, want Idle", got)
	}
	if got := display.lastMessage(); got != "Update cancelled" {
		t.Errorf("last message = %q", got)
	}
}

func TestConfirmAndCancelAreNoOpsWhenIdle(t *testing.T) {
	o, display, installer := newTestOrchestrator(&fakeProbe{connected: true}, &fakeFetcher{})

	o.Confirm(context.Background())
	o.Cancel(context.Background())

	if got := o.State(); got != StateIdle {
		t.Errorf("state = %s, want Idle", got)
	}
	if len(installer.launched) != 0 {
		t.Error("installer launched from Idle")
	}
	if len(display.messages) != 0 {
		t.Errorf("unexpected messages: %v", display.messages)
	}
}

func TestStartupCheckRespectsPreference(t *testing.T) {
	fetcher := &fakeFetcher{info: ReleaseInfo{Version: Version{1, 0, 4}}}
	o, _, _ := newTestOrchestrator(&fakeProbe{connected: true}, fetcher)

	o.StartupCheck(context.Background(), false)
	if fetcher.callCount() != 0 {
		t.Error("startup check ran with preference disabled")
	}

	o.StartupCheck(context.Background(), true)
	if fetcher.callCount() != 1 {
		t.Errorf("fetcher called %d times, want 1", fetcher.callCount())
	}
}

func TestStartupCheckSkipsWithoutConnectivity(t *testing.T) {
	fetcher := &fakeFetcher{}
	o, display, _ := newTestOrchestrator(&fakeProbe{connected: false}, fetcher)

	o.StartupCheck(context.Background(), true)

	if fetcher.callCount() != 0 {
		t.Error("fetcher invoked without connectivity")
	}
	// Startup skip is operator-facing only, no user message.
	if len(display.messages) != 0 {
		t.Errorf("unexpected messages: %v", display.messages)
	}
}

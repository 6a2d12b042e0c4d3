package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/powerdock-io/powerdock/pkg/log"
	"github.com/powerdock-io/powerdock/pkg/options"
)

type fakeControl struct {
	mu        sync.Mutex
	calls     []string
	state     string
	pending   string
	rebootErr error
}

func (c *fakeControl) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

func (c *fakeControl) called() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeControl) CheckForUpdate(context.Context) { c.record("check") }
func (c *fakeControl) ConfirmUpdate(context.Context)  { c.record("confirm") }
func (c *fakeControl) CancelUpdate(context.Context)   { c.record("cancel") }

func (c *fakeControl) UpdateState() (string, string) {
	return c.state, c.pending
}

func (c *fakeControl) Reboot(context.Context) error {
	c.record("reboot")
	return c.rebootErr
}

func (c *fakeControl) Shutdown(context.Context) error {
	c.record("shutdown")
	return nil
}

func newTestServer(ctl *fakeControl) *httptest.Server {
	opts := options.NewHttpOptions()
	s := New(opts, ctl, log.NewNopLogger())
	return httptest.NewServer(s.routes())
}

func TestUpdateStateEndpoint(t *testing.T) {
	ctl := &fakeControl{state: "AwaitingConfirmation", pending: "1.0.4"}
	ts := newTestServer(ctl)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/update/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["state"] != "AwaitingConfirmation" || body["pendingVersion"] != "1.0.4" {
		t.Errorf("body = %v", body)
	}
}

func TestUpdateCheckIsAsynchronous(t *testing.T) {
	ctl := &fakeControl{state: "Idle"}
	ts := newTestServer(ctl)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/update/check", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	deadline := time.Now().Add(time.Second)
	for {
		calls := ctl.called()
		if len(calls) == 1 && calls[0] == "check" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("check never invoked, calls = %v", calls)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConfirmAndCancelDriveControl(t *testing.T) {
	ctl := &fakeControl{state: "Idle"}
	ts := newTestServer(ctl)
	defer ts.Close()

	for _, path := range []string{"/v1/update/confirm", "/v1/update/cancel"} {
		resp, err := http.Post(ts.URL+path, "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST %s status = %d, want 200", path, resp.StatusCode)
		}
	}

	calls := ctl.called()
	if len(calls) != 2 || calls[0] != "confirm" || calls[1] != "cancel" {
		t.Errorf("calls = %v", calls)
	}
}

func TestControlEndpointsRejectGet(t *testing.T) {
	ts := newTestServer(&fakeControl{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/update/confirm")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestRebootFailureReturns500(t *testing.T) {
	ctl := &fakeControl{rebootErr: errors.New("sudo: not permitted")}
	ts := newTestServer(ctl)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/system/reboot", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(&fakeControl{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

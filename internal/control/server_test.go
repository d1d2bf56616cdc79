package control

import (
	"encoding/json"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/tidewm/tidewm/internal/engine"
	"github.com/tidewm/tidewm/internal/metrics"
	"github.com/tidewm/tidewm/internal/util"
)

type fakeSource struct {
	status engine.Status
}

func (f *fakeSource) Status() engine.Status { return f.status }

func newTestServer(t *testing.T, reload func(string) error, quit func()) *Server {
	t.Helper()
	logger := util.NewLoggerWithWriter(util.LevelError, io.Discard)
	source := &fakeSource{status: engine.Status{TagCount: 9, View: 1, MasterCount: 1, MasterRatio: 0.55}}
	collector := metrics.NewCollector(true)
	collector.RecordEvent("key")
	srv, err := NewServer(source, collector, logger, reload, quit)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	return srv
}

func roundTrip(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	var resp Response
	go func() {
		defer wg.Done()
		if err := json.NewEncoder(clientConn).Encode(req); err != nil {
			t.Errorf("encode request: %v", err)
			return
		}
		if err := json.NewDecoder(clientConn).Decode(&resp); err != nil {
			t.Errorf("decode response: %v", err)
		}
	}()

	srv.handle(serverConn)
	wg.Wait()
	return resp
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	resp := roundTrip(t, srv, Request{Action: ActionStatus})
	if resp.Status != StatusOK {
		t.Fatalf("status response: %+v", resp)
	}
	payload, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var status engine.Status
	if err := json.Unmarshal(payload, &status); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if status.TagCount != 9 || status.View != 1 {
		t.Fatalf("unexpected status payload: %+v", status)
	}
}

func TestHandleMetrics(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	resp := roundTrip(t, srv, Request{Action: ActionMetrics})
	if resp.Status != StatusOK {
		t.Fatalf("metrics response: %+v", resp)
	}
}

func TestHandleMetricsDisabled(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	srv.metrics.SetEnabled(false)
	resp := roundTrip(t, srv, Request{Action: ActionMetrics})
	if resp.Status != StatusError {
		t.Fatalf("expected error for disabled metrics, got %+v", resp)
	}
}

func TestHandleReloadInvokesCallback(t *testing.T) {
	var reason string
	srv := newTestServer(t, func(r string) error {
		reason = r
		return nil
	}, nil)
	resp := roundTrip(t, srv, Request{Action: ActionReload})
	if resp.Status != StatusOK {
		t.Fatalf("reload response: %+v", resp)
	}
	if reason != "control request" {
		t.Fatalf("reload reason = %q", reason)
	}
}

func TestHandleReloadUnsupported(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	resp := roundTrip(t, srv, Request{Action: ActionReload})
	if resp.Status != StatusError {
		t.Fatalf("expected error when reload is unsupported, got %+v", resp)
	}
}

func TestHandleQuit(t *testing.T) {
	quit := make(chan struct{}, 1)
	srv := newTestServer(t, nil, func() { quit <- struct{}{} })
	resp := roundTrip(t, srv, Request{Action: ActionQuit})
	if resp.Status != StatusOK {
		t.Fatalf("quit response: %+v", resp)
	}
	select {
	case <-quit:
	default:
		t.Fatal("quit callback not invoked")
	}
}

func TestHandleUnknownAction(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	resp := roundTrip(t, srv, Request{Action: "bogus"})
	if resp.Status != StatusError {
		t.Fatalf("expected error for unknown action, got %+v", resp)
	}
}

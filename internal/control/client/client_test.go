package client

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidewm/tidewm/internal/control"
	"github.com/tidewm/tidewm/internal/engine"
	"github.com/tidewm/tidewm/internal/metrics"
)

func startTestServer(t *testing.T, handler func(net.Conn)) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "socket")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen on unix socket: %v", err)
	}
	go func() {
		defer ln.Close()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		handler(conn)
	}()
	return path
}

func respondTo(t *testing.T, wantAction string, resp control.Response) func(net.Conn) {
	return func(conn net.Conn) {
		defer conn.Close()
		var req control.Request
		if err := json.NewDecoder(conn).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Action != wantAction {
			t.Errorf("unexpected action %q, want %q", req.Action, wantAction)
			return
		}
		if err := json.NewEncoder(conn).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestStatusSuccess(t *testing.T) {
	want := engine.Status{TagCount: 9, View: 1, MasterCount: 1, MasterRatio: 0.55}
	path := startTestServer(t, respondTo(t, control.ActionStatus,
		control.Response{Status: control.StatusOK, Data: want}))

	c, err := New(path)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.TagCount != want.TagCount || got.View != want.View || got.MasterRatio != want.MasterRatio {
		t.Fatalf("status = %+v, want %+v", got, want)
	}
}

func TestMetricsSuccess(t *testing.T) {
	want := metrics.Snapshot{Enabled: true}
	want.Totals.EventsHandled = 7
	path := startTestServer(t, respondTo(t, control.ActionMetrics,
		control.Response{Status: control.StatusOK, Data: want}))

	c, err := New(path)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	got, err := c.Metrics(context.Background())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if !got.Enabled || got.Totals.EventsHandled != 7 {
		t.Fatalf("metrics = %+v, want %+v", got, want)
	}
}

func TestReloadSuccess(t *testing.T) {
	path := startTestServer(t, respondTo(t, control.ActionReload,
		control.Response{Status: control.StatusOK}))

	c, err := New(path)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
}

func TestQuitSuccess(t *testing.T) {
	path := startTestServer(t, respondTo(t, control.ActionQuit,
		control.Response{Status: control.StatusOK}))

	c, err := New(path)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Quit(context.Background()); err != nil {
		t.Fatalf("quit: %v", err)
	}
}

func TestErrorResponseSurfaces(t *testing.T) {
	path := startTestServer(t, respondTo(t, control.ActionReload,
		control.Response{Status: control.StatusError, Error: "config invalid"}))

	c, err := New(path)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = c.Reload(context.Background())
	if err == nil || !strings.Contains(err.Error(), "config invalid") {
		t.Fatalf("reload error = %v, want daemon message", err)
	}
}

func TestDialFailure(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "missing.sock"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Status(context.Background()); err == nil {
		t.Fatal("status against missing socket succeeded")
	}
}

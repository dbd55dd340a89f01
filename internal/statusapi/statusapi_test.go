package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/backend/ephemeral"
	"github.com/nerrad567/drmemd/internal/driver"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/observer"
	"github.com/nerrad567/drmemd/internal/value"
)

func newTestServer(t *testing.T, debug *observer.DebugServer) (*Server, *ephemeral.Backend) {
	t.Helper()
	be := ephemeral.New()
	reg := driver.NewRegistry()
	reg.Seal()
	sup := driver.NewSupervisor(reg, be, logging.Default())

	s, err := New(Deps{
		Logger:     logging.Default(),
		Backend:    be,
		Supervisor: sup,
		Debug:      debug,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, be
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth_ReportsOKAndVersion(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHandleListDevices_ReturnsRegisteredDeviceWithReading(t *testing.T) {
	s, be := newTestServer(t, nil)
	ctx := context.Background()
	h, err := be.Register(ctx, "sensor:temp", value.TagFloat64, backend.ReadOnly, "C", "test", 0)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := be.Write(ctx, h, value.Float64(21.5), time.Now().UTC()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rec := doRequest(s, http.MethodGet, "/devices")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Devices []deviceSummary `json:"devices"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || len(body.Devices) != 1 {
		t.Fatalf("expected 1 device, got %+v", body)
	}
	d := body.Devices[0]
	if d.Name != "sensor:temp" || d.Direction != "read-only" || d.Value == nil || *d.Value != "21.5" {
		t.Errorf("unexpected device summary: %+v", d)
	}
}

func TestHandleGetDevice_UnknownNameReturns404(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/devices/nope:device")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleGetDevice_KnownNameReturnsSummary(t *testing.T) {
	s, be := newTestServer(t, nil)
	ctx := context.Background()
	if _, err := be.Register(ctx, "relay:porch", value.TagBool, backend.ReadWrite, "", "test", 0); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rec := doRequest(s, http.MethodGet, "/devices/relay:porch")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var d deviceSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Name != "relay:porch" || d.Direction != "read-write" || d.Value != nil {
		t.Errorf("unexpected summary for a device with no reading yet: %+v", d)
	}
}

func TestHandleListDrivers_ReturnsEmptyWhenNoneStarted(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/drivers")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Drivers []instanceSummary `json:"drivers"`
		Count   int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("expected no driver instances, got %+v", body)
	}
}

func TestBuildRouter_OmitsWebSocketRouteWithoutDebugServer(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doRequest(s, http.MethodGet, "/ws/devices")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected /ws/devices unmounted (404) without a debug server, got %d", rec.Code)
	}
}

func TestBuildRouter_MountsWebSocketRouteWithDebugServer(t *testing.T) {
	debug := observer.NewDebugServer(observer.NewHub(), logging.Default())
	s, _ := newTestServer(t, debug)
	rec := doRequest(s, http.MethodGet, "/ws/devices")
	// no Upgrade header present, so chi routes it through but the
	// handshake itself fails; what matters here is that the route exists
	// (not a 404) rather than whether the upgrade succeeds.
	if rec.Code == http.StatusNotFound {
		t.Fatal("expected /ws/devices to be mounted when a debug server is configured")
	}
}

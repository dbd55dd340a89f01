package observer

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/drmemd/internal/backend"
	"github.com/nerrad567/drmemd/internal/infrastructure/logging"
	"github.com/nerrad567/drmemd/internal/value"
)

func dialDebugServer(t *testing.T, d *DebugServer, query string) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(d)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var evt wsEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return evt
}

func TestDebugServer_PublishDeliversEventToClient(t *testing.T) {
	d := NewDebugServer(NewHub(), logging.Default())
	conn, closeAll := dialDebugServer(t, d, "")
	defer closeAll()

	// give ServeHTTP's registration goroutine time to add the client
	waitForClientCount(t, d, 1)

	d.Publish("light:porch", backend.Reading{Value: value.Bool(true), Timestamp: time.Now()}, false)

	evt := readEvent(t, conn)
	if evt.Device != "light:porch" || evt.Value != "true" || evt.Gap {
		t.Errorf("unexpected event: %+v", evt)
	}
}

func TestDebugServer_DeviceFilterRestrictsDelivery(t *testing.T) {
	d := NewDebugServer(NewHub(), logging.Default())
	conn, closeAll := dialDebugServer(t, d, "?device=light:porch")
	defer closeAll()
	waitForClientCount(t, d, 1)

	// published on an unsubscribed device: must not arrive
	d.Publish("light:kitchen", backend.Reading{Value: value.Bool(true)}, false)
	// published on the subscribed device: must arrive
	d.Publish("light:porch", backend.Reading{Value: value.Bool(false)}, true)

	evt := readEvent(t, conn)
	if evt.Device != "light:porch" || evt.Value != "false" || !evt.Gap {
		t.Errorf("expected only the filtered device's event, got %+v", evt)
	}
}

func TestDebugServer_ClientDisconnectUnregisters(t *testing.T) {
	d := NewDebugServer(NewHub(), logging.Default())
	conn, closeAll := dialDebugServer(t, d, "")
	waitForClientCount(t, d, 1)

	conn.Close()
	closeAll()

	waitForClientCount(t, d, 0)
}

func waitForClientCount(t *testing.T, d *DebugServer, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d.mu.RLock()
		n := len(d.clients)
		d.mu.RUnlock()
		if n == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for client count %d", want)
}

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lanpulse/lanpulse/internal/device"
	"github.com/lanpulse/lanpulse/internal/infrastructure/config"
)

func postEvent(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleEventCreatesDevice(t *testing.T) {
	env := setupTestServer(t, nil, config.NtfyConfig{})

	rec := postEvent(t, env.router, `{"action":"assigned","mac":"AA:BB:CC:DD:EE:FF","ip":"192.168.1.50","host":"laptop"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("POST /api/events = %d, want 204", rec.Code)
	}

	env.lookups.Wait()

	dev, err := env.repo.GetByMAC(context.Background(), "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("device not created: %v", err)
	}
	if dev.Name == nil || *dev.Name != "laptop" {
		t.Errorf("name = %v, want laptop from hostname", dev.Name)
	}
	// New devices get a lookup scheduled immediately; the stub provider
	// resolves it.
	if dev.ManufacturerStatus != device.LookupFound {
		t.Errorf("status = %q, want found after scheduled lookup", dev.ManufacturerStatus)
	}
}

func TestHandleEventAlwaysAccepts(t *testing.T) {
	env := setupTestServer(t, nil, config.NtfyConfig{})

	// Empty, malformed, ignored action, invalid MAC: all dropped silently.
	bodies := []string{
		``,
		`{not json`,
		`{"action":"released","mac":"aa:bb:cc:dd:ee:ff"}`,
		`{"action":"assigned","mac":"garbage"}`,
	}
	for _, body := range bodies {
		rec := postEvent(t, env.router, body)
		if rec.Code != http.StatusNoContent {
			t.Errorf("POST /api/events with %q = %d, want 204", body, rec.Code)
		}
	}

	env.lookups.Wait()

	devices, err := env.repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("%d devices created from dropped events", len(devices))
	}
}

func TestHandleEventRepeatLeaseKeepsName(t *testing.T) {
	env := setupTestServer(t, nil, config.NtfyConfig{})

	postEvent(t, env.router, `{"action":"assigned","mac":"aa:bb:cc:dd:ee:ff","ip":"192.168.1.50","host":"laptop"}`)
	postEvent(t, env.router, `{"action":"assigned","mac":"aa:bb:cc:dd:ee:ff","ip":"192.168.1.51","host":""}`)

	env.lookups.Wait()

	dev, err := env.repo.GetByMAC(context.Background(), "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("GetByMAC() error = %v", err)
	}
	if dev.Name == nil || *dev.Name != "laptop" {
		t.Errorf("name = %v, empty hostname must not clear it", dev.Name)
	}
}

func TestHandleEventNotifications(t *testing.T) {
	type sent struct {
		title string
		body  string
	}
	notifications := make(chan sent, 4)

	ntfySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		notifications <- sent{title: r.Header.Get("Title"), body: string(body)}
	}))
	t.Cleanup(ntfySrv.Close)

	env := setupTestServer(t, nil, config.NtfyConfig{
		Enabled: true,
		URL:     ntfySrv.URL,
		Topic:   "test",
	})

	waitNotification := func(t *testing.T) sent {
		t.Helper()
		select {
		case n := <-notifications:
			return n
		case <-time.After(5 * time.Second):
			t.Fatal("no notification arrived")
			return sent{}
		}
	}

	t.Run("new device triggers unknown-device alert", func(t *testing.T) {
		postEvent(t, env.router, `{"action":"assigned","mac":"aa:bb:cc:dd:ee:01","ip":"192.168.1.50","host":"newbie"}`)

		n := waitNotification(t)
		if n.title != "Unknown Device Connected" {
			t.Errorf("title = %q", n.title)
		}
		if !strings.Contains(n.body, "newbie") {
			t.Errorf("body = %q, want hostname", n.body)
		}
	})

	t.Run("known quiet device stays silent", func(t *testing.T) {
		postEvent(t, env.router, `{"action":"assigned","mac":"aa:bb:cc:dd:ee:01","ip":"192.168.1.50","host":"newbie"}`)

		select {
		case n := <-notifications:
			t.Errorf("unexpected notification %q for quiet device", n.title)
		case <-time.After(300 * time.Millisecond):
		}
	})

	t.Run("tracked device triggers alert", func(t *testing.T) {
		on := true
		if _, err := env.repo.UpdateSettings(context.Background(), "aa:bb:cc:dd:ee:01", nil, &on); err != nil {
			t.Fatalf("enabling notify: %v", err)
		}

		postEvent(t, env.router, `{"action":"assigned","mac":"aa:bb:cc:dd:ee:01","ip":"192.168.1.50","host":"newbie"}`)

		n := waitNotification(t)
		if n.title != "Tracked Device Connected" {
			t.Errorf("title = %q", n.title)
		}
	})

	env.lookups.Wait()
}

func TestCloseDrainsEventNotifications(t *testing.T) {
	// A sighting accepted just before shutdown must still get its
	// notification: Close drains the detached fan-out work.
	notified := make(chan string, 1)
	ntfySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		notified <- r.Header.Get("Title")
	}))
	t.Cleanup(ntfySrv.Close)

	env := setupTestServer(t, nil, config.NtfyConfig{
		Enabled: true,
		URL:     ntfySrv.URL,
		Topic:   "test",
	})

	postEvent(t, env.router, `{"action":"assigned","mac":"aa:bb:cc:dd:ee:02","ip":"192.168.1.60","host":"latecomer"}`)

	if err := env.server.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case title := <-notified:
		if title != "Unknown Device Connected" {
			t.Errorf("title = %q", title)
		}
	default:
		t.Error("notification dropped during shutdown")
	}

	env.lookups.Wait()
}

func TestHandleEventProviderDown(t *testing.T) {
	// Provider refuses every call; ingest must still succeed and the
	// device must end up in error status, retryable later.
	env := setupTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}, config.NtfyConfig{})

	rec := postEvent(t, env.router, `{"action":"assigned","mac":"aa:bb:cc:dd:ee:ff","ip":"192.168.1.50","host":"x"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("POST /api/events = %d, want 204", rec.Code)
	}

	env.lookups.Wait()

	dev, err := env.repo.GetByMAC(context.Background(), "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("GetByMAC() error = %v", err)
	}
	if dev.ManufacturerStatus != device.LookupError {
		t.Errorf("status = %q, want error when provider is unreachable", dev.ManufacturerStatus)
	}
}

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lanpulse/lanpulse/internal/device"
	"github.com/lanpulse/lanpulse/internal/infrastructure/config"
	"github.com/lanpulse/lanpulse/internal/manufacturer"
)

func TestHandleGetManufacturer(t *testing.T) {
	env := setupTestServer(t, nil, config.NtfyConfig{})

	t.Run("invalid mac", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/manufacturer/garbage", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET invalid mac = %d, want 400", rec.Code)
		}
	})

	t.Run("unseen mac schedules and answers placeholder", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/manufacturer/aa:bb:cc:dd:ee:ff", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET manufacturer = %d, want 200", rec.Code)
		}

		body := decodeBody[map[string]string](t, rec)
		if body["manufacturer"] != manufacturer.PendingLabel {
			t.Errorf("manufacturer = %q, want %q", body["manufacturer"], manufacturer.PendingLabel)
		}

		env.lookups.Wait()

		// Lookup completed in the background; next query is cached.
		rec = httptest.NewRecorder()
		env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/manufacturer/aa:bb:cc:dd:ee:ff", nil))
		body = decodeBody[map[string]string](t, rec)
		if body["manufacturer"] != "Acme Corp" {
			t.Errorf("manufacturer = %q, want resolved Acme Corp", body["manufacturer"])
		}
	})
}

func TestHandleRetryDevice(t *testing.T) {
	env := setupTestServer(t, nil, config.NtfyConfig{})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/manufacturer/aa:bb:cc:dd:ee:ff/retry", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("retry unknown device = %d, want 404", rec.Code)
		}
	})

	t.Run("resets and schedules", func(t *testing.T) {
		ctx := context.Background()
		if _, _, err := env.repo.RecordSeen(ctx, "aa:bb:cc:dd:ee:ff", ""); err != nil {
			t.Fatalf("seeding device: %v", err)
		}
		if err := env.repo.SetLookupState(ctx, "aa:bb:cc:dd:ee:ff", nil, device.LookupError, time.Now()); err != nil {
			t.Fatalf("seeding error status: %v", err)
		}

		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/manufacturer/aa:bb:cc:dd:ee:ff/retry", nil))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("retry = %d, want 202", rec.Code)
		}

		env.lookups.Wait()

		dev, err := env.repo.GetByMAC(ctx, "aa:bb:cc:dd:ee:ff")
		if err != nil {
			t.Fatalf("GetByMAC() error = %v", err)
		}
		if dev.ManufacturerStatus != device.LookupFound {
			t.Errorf("status after retry = %q, want found", dev.ManufacturerStatus)
		}
	})
}

func TestHandleRetryFailed(t *testing.T) {
	env := setupTestServer(t, nil, config.NtfyConfig{})
	ctx := context.Background()

	seed := []struct {
		mac    string
		status device.LookupStatus
	}{
		{"aa:bb:cc:dd:ee:01", device.LookupError},
		{"aa:bb:cc:dd:ee:02", device.LookupUnknown},
		{"aa:bb:cc:dd:ee:03", device.LookupFound},
	}
	for _, s := range seed {
		if _, _, err := env.repo.RecordSeen(ctx, s.mac, ""); err != nil {
			t.Fatalf("seeding %s: %v", s.mac, err)
		}
		if err := env.repo.SetLookupState(ctx, s.mac, nil, s.status, time.Now()); err != nil {
			t.Fatalf("seeding status: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/manufacturer/retry", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk retry = %d, want 200", rec.Code)
	}

	body := decodeBody[map[string]int64](t, rec)
	if body["reset"] != 2 {
		t.Errorf("reset = %d, want 2", body["reset"])
	}

	dev, err := env.repo.GetByMAC(ctx, "aa:bb:cc:dd:ee:01")
	if err != nil {
		t.Fatalf("GetByMAC() error = %v", err)
	}
	if dev.ManufacturerStatus != device.LookupPending {
		t.Errorf("status = %q, want pending after bulk retry", dev.ManufacturerStatus)
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lanpulse/lanpulse/internal/infrastructure/config"
)

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return v
}

func TestHandleListDevices(t *testing.T) {
	env := setupTestServer(t, nil, config.NtfyConfig{})

	postEvent(t, env.router, `{"action":"assigned","mac":"aa:bb:cc:dd:ee:01","ip":"1.2.3.4","host":"one"}`)
	postEvent(t, env.router, `{"action":"assigned","mac":"aa:bb:cc:dd:ee:02","ip":"1.2.3.5","host":"two"}`)
	env.lookups.Wait()

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/devices = %d, want 200", rec.Code)
	}

	body := decodeBody[struct {
		Devices []map[string]any `json:"devices"`
		Count   int              `json:"count"`
	}](t, rec)
	if body.Count != 2 || len(body.Devices) != 2 {
		t.Errorf("count = %d with %d devices, want 2", body.Count, len(body.Devices))
	}
}

func TestHandleGetDevice(t *testing.T) {
	env := setupTestServer(t, nil, config.NtfyConfig{})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices/aa:bb:cc:dd:ee:ff", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET unknown device = %d, want 404", rec.Code)
		}
	})

	t.Run("invalid mac", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices/garbage", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET invalid mac = %d, want 400", rec.Code)
		}
	})

	t.Run("found, accepts dash separators", func(t *testing.T) {
		postEvent(t, env.router, `{"action":"assigned","mac":"aa:bb:cc:dd:ee:ff","ip":"1.2.3.4","host":"nas"}`)
		env.lookups.Wait()

		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices/AA-BB-CC-DD-EE-FF", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET device = %d, want 200", rec.Code)
		}

		body := decodeBody[map[string]any](t, rec)
		if body["mac"] != "aa:bb:cc:dd:ee:ff" {
			t.Errorf("mac = %v, want canonical form", body["mac"])
		}
		if body["name"] != "nas" {
			t.Errorf("name = %v, want nas", body["name"])
		}
	})
}

func TestHandleUpdateDevice(t *testing.T) {
	env := setupTestServer(t, nil, config.NtfyConfig{})

	t.Run("creates on first update", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/devices/aa:bb:cc:dd:ee:ff",
			strings.NewReader(`{"name":"printer","notify":true}`))
		env.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("PUT device = %d, want 200", rec.Code)
		}
		body := decodeBody[map[string]any](t, rec)
		if body["name"] != "printer" {
			t.Errorf("name = %v, want printer", body["name"])
		}
		if body["notify"] != true {
			t.Errorf("notify = %v, want true", body["notify"])
		}
	})

	t.Run("partial update", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/devices/aa:bb:cc:dd:ee:ff",
			strings.NewReader(`{"notify":false}`))
		env.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("PUT device = %d, want 200", rec.Code)
		}
		body := decodeBody[map[string]any](t, rec)
		if body["name"] != "printer" {
			t.Errorf("name = %v, must survive notify-only update", body["name"])
		}
		if body["notify"] != false {
			t.Errorf("notify = %v, want false", body["notify"])
		}
	})

	t.Run("empty body rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/devices/aa:bb:cc:dd:ee:ff",
			strings.NewReader(`{}`))
		env.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("PUT with no fields = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/devices/aa:bb:cc:dd:ee:ff",
			strings.NewReader(`{broken`))
		env.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("PUT with malformed body = %d, want 400", rec.Code)
		}
	})
}

package manufacturer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lanpulse/lanpulse/internal/device"
)

// mockRepo is an in-memory device.Repository for service tests.
type mockRepo struct {
	mu      sync.Mutex
	devices map[string]*device.Device

	// failSetLookup makes SetLookupState return an error when set.
	failSetLookup bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{devices: make(map[string]*device.Device)}
}

func (m *mockRepo) GetByMAC(_ context.Context, mac string) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dev, ok := m.devices[mac]
	if !ok {
		return nil, device.ErrNotFound
	}
	clone := *dev
	return &clone, nil
}

func (m *mockRepo) List(_ context.Context) ([]device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]device.Device, 0, len(m.devices))
	for _, dev := range m.devices {
		out = append(out, *dev)
	}
	return out, nil
}

func (m *mockRepo) RecordSeen(_ context.Context, mac, host string) (*device.Device, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dev, ok := m.devices[mac]; ok {
		dev.LastSeen = time.Now()
		clone := *dev
		return &clone, false, nil
	}
	dev := &device.Device{MAC: mac, ManufacturerStatus: device.LookupPending, FirstSeen: time.Now(), LastSeen: time.Now()}
	if host != "" {
		dev.Name = &host
	}
	m.devices[mac] = dev
	clone := *dev
	return &clone, true, nil
}

func (m *mockRepo) UpdateSettings(_ context.Context, mac string, name *string, notify *bool) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dev, ok := m.devices[mac]
	if !ok {
		dev = &device.Device{MAC: mac, ManufacturerStatus: device.LookupPending, FirstSeen: time.Now(), LastSeen: time.Now()}
		m.devices[mac] = dev
	}
	if name != nil {
		dev.Name = name
	}
	if notify != nil {
		dev.Notify = *notify
	}
	clone := *dev
	return &clone, nil
}

func (m *mockRepo) SetLookupState(_ context.Context, mac string, manufacturer *string, status device.LookupStatus, attemptedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetLookup {
		return errors.New("mock: write failed")
	}
	dev, ok := m.devices[mac]
	if !ok {
		dev = &device.Device{MAC: mac, FirstSeen: time.Now(), LastSeen: time.Now()}
		m.devices[mac] = dev
	}
	dev.Manufacturer = manufacturer
	dev.ManufacturerStatus = status
	attempt := attemptedAt
	dev.ManufacturerLastAttempt = &attempt
	return nil
}

func (m *mockRepo) ResetLookup(_ context.Context, mac string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dev, ok := m.devices[mac]
	if !ok {
		return device.ErrNotFound
	}
	dev.Manufacturer = nil
	dev.ManufacturerStatus = device.LookupPending
	dev.ManufacturerLastAttempt = nil
	return nil
}

func (m *mockRepo) ResetFailedLookups(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, dev := range m.devices {
		if dev.ManufacturerStatus == device.LookupError || dev.ManufacturerStatus == device.LookupUnknown {
			dev.Manufacturer = nil
			dev.ManufacturerStatus = device.LookupPending
			dev.ManufacturerLastAttempt = nil
			count++
		}
	}
	return count, nil
}

func (m *mockRepo) status(mac string) device.LookupStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dev, ok := m.devices[mac]; ok {
		return dev.ManufacturerStatus
	}
	return ""
}

// serviceWithProvider wires a service against a single httptest provider.
func serviceWithProvider(t *testing.T, repo device.Repository, handler http.HandlerFunc) *Service {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	resolver := NewResolver(
		[]Provider{{Name: "test", URL: srv.URL + "/%s", Format: FormatText}},
		NewLimiter(0),
		0,
		[]string{"not found"},
	)
	return NewService(repo, resolver, DefaultCooldown)
}

func TestServiceManufacturerCachedAnswers(t *testing.T) {
	repo := newMockRepo()
	svc := serviceWithProvider(t, repo, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("resolved device must not trigger a provider call")
	})
	ctx := context.Background()

	vendor := "Acme Corp"
	repo.devices["aa:bb:cc:dd:ee:01"] = &device.Device{
		MAC:                "aa:bb:cc:dd:ee:01",
		Manufacturer:       &vendor,
		ManufacturerStatus: device.LookupFound,
	}
	repo.devices["aa:bb:cc:dd:ee:02"] = &device.Device{
		MAC:                "aa:bb:cc:dd:ee:02",
		ManufacturerStatus: device.LookupUnknown,
	}

	label, err := svc.Manufacturer(ctx, "aa:bb:cc:dd:ee:01")
	if err != nil {
		t.Fatalf("Manufacturer() error = %v", err)
	}
	if label != "Acme Corp" {
		t.Errorf("found device label = %q, want Acme Corp", label)
	}

	label, err = svc.Manufacturer(ctx, "aa:bb:cc:dd:ee:02")
	if err != nil {
		t.Fatalf("Manufacturer() error = %v", err)
	}
	if label != UnknownLabel {
		t.Errorf("unknown device label = %q, want %q", label, UnknownLabel)
	}

	svc.Wait()
}

func TestServiceManufacturerSchedulesAndResolves(t *testing.T) {
	repo := newMockRepo()
	svc := serviceWithProvider(t, repo, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("Acme Corp"))
	})
	ctx := context.Background()

	label, err := svc.Manufacturer(ctx, "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("Manufacturer() error = %v", err)
	}
	if label != PendingLabel {
		t.Errorf("unresolved device label = %q, want %q", label, PendingLabel)
	}

	svc.Wait()

	dev, err := repo.GetByMAC(ctx, "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("GetByMAC() after lookup: %v", err)
	}
	if dev.ManufacturerStatus != device.LookupFound {
		t.Errorf("status = %q, want found", dev.ManufacturerStatus)
	}
	if dev.Manufacturer == nil || *dev.Manufacturer != "Acme Corp" {
		t.Errorf("manufacturer = %v, want Acme Corp", dev.Manufacturer)
	}

	// Second query answers from the registry.
	label, err = svc.Manufacturer(ctx, "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("Manufacturer() error = %v", err)
	}
	if label != "Acme Corp" {
		t.Errorf("cached label = %q, want Acme Corp", label)
	}
}

func TestServiceUnknownOutcomePersistsLabel(t *testing.T) {
	repo := newMockRepo()
	svc := serviceWithProvider(t, repo, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("Not Found"))
	})

	svc.Schedule("aa:bb:cc:dd:ee:ff")
	svc.Wait()

	dev, err := repo.GetByMAC(context.Background(), "aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("GetByMAC() error = %v", err)
	}
	if dev.ManufacturerStatus != device.LookupUnknown {
		t.Errorf("status = %q, want unknown", dev.ManufacturerStatus)
	}
	if dev.Manufacturer == nil || *dev.Manufacturer != UnknownLabel {
		t.Errorf("manufacturer = %v, want stored %q", dev.Manufacturer, UnknownLabel)
	}
}

func TestServiceDedupesConcurrentSchedules(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	repo := newMockRepo()
	svc := serviceWithProvider(t, repo, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte("Acme Corp"))
	})

	if !svc.Schedule("aa:bb:cc:dd:ee:ff") {
		t.Fatal("first Schedule() = false, want true")
	}

	// Give the first task time to reach the provider and hold the slot.
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	var started int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.Schedule("aa:bb:cc:dd:ee:ff") {
				atomic.AddInt32(&started, 1)
			}
		}()
	}
	wg.Wait()

	if started != 0 {
		t.Errorf("%d duplicate tasks started while one was in flight", started)
	}

	close(release)
	svc.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("provider called %d times, want 1", got)
	}

	// Slot released: the guard must admit a fresh schedule again.
	if !svc.Schedule("aa:bb:cc:dd:ee:ff") {
		t.Error("Schedule() after completion = false, want slot released")
	}
	svc.Wait()
}

func TestServiceRetryDevice(t *testing.T) {
	repo := newMockRepo()
	svc := serviceWithProvider(t, repo, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("Acme Corp"))
	})
	ctx := context.Background()

	t.Run("unknown mac", func(t *testing.T) {
		err := svc.RetryDevice(ctx, "aa:bb:cc:dd:ee:ff")
		if !errors.Is(err, device.ErrNotFound) {
			t.Errorf("RetryDevice() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("resets and resolves", func(t *testing.T) {
		now := time.Now()
		repo.devices["aa:bb:cc:dd:ee:ff"] = &device.Device{
			MAC:                     "aa:bb:cc:dd:ee:ff",
			ManufacturerStatus:      device.LookupError,
			ManufacturerLastAttempt: &now,
		}

		if err := svc.RetryDevice(ctx, "aa:bb:cc:dd:ee:ff"); err != nil {
			t.Fatalf("RetryDevice() error = %v", err)
		}
		svc.Wait()

		if got := repo.status("aa:bb:cc:dd:ee:ff"); got != device.LookupFound {
			t.Errorf("status after retry = %q, want found", got)
		}
	})
}

func TestServiceRetryFailed(t *testing.T) {
	repo := newMockRepo()
	svc := serviceWithProvider(t, repo, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("bulk retry must not itself trigger lookups")
	})
	ctx := context.Background()

	repo.devices["aa:bb:cc:dd:ee:01"] = &device.Device{MAC: "aa:bb:cc:dd:ee:01", ManufacturerStatus: device.LookupError}
	repo.devices["aa:bb:cc:dd:ee:02"] = &device.Device{MAC: "aa:bb:cc:dd:ee:02", ManufacturerStatus: device.LookupUnknown}
	repo.devices["aa:bb:cc:dd:ee:03"] = &device.Device{MAC: "aa:bb:cc:dd:ee:03", ManufacturerStatus: device.LookupFound}

	count, err := svc.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed() error = %v", err)
	}
	if count != 2 {
		t.Errorf("RetryFailed() = %d, want 2", count)
	}
	if got := repo.status("aa:bb:cc:dd:ee:01"); got != device.LookupPending {
		t.Errorf("error device status = %q, want pending", got)
	}
	if got := repo.status("aa:bb:cc:dd:ee:03"); got != device.LookupFound {
		t.Errorf("found device status = %q, must be untouched", got)
	}

	svc.Wait()
}

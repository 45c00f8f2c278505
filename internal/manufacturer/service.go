package manufacturer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lanpulse/lanpulse/internal/device"
)

// Logger defines the logging interface used by this package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Telemetry is an optional hook invoked after each completed lookup task,
// e.g. to record a time-series point. It must not block.
type Telemetry func(mac string, status device.LookupStatus, elapsed time.Duration)

// Service owns the manufacturer-enrichment pipeline: it decides when a
// lookup is warranted, guards against duplicate concurrent lookups for the
// same MAC, and runs the resolve-and-persist task in the background.
//
// The in-flight set is process-local and intentionally not persisted. If
// the process dies mid-lookup, the optimistically persisted pending status
// plus the cooldown in Eligible recover the device on a later request.
//
// Thread Safety: all methods are safe for concurrent use.
type Service struct {
	repo     device.Repository
	resolver *Resolver
	cooldown time.Duration
	logger   Logger

	// inflight tracks MACs with a lookup task currently running.
	// Guarded by mu; the test-and-insert must be atomic so two concurrent
	// schedulers cannot both start a task for the same MAC.
	mu       sync.Mutex
	inflight map[string]struct{}

	telemetry Telemetry
	wg        sync.WaitGroup
}

// NewService creates the lookup service.
//
// Parameters:
//   - repo: Device registry used for status reads and outcome writes
//   - resolver: Multi-provider resolver (carries the shared rate limiter)
//   - cooldown: Retry window for error/stalled-pending records
//     (DefaultCooldown if zero)
func NewService(repo device.Repository, resolver *Resolver, cooldown time.Duration) *Service {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		cooldown: cooldown,
		logger:   noopLogger{},
		inflight: make(map[string]struct{}),
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetTelemetry sets an optional per-lookup telemetry hook.
func (s *Service) SetTelemetry(t Telemetry) {
	s.telemetry = t
}

// Manufacturer returns the label to show for mac right now.
//
// A resolved device returns its cached vendor name (or UnknownLabel).
// Otherwise, if the stored status makes the device eligible, a background
// lookup is scheduled and PendingLabel is returned immediately - the caller
// never waits for providers.
//
// Returns an error only for storage failures; lookup-pipeline failures are
// visible solely as the persisted error status.
func (s *Service) Manufacturer(ctx context.Context, mac string) (string, error) {
	dev, err := s.repo.GetByMAC(ctx, mac)
	if err != nil && !errors.Is(err, device.ErrNotFound) {
		return "", err
	}

	if dev != nil {
		switch dev.ManufacturerStatus {
		case device.LookupFound:
			if dev.Manufacturer != nil && *dev.Manufacturer != "" {
				return *dev.Manufacturer, nil
			}
		case device.LookupUnknown:
			return UnknownLabel, nil
		}
	}

	if Eligible(dev, time.Now(), s.cooldown) {
		s.Schedule(mac)
	}
	return PendingLabel, nil
}

// Schedule starts a background lookup task for mac unless one is already
// in flight. Reports whether a task was started; a false return means a
// concurrent task already holds the MAC and this call was a no-op.
//
// The task is fire-and-forget: it runs detached from any request context.
func (s *Service) Schedule(mac string) bool {
	s.mu.Lock()
	if _, busy := s.inflight[mac]; busy {
		s.mu.Unlock()
		return false
	}
	s.inflight[mac] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(mac)
	return true
}

// RetryDevice force-resets one device to pending and immediately schedules
// a lookup. Returns device.ErrNotFound if the MAC is not in the registry.
func (s *Service) RetryDevice(ctx context.Context, mac string) error {
	if err := s.repo.ResetLookup(ctx, mac); err != nil {
		return err
	}
	s.Schedule(mac)
	return nil
}

// RetryFailed resets every device in error or unknown status back to
// pending. The devices are picked up again lazily, on their next
// Manufacturer query. Returns the number of devices reset.
func (s *Service) RetryFailed(ctx context.Context) (int64, error) {
	count, err := s.repo.ResetFailedLookups(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("failed lookups reset", "count", count)
	return count, nil
}

// run executes one lookup task for mac. It always releases the in-flight
// slot, whatever the outcome.
func (s *Service) run(mac string) {
	defer s.wg.Done()
	defer s.release(mac)

	// Detached from the triggering request on purpose; the request already
	// returned a placeholder.
	ctx := context.Background()
	start := time.Now()

	// Optimistically persist pending with a fresh timestamp before any
	// outbound call. If we crash mid-lookup, the record ages past the
	// cooldown and becomes retryable instead of stalling forever.
	if err := s.repo.SetLookupState(ctx, mac, nil, device.LookupPending, start); err != nil {
		s.logger.Error("marking lookup started", "mac", mac, "error", err)
		return
	}

	outcome := s.resolver.Resolve(ctx, mac)

	var label *string
	switch outcome.Status {
	case device.LookupFound:
		label = &outcome.Label
	case device.LookupUnknown:
		unknown := UnknownLabel
		label = &unknown
	}

	if err := s.repo.SetLookupState(ctx, mac, label, outcome.Status, time.Now()); err != nil {
		s.logger.Error("recording lookup outcome",
			"mac", mac,
			"status", string(outcome.Status),
			"error", err,
		)
		return
	}

	elapsed := time.Since(start)
	s.logger.Info("lookup finished",
		"mac", mac,
		"status", string(outcome.Status),
		"duration_ms", elapsed.Milliseconds(),
	)

	if s.telemetry != nil {
		s.telemetry(mac, outcome.Status, elapsed)
	}
}

// release removes mac from the in-flight set.
func (s *Service) release(mac string) {
	s.mu.Lock()
	delete(s.inflight, mac)
	s.mu.Unlock()
}

// Wait blocks until all currently scheduled lookup tasks have finished.
// Used during shutdown and in tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

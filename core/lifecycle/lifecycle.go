// Package lifecycle implements the runtime's deployment state machine:
// Uninitialized -> Running <-> Paused -> Shutdown (terminal), with a
// monotonically increasing version history. Shutdown is permanent; no
// operation leaves that state.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"banyan/core/auth"
	cerrors "banyan/core/errors"
	"banyan/core/events"
	"banyan/core/logger"
	"banyan/core/metrics"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
)

// Status holds the three independent flags forming the state machine.
type Status struct {
	Initialized bool
	Paused      bool
	Shutdown    bool
}

// VersionRecord is one accepted deployment version. Records are never
// deleted; the history remains queryable after any number of upgrades.
type VersionRecord struct {
	Version   uint64
	Ref       string
	Timestamp time.Time
}

// Lifecycle event types.
const (
	InitializedEventType = "lifecycle.initialized"
	UpgradedEventType    = "lifecycle.upgraded"
	PausedEventType      = "lifecycle.paused"
	UnpausedEventType    = "lifecycle.unpaused"
	ShutdownEventType    = "lifecycle.shutdown"
)

// InitializedEvent is published when the system is initialized.
type InitializedEvent struct {
	Version uint64
	Ref     string
}

func (e InitializedEvent) EventType() string { return InitializedEventType }

// UpgradedEvent is published when the current version advances.
type UpgradedEvent struct {
	OldVersion uint64
	NewVersion uint64
	Ref        string
}

func (e UpgradedEvent) EventType() string { return UpgradedEventType }

// PausedEvent is published when the system pauses.
type PausedEvent struct{}

func (e PausedEvent) EventType() string { return PausedEventType }

// UnpausedEvent is published when the system resumes.
type UnpausedEvent struct{}

func (e UnpausedEvent) EventType() string { return UnpausedEventType }

// ShutdownEvent is published when the system enters its terminal state.
type ShutdownEvent struct{}

func (e ShutdownEvent) EventType() string { return ShutdownEventType }

// Manager owns the lifecycle state. All transitions are admin-gated and
// all-or-nothing: a rejected transition leaves no trace, an accepted one is
// committed before its event is published.
type Manager struct {
	mu      sync.RWMutex
	gate    *auth.Gate
	bus     events.Bus
	status  Status
	current uint64
	history map[uint64]VersionRecord
}

// New returns an uninitialized Manager gated by the given admin capability.
// bus may be nil, in which case no events are published.
func New(gate *auth.Gate, bus events.Bus) *Manager {
	return &Manager{
		gate:    gate,
		bus:     bus,
		history: make(map[uint64]VersionRecord),
	}
}

// Initialize moves the system from Uninitialized to Running and stamps the
// first history entry. The version must be nonzero; ref, when non-empty,
// must be a valid semantic version tag.
func (m *Manager) Initialize(ctx context.Context, version uint64, ref string) error {
	metrics.LifecycleTransitionCounter.WithLabelValues("initialize", "attempt").Inc()
	if err := m.transition(ctx, func() (events.TypedEvent, error) {
		if m.status.Initialized {
			return nil, fmt.Errorf("initialize: %w", cerrors.ErrAlreadyInitialized)
		}
		if version == 0 {
			return nil, fmt.Errorf("initialize: version must be nonzero: %w", cerrors.ErrInvalidVersion)
		}
		if err := validateRef(ref); err != nil {
			return nil, fmt.Errorf("initialize: %w", err)
		}
		m.status.Initialized = true
		m.current = version
		m.history[version] = VersionRecord{Version: version, Ref: ref, Timestamp: time.Now()}
		return InitializedEvent{Version: version, Ref: ref}, nil
	}, InitializedEventType); err != nil {
		metrics.LifecycleTransitionCounter.WithLabelValues("initialize", "failed").Inc()
		return err
	}
	metrics.LifecycleTransitionCounter.WithLabelValues("initialize", "success").Inc()
	logger.Info(ctx, "System initialized", zap.Uint64("version", version), zap.String("ref", ref))
	return nil
}

// Upgrade advances the current version. Permitted only while Running.
func (m *Manager) Upgrade(ctx context.Context, version uint64, ref string) error {
	metrics.LifecycleTransitionCounter.WithLabelValues("upgrade", "attempt").Inc()
	var old uint64
	if err := m.transition(ctx, func() (events.TypedEvent, error) {
		if !m.status.Initialized {
			return nil, fmt.Errorf("upgrade: %w", cerrors.ErrNotInitialized)
		}
		if m.status.Shutdown {
			return nil, fmt.Errorf("upgrade: %w", cerrors.ErrShutdown)
		}
		if m.status.Paused {
			return nil, fmt.Errorf("upgrade: %w", cerrors.ErrPaused)
		}
		if version <= m.current {
			return nil, fmt.Errorf("upgrade: version %d is not above %d: %w", version, m.current, cerrors.ErrInvalidVersion)
		}
		if err := validateRef(ref); err != nil {
			return nil, fmt.Errorf("upgrade: %w", err)
		}
		old = m.current
		m.current = version
		m.history[version] = VersionRecord{Version: version, Ref: ref, Timestamp: time.Now()}
		return UpgradedEvent{OldVersion: old, NewVersion: version, Ref: ref}, nil
	}, UpgradedEventType); err != nil {
		metrics.LifecycleTransitionCounter.WithLabelValues("upgrade", "failed").Inc()
		return err
	}
	metrics.LifecycleTransitionCounter.WithLabelValues("upgrade", "success").Inc()
	logger.Info(ctx, "System upgraded", zap.Uint64("from", old), zap.Uint64("to", version), zap.String("ref", ref))
	return nil
}

// Pause suspends the system. Fails if uninitialized, already paused, or
// shut down.
func (m *Manager) Pause(ctx context.Context) error {
	metrics.LifecycleTransitionCounter.WithLabelValues("pause", "attempt").Inc()
	if err := m.transition(ctx, func() (events.TypedEvent, error) {
		if !m.status.Initialized {
			return nil, fmt.Errorf("pause: %w", cerrors.ErrNotInitialized)
		}
		if m.status.Shutdown {
			return nil, fmt.Errorf("pause: %w", cerrors.ErrShutdown)
		}
		if m.status.Paused {
			return nil, fmt.Errorf("pause: %w", cerrors.ErrPaused)
		}
		m.status.Paused = true
		return PausedEvent{}, nil
	}, PausedEventType); err != nil {
		metrics.LifecycleTransitionCounter.WithLabelValues("pause", "failed").Inc()
		return err
	}
	metrics.LifecycleTransitionCounter.WithLabelValues("pause", "success").Inc()
	logger.Info(ctx, "System paused")
	return nil
}

// Unpause resumes a paused system.
func (m *Manager) Unpause(ctx context.Context) error {
	metrics.LifecycleTransitionCounter.WithLabelValues("unpause", "attempt").Inc()
	if err := m.transition(ctx, func() (events.TypedEvent, error) {
		if !m.status.Initialized {
			return nil, fmt.Errorf("unpause: %w", cerrors.ErrNotInitialized)
		}
		if m.status.Shutdown {
			return nil, fmt.Errorf("unpause: %w", cerrors.ErrShutdown)
		}
		if !m.status.Paused {
			return nil, fmt.Errorf("unpause: %w", cerrors.ErrNotPaused)
		}
		m.status.Paused = false
		return UnpausedEvent{}, nil
	}, UnpausedEventType); err != nil {
		metrics.LifecycleTransitionCounter.WithLabelValues("unpause", "failed").Inc()
		return err
	}
	metrics.LifecycleTransitionCounter.WithLabelValues("unpause", "success").Inc()
	logger.Info(ctx, "System unpaused")
	return nil
}

// Shutdown enters the terminal state. Permitted while Running or Paused;
// nothing leaves this state afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	metrics.LifecycleTransitionCounter.WithLabelValues("shutdown", "attempt").Inc()
	if err := m.transition(ctx, func() (events.TypedEvent, error) {
		if !m.status.Initialized {
			return nil, fmt.Errorf("shutdown: %w", cerrors.ErrNotInitialized)
		}
		if m.status.Shutdown {
			return nil, fmt.Errorf("shutdown: %w", cerrors.ErrAlreadyShutdown)
		}
		m.status.Shutdown = true
		return ShutdownEvent{}, nil
	}, ShutdownEventType); err != nil {
		metrics.LifecycleTransitionCounter.WithLabelValues("shutdown", "failed").Inc()
		return err
	}
	metrics.LifecycleTransitionCounter.WithLabelValues("shutdown", "success").Inc()
	logger.Warn(ctx, "System shut down")
	return nil
}

// Status returns the current state flags.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Version returns the current version number, zero if uninitialized.
func (m *Manager) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// VersionData returns the record for an accepted version.
func (m *Manager) VersionData(version uint64) (VersionRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.history[version]
	return rec, ok
}

// transition runs fn under the write lock after the gate check and publishes
// the returned event once the lock is released. fn must either apply the
// full state change or leave state untouched and return an error.
func (m *Manager) transition(ctx context.Context, fn func() (events.TypedEvent, error), topic string) error {
	if err := m.gate.Check(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	ev, err := fn()
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if m.bus != nil {
		m.bus.Publish(ctx, topic, ev)
	}
	return nil
}

// validateRef accepts an empty ref or a parseable semantic version tag.
func validateRef(ref string) error {
	if ref == "" {
		return nil
	}
	if _, err := semver.NewVersion(ref); err != nil {
		return fmt.Errorf("ref %q is not a semantic version: %w", ref, cerrors.ErrInvalidVersion)
	}
	return nil
}

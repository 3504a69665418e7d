// Package configstore implements the configuration controller: a flat store
// of fixed-width key/value settings plus an emergency pause circuit. The
// emergency circuit is governed by its own authority and its pause flag is
// independent of the lifecycle manager's state machine — the two switches
// must never be conflated.
package configstore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"banyan/core/auth"
	cerrors "banyan/core/errors"
	"banyan/core/events"
	"banyan/core/logger"
	"banyan/core/metrics"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Key is a fixed-width configuration key.
type Key [32]byte

// Word is a fixed-width configuration value.
type Word [32]byte

// KeyOf builds a Key from a string, truncating past 32 bytes.
func KeyOf(s string) Key {
	var k Key
	copy(k[:], s)
	return k
}

// WordOf builds a Word from a string, truncating past 32 bytes.
func WordOf(s string) Word {
	var w Word
	copy(w[:], s)
	return w
}

// String trims trailing zero padding for display.
func (k Key) String() string { return strings.TrimRight(string(k[:]), "\x00") }

// String trims trailing zero padding for display.
func (w Word) String() string { return strings.TrimRight(string(w[:]), "\x00") }

// Entry is the stored state for one key.
type Entry struct {
	Value     Word
	Set       bool
	UpdatedAt time.Time
}

// Configuration controller event types.
const (
	ConfigUpdatedEventType     = "configstore.updated"
	ActionPerformedEventType   = "configstore.action"
	EmergencyShutdownEventType = "configstore.emergency_shutdown"
	EmergencyRecoveryEventType = "configstore.emergency_recovery"
)

// ConfigUpdatedEvent is published when a key is written.
type ConfigUpdatedEvent struct {
	Key      Key
	OldValue Word
	NewValue Word
	First    bool
}

func (e ConfigUpdatedEvent) EventType() string { return ConfigUpdatedEventType }

// ActionPerformedEvent is published when an administrative action is
// recorded. Concrete dispatch belongs to plugged-in components.
type ActionPerformedEvent struct {
	Action string
	Data   []byte
}

func (e ActionPerformedEvent) EventType() string { return ActionPerformedEventType }

// EmergencyShutdownEvent is published when the emergency circuit opens.
type EmergencyShutdownEvent struct{}

func (e EmergencyShutdownEvent) EventType() string { return EmergencyShutdownEventType }

// EmergencyRecoveryEvent is published when the emergency circuit closes.
type EmergencyRecoveryEvent struct{}

func (e EmergencyRecoveryEvent) EventType() string { return EmergencyRecoveryEventType }

// Controller owns the configuration entries and the emergency pause flag.
// Writes are admin-gated and blocked while paused; the emergency circuit is
// gated separately.
type Controller struct {
	mu            sync.RWMutex
	adminGate     *auth.Gate
	emergencyGate *auth.Gate
	bus           events.Bus
	paused        bool
	entries       map[Key]Entry
	keys          []Key
}

// New returns an empty Controller. bus may be nil, in which case no events
// are published.
func New(adminGate, emergencyGate *auth.Gate, bus events.Bus) *Controller {
	return &Controller{
		adminGate:     adminGate,
		emergencyGate: emergencyGate,
		bus:           bus,
		entries:       make(map[Key]Entry),
	}
}

// UpdateConfiguration writes a value. The first write for a key appends it
// to the enumerable key list; later writes only update value and timestamp.
func (c *Controller) UpdateConfiguration(ctx context.Context, key Key, value Word) error {
	metrics.ConfigUpdateCounter.WithLabelValues("attempt").Inc()
	if err := c.adminGate.Check(ctx); err != nil {
		metrics.ConfigUpdateCounter.WithLabelValues("failed").Inc()
		return err
	}

	c.mu.Lock()
	if c.paused {
		c.mu.Unlock()
		metrics.ConfigUpdateCounter.WithLabelValues("failed").Inc()
		return fmt.Errorf("update %s: %w", key, cerrors.ErrSystemPaused)
	}
	prev := c.entries[key]
	first := !prev.Set
	if first {
		c.keys = append(c.keys, key)
	}
	c.entries[key] = Entry{Value: value, Set: true, UpdatedAt: time.Now()}
	c.mu.Unlock()

	metrics.ConfigUpdateCounter.WithLabelValues("success").Inc()
	logger.Info(ctx, "Configuration updated", zap.Stringer("key", key), zap.Bool("first", first))
	if c.bus != nil {
		c.bus.Publish(ctx, ConfigUpdatedEventType, ConfigUpdatedEvent{Key: key, OldValue: prev.Value, NewValue: value, First: first})
	}
	return nil
}

// GetConfiguration returns the stored value, failing if the key was never
// set. Reads are open to any caller.
func (c *Controller) GetConfiguration(key Key) (Word, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !e.Set {
		return Word{}, fmt.Errorf("get %s: %w", key, cerrors.ErrInvalidConfiguration)
	}
	return e.Value, nil
}

// Entry returns the full stored state for a key.
func (c *Controller) Entry(key Key) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok && e.Set
}

// Keys returns the keys in first-write order.
func (c *Controller) Keys() []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Key, len(c.keys))
	copy(out, c.keys)
	return out
}

// Paused reports the state of the emergency circuit. This flag is not
// coordinated with the lifecycle manager.
func (c *Controller) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// PerformAction records an administrative action. Its only effect in the
// core is the published event; dispatch is left to plugged-in components.
func (c *Controller) PerformAction(ctx context.Context, action string, data []byte) error {
	if err := c.adminGate.Check(ctx); err != nil {
		return err
	}
	c.mu.RLock()
	paused := c.paused
	c.mu.RUnlock()
	if paused {
		return fmt.Errorf("action %q: %w", action, cerrors.ErrSystemPaused)
	}
	logger.Info(ctx, "Action performed", zap.String("action", action), zap.Int("bytes", len(data)))
	if c.bus != nil {
		c.bus.Publish(ctx, ActionPerformedEventType, ActionPerformedEvent{Action: action, Data: data})
	}
	return nil
}

// EmergencyShutdown opens the emergency circuit, blocking writes until
// recovery. Idempotent; only the emergency admin may call it.
func (c *Controller) EmergencyShutdown(ctx context.Context) error {
	metrics.EmergencySwitchCounter.WithLabelValues("shutdown", "attempt").Inc()
	if err := c.emergencyGate.Check(ctx); err != nil {
		metrics.EmergencySwitchCounter.WithLabelValues("shutdown", "failed").Inc()
		return err
	}
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	metrics.EmergencySwitchCounter.WithLabelValues("shutdown", "success").Inc()
	logger.Warn(ctx, "Emergency shutdown engaged")
	if c.bus != nil {
		c.bus.Publish(ctx, EmergencyShutdownEventType, EmergencyShutdownEvent{})
	}
	return nil
}

// EmergencyRecovery closes the emergency circuit.
func (c *Controller) EmergencyRecovery(ctx context.Context) error {
	metrics.EmergencySwitchCounter.WithLabelValues("recovery", "attempt").Inc()
	if err := c.emergencyGate.Check(ctx); err != nil {
		metrics.EmergencySwitchCounter.WithLabelValues("recovery", "failed").Inc()
		return err
	}
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	metrics.EmergencySwitchCounter.WithLabelValues("recovery", "success").Inc()
	logger.Warn(ctx, "Emergency recovery engaged")
	if c.bus != nil {
		c.bus.Publish(ctx, EmergencyRecoveryEventType, EmergencyRecoveryEvent{})
	}
	return nil
}

// LoadSeedFile reads a YAML map of initial key/value settings.
func LoadSeedFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	seed := make(map[string]string)
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return seed, nil
}

// Seed applies initial entries before the controller is serving. It bypasses
// the admin gate and the pause flag; first writes still populate the key
// list in deterministic (sorted) order.
func (c *Controller) Seed(entries map[string]string) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range keys {
		key := KeyOf(s)
		if _, ok := c.entries[key]; !ok {
			c.keys = append(c.keys, key)
		}
		c.entries[key] = Entry{Value: WordOf(entries[s]), Set: true, UpdatedAt: time.Now()}
	}
}

// Package kernel implements the component registry: the single source of
// truth for which address currently implements a module keycode and which
// policy addresses are active. All mutation flows through one executor
// capability and is suspended while the lifecycle manager reports the system
// paused or shut down.
package kernel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"banyan/core/auth"
	cerrors "banyan/core/errors"
	"banyan/core/events"
	"banyan/core/lifecycle"
	"banyan/core/logger"
	"banyan/core/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ModuleRecord is the stored state for an installed module. Records are
// created on install, mutated only by upgrade, and never deleted — there is
// deliberately no uninstall, so historical keycodes stay resolvable.
type ModuleRecord struct {
	Keycode     Keycode
	Address     Address
	InstalledAt time.Time
	UpgradedAt  time.Time
}

// PolicyRecord is the stored state for a policy. Deactivation is a
// soft-delete: the flag flips and the deactivation time is stamped, but the
// record is retained.
type PolicyRecord struct {
	Address       Address
	Active        bool
	ActivatedAt   time.Time
	DeactivatedAt time.Time
}

// StatusReader is the slice of the lifecycle manager the registry consults
// before mutating. A nil reader leaves the registry ungated.
type StatusReader interface {
	Status() lifecycle.Status
}

// Kernel is the component registry's public surface.
type Kernel interface {
	// InstallModule records that address implements keycode.
	InstallModule(ctx context.Context, keycode Keycode, address Address) error
	// UpgradeModule replaces the address implementing keycode in place.
	UpgradeModule(ctx context.Context, keycode Keycode, address Address) error
	// ActivatePolicy marks the policy at address active.
	ActivatePolicy(ctx context.Context, address Address) error
	// DeactivatePolicy marks the policy at address inactive, retaining its record.
	DeactivatePolicy(ctx context.Context, address Address) error
	// ChangeExecutor transfers the single mutating authority.
	ChangeExecutor(ctx context.Context, newExecutor string) error

	// ModuleAddress returns the address currently implementing keycode.
	ModuleAddress(keycode Keycode) (Address, bool)
	// Module returns the full record for keycode.
	Module(keycode Keycode) (ModuleRecord, bool)
	// Keycodes returns all installed keycodes in installation order.
	Keycodes() []Keycode
	// ModuleCount returns the number of installed modules.
	ModuleCount() int
	// IsPolicyActive reports whether the policy at address is active.
	IsPolicyActive(address Address) bool
	// Policy returns the full record for address.
	Policy(address Address) (PolicyRecord, bool)
	// PolicyCount returns the number of policy records, active or not.
	PolicyCount() int
	// ActivePolicyCount returns the number of currently active policies.
	ActivePolicyCount() int
	// Executor returns the id of the current executor.
	Executor() string
}

// Kernel event types.
const (
	ModuleInstalledEventType   = "kernel.module.installed"
	ModuleUpgradedEventType    = "kernel.module.upgraded"
	PolicyActivatedEventType   = "kernel.policy.activated"
	PolicyDeactivatedEventType = "kernel.policy.deactivated"
	ExecutorChangedEventType   = "kernel.executor.changed"
)

// ModuleInstalledEvent is published when a module is installed.
type ModuleInstalledEvent struct {
	Keycode Keycode
	Address Address
}

func (e ModuleInstalledEvent) EventType() string { return ModuleInstalledEventType }

// ModuleUpgradedEvent is published when a module's address is replaced.
type ModuleUpgradedEvent struct {
	Keycode    Keycode
	OldAddress Address
	NewAddress Address
}

func (e ModuleUpgradedEvent) EventType() string { return ModuleUpgradedEventType }

// PolicyActivatedEvent is published when a policy becomes active.
type PolicyActivatedEvent struct {
	Address Address
}

func (e PolicyActivatedEvent) EventType() string { return PolicyActivatedEventType }

// PolicyDeactivatedEvent is published when a policy is soft-deleted.
type PolicyDeactivatedEvent struct {
	Address Address
}

func (e PolicyDeactivatedEvent) EventType() string { return PolicyDeactivatedEventType }

// ExecutorChangedEvent is published when the executor capability moves.
type ExecutorChangedEvent struct {
	OldExecutor string
	NewExecutor string
}

func (e ExecutorChangedEvent) EventType() string { return ExecutorChangedEventType }

// New returns a Kernel gated by the executor capability. status may be nil
// (ungated registry, used in tests); bus may be nil (no events).
func New(gate *auth.Gate, status StatusReader, bus events.Bus) Kernel {
	return &kernel{
		gate:     gate,
		status:   status,
		bus:      bus,
		modules:  make(map[Keycode]ModuleRecord),
		policies: make(map[Address]PolicyRecord),
	}
}

// kernel is the concrete implementation of the Kernel interface.
type kernel struct {
	mu       sync.RWMutex
	gate     *auth.Gate
	status   StatusReader
	bus      events.Bus
	modules  map[Keycode]ModuleRecord
	policies map[Address]PolicyRecord
	keycodes []Keycode
}

// checkMutable verifies the caller holds the executor capability and the
// system is neither paused nor shut down.
func (k *kernel) checkMutable(ctx context.Context) error {
	if err := k.gate.Check(ctx); err != nil {
		return err
	}
	if k.status == nil {
		return nil
	}
	st := k.status.Status()
	if st.Shutdown {
		return fmt.Errorf("registry mutation: %w", cerrors.ErrShutdown)
	}
	if st.Paused {
		return fmt.Errorf("registry mutation: %w", cerrors.ErrPaused)
	}
	return nil
}

// InstallModule records a new module. Fails if the keycode is occupied or
// the address is zero.
func (k *kernel) InstallModule(ctx context.Context, keycode Keycode, address Address) error {
	tracer := otel.Tracer("banyan-kernel")
	ctx, span := tracer.Start(ctx, "Kernel.InstallModule", trace.WithAttributes(attribute.String("module.keycode", keycode.String())))
	defer span.End()

	metrics.ModuleInstallCounter.WithLabelValues(keycode.String(), "attempt").Inc()
	err := func() error {
		if err := k.checkMutable(ctx); err != nil {
			return err
		}
		k.mu.Lock()
		defer k.mu.Unlock()
		if address.IsZero() {
			return fmt.Errorf("install %s: %w", keycode, cerrors.ErrInvalidAddress)
		}
		if _, exists := k.modules[keycode]; exists {
			return fmt.Errorf("install %s: %w", keycode, cerrors.ErrAlreadyInstalled)
		}
		now := time.Now()
		k.modules[keycode] = ModuleRecord{Keycode: keycode, Address: address, InstalledAt: now, UpgradedAt: now}
		k.keycodes = append(k.keycodes, keycode)
		return nil
	}()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ModuleInstallCounter.WithLabelValues(keycode.String(), "failed").Inc()
		return err
	}
	metrics.ModuleInstallCounter.WithLabelValues(keycode.String(), "success").Inc()
	logger.Info(ctx, "Module installed", zap.Stringer("keycode", keycode), zap.Stringer("address", address))
	if k.bus != nil {
		k.bus.Publish(ctx, ModuleInstalledEventType, ModuleInstalledEvent{Keycode: keycode, Address: address})
	}
	return nil
}

// UpgradeModule replaces the stored address in place. Install timestamp and
// enumeration order are untouched.
func (k *kernel) UpgradeModule(ctx context.Context, keycode Keycode, address Address) error {
	tracer := otel.Tracer("banyan-kernel")
	ctx, span := tracer.Start(ctx, "Kernel.UpgradeModule", trace.WithAttributes(attribute.String("module.keycode", keycode.String())))
	defer span.End()

	metrics.ModuleUpgradeCounter.WithLabelValues(keycode.String(), "attempt").Inc()
	var old Address
	err := func() error {
		if err := k.checkMutable(ctx); err != nil {
			return err
		}
		k.mu.Lock()
		defer k.mu.Unlock()
		if address.IsZero() {
			return fmt.Errorf("upgrade %s: %w", keycode, cerrors.ErrInvalidAddress)
		}
		rec, exists := k.modules[keycode]
		if !exists {
			return fmt.Errorf("upgrade %s: %w", keycode, cerrors.ErrNotInstalled)
		}
		old = rec.Address
		rec.Address = address
		rec.UpgradedAt = time.Now()
		k.modules[keycode] = rec
		return nil
	}()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ModuleUpgradeCounter.WithLabelValues(keycode.String(), "failed").Inc()
		return err
	}
	metrics.ModuleUpgradeCounter.WithLabelValues(keycode.String(), "success").Inc()
	logger.Info(ctx, "Module upgraded", zap.Stringer("keycode", keycode), zap.Stringer("from", old), zap.Stringer("to", address))
	if k.bus != nil {
		k.bus.Publish(ctx, ModuleUpgradedEventType, ModuleUpgradedEvent{Keycode: keycode, OldAddress: old, NewAddress: address})
	}
	return nil
}

// ActivatePolicy marks the policy active, creating its record on first
// activation.
func (k *kernel) ActivatePolicy(ctx context.Context, address Address) error {
	tracer := otel.Tracer("banyan-kernel")
	ctx, span := tracer.Start(ctx, "Kernel.ActivatePolicy", trace.WithAttributes(attribute.String("policy.address", address.String())))
	defer span.End()

	metrics.PolicyToggleCounter.WithLabelValues("activate", "attempt").Inc()
	err := func() error {
		if err := k.checkMutable(ctx); err != nil {
			return err
		}
		k.mu.Lock()
		defer k.mu.Unlock()
		if address.IsZero() {
			return fmt.Errorf("activate policy: %w", cerrors.ErrInvalidAddress)
		}
		rec := k.policies[address]
		if rec.Active {
			return fmt.Errorf("activate policy %s: %w", address, cerrors.ErrAlreadyActive)
		}
		rec.Address = address
		rec.Active = true
		rec.ActivatedAt = time.Now()
		rec.DeactivatedAt = time.Time{}
		k.policies[address] = rec
		return nil
	}()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.PolicyToggleCounter.WithLabelValues("activate", "failed").Inc()
		return err
	}
	metrics.PolicyToggleCounter.WithLabelValues("activate", "success").Inc()
	logger.Info(ctx, "Policy activated", zap.Stringer("address", address))
	if k.bus != nil {
		k.bus.Publish(ctx, PolicyActivatedEventType, PolicyActivatedEvent{Address: address})
	}
	return nil
}

// DeactivatePolicy flips the active flag and stamps the deactivation time.
// The record is retained.
func (k *kernel) DeactivatePolicy(ctx context.Context, address Address) error {
	tracer := otel.Tracer("banyan-kernel")
	ctx, span := tracer.Start(ctx, "Kernel.DeactivatePolicy", trace.WithAttributes(attribute.String("policy.address", address.String())))
	defer span.End()

	metrics.PolicyToggleCounter.WithLabelValues("deactivate", "attempt").Inc()
	err := func() error {
		if err := k.checkMutable(ctx); err != nil {
			return err
		}
		k.mu.Lock()
		defer k.mu.Unlock()
		rec, exists := k.policies[address]
		if !exists || !rec.Active {
			return fmt.Errorf("deactivate policy %s: %w", address, cerrors.ErrNotActive)
		}
		rec.Active = false
		rec.DeactivatedAt = time.Now()
		k.policies[address] = rec
		return nil
	}()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.PolicyToggleCounter.WithLabelValues("deactivate", "failed").Inc()
		return err
	}
	metrics.PolicyToggleCounter.WithLabelValues("deactivate", "success").Inc()
	logger.Info(ctx, "Policy deactivated", zap.Stringer("address", address))
	if k.bus != nil {
		k.bus.Publish(ctx, PolicyDeactivatedEventType, PolicyDeactivatedEvent{Address: address})
	}
	return nil
}

// ChangeExecutor transfers the mutating authority. The executor change
// itself is not suspended by pause, so a paused system can still be handed
// over.
func (k *kernel) ChangeExecutor(ctx context.Context, newExecutor string) error {
	if err := k.gate.Check(ctx); err != nil {
		return err
	}
	if newExecutor == "" {
		return fmt.Errorf("change executor: %w", cerrors.ErrInvalidAddress)
	}
	old := k.gate.Holder()
	k.gate.Transfer(newExecutor)
	logger.Info(ctx, "Executor changed", zap.String("from", old), zap.String("to", newExecutor))
	if k.bus != nil {
		k.bus.Publish(ctx, ExecutorChangedEventType, ExecutorChangedEvent{OldExecutor: old, NewExecutor: newExecutor})
	}
	return nil
}

// ModuleAddress returns the address currently implementing keycode.
func (k *kernel) ModuleAddress(keycode Keycode) (Address, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	rec, ok := k.modules[keycode]
	return rec.Address, ok
}

// Module returns the full record for keycode.
func (k *kernel) Module(keycode Keycode) (ModuleRecord, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	rec, ok := k.modules[keycode]
	return rec, ok
}

// Keycodes returns all installed keycodes in installation order.
func (k *kernel) Keycodes() []Keycode {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]Keycode, len(k.keycodes))
	copy(out, k.keycodes)
	return out
}

// ModuleCount returns the number of installed modules.
func (k *kernel) ModuleCount() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.modules)
}

// IsPolicyActive reports whether the policy at address is active.
func (k *kernel) IsPolicyActive(address Address) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.policies[address].Active
}

// Policy returns the full record for address.
func (k *kernel) Policy(address Address) (PolicyRecord, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	rec, ok := k.policies[address]
	return rec, ok
}

// PolicyCount returns the number of policy records, active or not.
func (k *kernel) PolicyCount() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.policies)
}

// ActivePolicyCount returns the number of currently active policies.
func (k *kernel) ActivePolicyCount() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	n := 0
	for _, rec := range k.policies {
		if rec.Active {
			n++
		}
	}
	return n
}

// Executor returns the id of the current executor.
func (k *kernel) Executor() string {
	return k.gate.Holder()
}

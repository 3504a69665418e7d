// Package runtime assembles the four core components from a loaded bootstrap
// configuration: it builds the authority gates, the event bus, and the audit
// sink, then bridges every core event into the audit trail.
package runtime

import (
	"context"
	"fmt"

	"banyan/core/audit"
	"banyan/core/auth"
	"banyan/core/config"
	"banyan/core/configstore"
	"banyan/core/depgraph"
	cerrors "banyan/core/errors"
	"banyan/core/events"
	"banyan/core/kernel"
	"banyan/core/lifecycle"
	"banyan/core/logger"

	"go.uber.org/zap"
)

// auditTopics lists every event type bridged into the audit sink.
var auditTopics = []string{
	kernel.ModuleInstalledEventType,
	kernel.ModuleUpgradedEventType,
	kernel.PolicyActivatedEventType,
	kernel.PolicyDeactivatedEventType,
	kernel.ExecutorChangedEventType,
	depgraph.DependencyRegisteredEventType,
	depgraph.DependencyRemovedEventType,
	lifecycle.InitializedEventType,
	lifecycle.UpgradedEventType,
	lifecycle.PausedEventType,
	lifecycle.UnpausedEventType,
	lifecycle.ShutdownEventType,
	configstore.ConfigUpdatedEventType,
	configstore.ActionPerformedEventType,
	configstore.EmergencyShutdownEventType,
	configstore.EmergencyRecoveryEventType,
}

// Runtime wires the core components to shared infrastructure.
type Runtime struct {
	Bus        events.Bus
	Audit      *audit.Log
	Lifecycle  *lifecycle.Manager
	Graph      *depgraph.Graph
	Controller *configstore.Controller
	Kernel     kernel.Kernel

	cancelSubs []func()
}

// New constructs a Runtime from the bootstrap configuration. The caller owns
// the returned Runtime and must Close it to flush the audit sink.
func New(cfg *config.Config) (*Runtime, error) {
	bus := events.New()

	auditLog, err := audit.NewLog(cfg.Audit.Path, cfg.Audit.MaxEvents)
	if err != nil {
		return nil, fmt.Errorf("audit sink: %w", err)
	}

	executorGate := auth.NewGate(cfg.Authorities.Executor, cerrors.ErrOnlyExecutor)
	adminGate := auth.NewGate(cfg.Authorities.Admin, cerrors.ErrOnlyAdmin)
	emergencyGate := auth.NewGate(cfg.Authorities.EmergencyAdmin, cerrors.ErrOnlyEmergencyAdmin)

	lc := lifecycle.New(adminGate, bus)
	graph := depgraph.New(adminGate, bus)
	controller := configstore.New(adminGate, emergencyGate, bus)
	k := kernel.New(executorGate, lc, bus)

	if cfg.SeedFile != "" {
		seed, err := configstore.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			auditLog.Close()
			return nil, fmt.Errorf("seed entries: %w", err)
		}
		controller.Seed(seed)
	}

	rt := &Runtime{
		Bus:        bus,
		Audit:      auditLog,
		Lifecycle:  lc,
		Graph:      graph,
		Controller: controller,
		Kernel:     k,
	}
	rt.bridgeAudit()
	return rt, nil
}

// bridgeAudit funnels every published core event into the audit sink.
func (rt *Runtime) bridgeAudit() {
	for _, topic := range auditTopics {
		ch, cancel, err := rt.Bus.Subscribe(topic)
		if err != nil {
			logger.Warn(context.Background(), "Failed to subscribe audit bridge", zap.String("topic", topic), zap.Error(err))
			continue
		}
		rt.cancelSubs = append(rt.cancelSubs, cancel)
		go func(topic string, ch <-chan events.TypedEvent) {
			for ev := range ch {
				entry := audit.Entry{
					Source:  topic,
					Action:  ev.EventType(),
					Details: map[string]string{"event": fmt.Sprintf("%+v", ev)},
				}
				if err := rt.Audit.Record(entry); err != nil {
					logger.Warn(context.Background(), "Failed to record audit entry", zap.String("topic", topic), zap.Error(err))
				}
			}
		}(topic, ch)
	}
}

// Close unsubscribes the audit bridge, closes the bus, and flushes the sink.
func (rt *Runtime) Close() {
	for _, cancel := range rt.cancelSubs {
		cancel()
	}
	rt.Bus.Close()
	rt.Audit.Close()
}

// Package metrics defines the prometheus instrumentation for the core
// components. Counters use a status label ("attempt", "success", "failed")
// so dashboards can derive failure rates per operation family.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ModuleInstallCounter counts module install attempts.
	ModuleInstallCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banyan_module_installs_total",
		Help: "Total number of module install attempts.",
	}, []string{"keycode", "status"})

	// ModuleUpgradeCounter counts module upgrade attempts.
	ModuleUpgradeCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banyan_module_upgrades_total",
		Help: "Total number of module upgrade attempts.",
	}, []string{"keycode", "status"})

	// PolicyToggleCounter counts policy activation and deactivation attempts.
	PolicyToggleCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banyan_policy_toggles_total",
		Help: "Total number of policy activation/deactivation attempts.",
	}, []string{"action", "status"})

	// DependencyOpCounter counts dependency graph mutations.
	DependencyOpCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banyan_dependency_ops_total",
		Help: "Total number of dependency register/remove attempts.",
	}, []string{"op", "status"})

	// LifecycleTransitionCounter counts lifecycle state transitions.
	LifecycleTransitionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banyan_lifecycle_transitions_total",
		Help: "Total number of lifecycle transition attempts.",
	}, []string{"transition", "status"})

	// ConfigUpdateCounter counts configuration writes.
	ConfigUpdateCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banyan_config_updates_total",
		Help: "Total number of configuration update attempts.",
	}, []string{"status"})

	// EmergencySwitchCounter counts emergency circuit flips.
	EmergencySwitchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banyan_emergency_switches_total",
		Help: "Total number of emergency shutdown/recovery calls.",
	}, []string{"action", "status"})
)

package runtime_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"banyan/core/auth"
	"banyan/core/config"
	"banyan/core/configstore"
	cerrors "banyan/core/errors"
	"banyan/core/kernel"
	"banyan/core/runtime"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Authorities: config.AuthoritiesConfig{
			Executor:       "executor",
			Admin:          "admin",
			EmergencyAdmin: "breaker",
		},
		Audit:   config.AuditConfig{Path: filepath.Join(t.TempDir(), "audit.log"), MaxEvents: 100},
		Release: config.ReleaseConfig{Version: 1, Ref: "1.0.0"},
	}
}

func principal(id string) context.Context {
	return auth.ContextWithPrincipal(context.Background(), auth.NewDefaultPrincipal(id, "operator"))
}

func TestRuntime_EmergencyAndLifecycleAreIndependent(t *testing.T) {
	rt, err := runtime.New(testConfig(t))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer rt.Close()

	if err := rt.Lifecycle.Initialize(principal("admin"), 1, "1.0.0"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := rt.Lifecycle.Pause(principal("admin")); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// Flipping the emergency circuit must not touch lifecycle state, and
	// the lifecycle pause must not show up on the controller.
	if err := rt.Controller.EmergencyShutdown(principal("breaker")); err != nil {
		t.Fatalf("emergency shutdown: %v", err)
	}
	if st := rt.Lifecycle.Status(); !st.Paused || st.Shutdown {
		t.Fatalf("lifecycle status disturbed by emergency circuit: %+v", st)
	}

	if err := rt.Lifecycle.Unpause(principal("admin")); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if !rt.Controller.Paused() {
		t.Fatal("controller pause flag must survive lifecycle unpause")
	}

	// Registry gating follows the lifecycle manager, not the controller.
	mod01 := kernel.MustKeycode("MOD01")
	var a kernel.Address
	a[0] = 1
	if err := rt.Kernel.InstallModule(principal("executor"), mod01, a); err != nil {
		t.Fatalf("install while controller paused: %v", err)
	}
	// Controller writes follow only the controller's own flag.
	err = rt.Controller.UpdateConfiguration(principal("admin"), configstore.KeyOf("k"), configstore.WordOf("v"))
	if !errors.Is(err, cerrors.ErrSystemPaused) {
		t.Fatalf("expected ErrSystemPaused, got %v", err)
	}
}

func TestRuntime_AuditBridgeRecordsKernelEvents(t *testing.T) {
	rt, err := runtime.New(testConfig(t))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer rt.Close()

	mod01 := kernel.MustKeycode("MOD01")
	var a kernel.Address
	a[0] = 1
	if err := rt.Kernel.InstallModule(principal("executor"), mod01, a); err != nil {
		t.Fatalf("install: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		entries := rt.Audit.Query(kernel.ModuleInstalledEventType, 0)
		if len(entries) == 1 {
			if entries[0].Action != kernel.ModuleInstalledEventType {
				t.Fatalf("unexpected audit action: %s", entries[0].Action)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for audit entry")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRuntime_SeedFile(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	cfg.SeedFile = filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(cfg.SeedFile, []byte("treasury.cap: \"5000\"\n"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer rt.Close()

	got, err := rt.Controller.GetConfiguration(configstore.KeyOf("treasury.cap"))
	if err != nil {
		t.Fatalf("get seeded key: %v", err)
	}
	if got.String() != "5000" {
		t.Fatalf("expected 5000, got %s", got)
	}
}

package runtime

import (
	"context"
	"testing"

	"emberd/internal/config"
	"emberd/pkg/types"
)

func TestNewFactoryModes(t *testing.T) {
	f, err := NewFactory(config.RuntimeConfig{Mode: "server", ServerURL: "http://127.0.0.1:9999"})
	if err != nil || f.Name() != "server" {
		t.Fatalf("server mode: factory=%v err=%v", f, err)
	}
	f, err = NewFactory(config.RuntimeConfig{Mode: "spawn", LlamaBin: "/nonexistent"})
	if err != nil || f.Name() != "spawn" {
		t.Fatalf("spawn mode: factory=%v err=%v", f, err)
	}
	f, err = NewFactory(config.RuntimeConfig{Mode: "local"})
	if err != nil || f.Name() != "local" {
		t.Fatalf("local mode: factory=%v err=%v", f, err)
	}
	if _, err := NewFactory(config.RuntimeConfig{Mode: "quantum"}); err == nil {
		t.Fatalf("unknown mode accepted")
	}
}

func TestNewFactoryAutoPrefersServerURL(t *testing.T) {
	f, err := NewFactory(config.RuntimeConfig{Mode: "auto", ServerURL: "http://127.0.0.1:9999"})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	if f.Name() != "server" {
		t.Fatalf("auto with server URL picked %s", f.Name())
	}
}

// Default test builds carry no llama tag, so the local factory must refuse
// sessions instead of pretending.
func TestLocalStubRefusesSessions(t *testing.T) {
	if Built() {
		t.Skip("built with llama tag")
	}
	f := NewLocalFactory(config.RuntimeConfig{})
	if ok, _ := f.Available(); ok {
		t.Fatalf("stub reports available")
	}
	if f.Supports(types.BackendCPU) {
		t.Fatalf("stub claims backend support")
	}
	_, err := f.Open(context.Background(), types.ModelRecord{ID: "m", Path: "/x"}, types.BackendCPU)
	if !IsDependencyUnavailable(err) {
		t.Fatalf("err = %v, want dependency unavailable", err)
	}
}

func TestErrorHelpers(t *testing.T) {
	if !IsBackendUnsupported(ErrBackendUnsupported("spawn", types.BackendNPU)) {
		t.Fatalf("IsBackendUnsupported false for its own error")
	}
	if IsBackendUnsupported(ErrDependencyUnavailable("x")) {
		t.Fatalf("IsBackendUnsupported true for unrelated error")
	}
	if !IsDependencyUnavailable(ErrDependencyUnavailable("x")) {
		t.Fatalf("IsDependencyUnavailable false for its own error")
	}
}

package runtime

import (
	"fmt"

	"emberd/internal/config"
)

// NewFactory selects the adapter for the configured runtime mode. "auto"
// prefers a configured server URL, then a discoverable llama-server binary,
// then the in-process bindings.
func NewFactory(cfg config.RuntimeConfig) (Factory, error) {
	switch cfg.Mode {
	case "server":
		return newServerFactory(cfg), nil
	case "spawn":
		return newSpawnFactory(cfg), nil
	case "local":
		return NewLocalFactory(cfg), nil
	case "", "auto":
		if cfg.ServerURL != "" {
			return newServerFactory(cfg), nil
		}
		if f := newSpawnFactory(cfg); f.bin != "" {
			return f, nil
		}
		return NewLocalFactory(cfg), nil
	}
	return nil, fmt.Errorf("unknown runtime mode %q", cfg.Mode)
}

// Built reports whether the binary carries the in-process llama bindings.
// Surfaces in the sanity report so operators can tell a stub build from a
// misconfigured one.
func Built() bool { return llamaBuilt }

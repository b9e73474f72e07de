package engine

import "time"

const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

// EngineConfig tunes the engine. Zero values take the defaults above.
type EngineConfig struct {
	// DefaultModel is used when a request names no model.
	DefaultModel string

	// PreferNPU biases backend ranking toward NPU-class backends.
	// An activation request can override it per call.
	PreferNPU bool

	// CatalogPath and NPUCatalogPath locate the curated catalog files.
	// When NPUCatalogPath is set and an NPU-class backend is detected,
	// the NPU catalog is used instead of the regular one. Empty paths
	// fall back to the built-in catalog.
	CatalogPath    string
	NPUCatalogPath string

	// StateDir holds small persisted state such as the last-activated
	// model. Empty disables persistence.
	StateDir string

	// AutoActivateLast re-activates the previously active model on boot.
	AutoActivateLast bool

	// MaxQueueDepth bounds chat requests waiting for the single
	// generation slot; MaxWait bounds how long a request waits before
	// being refused as busy.
	MaxQueueDepth int
	MaxWait       time.Duration

	// DrainTimeout bounds how long a superseded or deactivated session
	// may finish in-flight generations before it is closed anyway.
	DrainTimeout time.Duration

	// Publisher receives lifecycle events in addition to the engine's
	// own subscriber fan-out. Nil means fan-out only.
	Publisher EventPublisher
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = defaultMaxQueueDepth
	}
	if c.MaxWait <= 0 {
		c.MaxWait = defaultMaxWait
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	return c
}

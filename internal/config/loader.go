package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// RuntimeConfig selects and tunes the inference runtime adapter.
type RuntimeConfig struct {
	// Mode: "local" (in-process, requires the llama build tag), "spawn"
	// (managed llama-server subprocess), "server" (existing remote server),
	// or "" for the build's default.
	Mode string `json:"mode" yaml:"mode" toml:"mode"`
	// Path to the llama-server binary for spawn mode; empty = discover.
	LlamaBin string `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin"`
	// Context window size passed to the runtime.
	CtxSize int `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	// Worker threads for CPU inference; 0 = runtime default.
	Threads int `json:"threads" yaml:"threads" toml:"threads"`
	// Layer count to offload when a GPU backend is selected; 0 = all layers.
	GPULayers int `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	// Base URL of an already-running OpenAI-compatible server (server mode).
	ServerURL string `json:"server_url" yaml:"server_url" toml:"server_url"`
	// Optional bearer token for server mode.
	APIKey string `json:"api_key" yaml:"api_key" toml:"api_key"`
}

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr           string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir      string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	StateDir       string `json:"state_dir" yaml:"state_dir" toml:"state_dir"`
	CatalogPath    string `json:"catalog_path" yaml:"catalog_path" toml:"catalog_path"`
	NPUCatalogPath string `json:"npu_catalog_path" yaml:"npu_catalog_path" toml:"npu_catalog_path"`
	DefaultModel   string `json:"default_model" yaml:"default_model" toml:"default_model"`
	PreferNPU      bool   `json:"prefer_npu" yaml:"prefer_npu" toml:"prefer_npu"`
	// Re-activate the last active model on startup (best effort).
	AutoActivateLast bool `json:"auto_activate_last" yaml:"auto_activate_last" toml:"auto_activate_last"`
	// Chat admission.
	MaxQueueDepth int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitS      int `json:"max_wait_s" yaml:"max_wait_s" toml:"max_wait_s"`
	// Download bandwidth cap in bytes per second; 0 = unlimited.
	RateLimitBps int64 `json:"rate_limit_bps" yaml:"rate_limit_bps" toml:"rate_limit_bps"`
	// HTTP surface limits.
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	ChatTimeoutS int64    `json:"chat_timeout_s" yaml:"chat_timeout_s" toml:"chat_timeout_s"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	Runtime RuntimeConfig `json:"runtime" yaml:"runtime" toml:"runtime"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

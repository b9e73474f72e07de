package types

// ChatRequest is the payload for POST /chat.
type ChatRequest struct {
	// Required prompt text to generate a reply for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// If true, stream tokens as NDJSON lines. The server may still stream
	// internally when false but buffers before responding.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Optional stop sequences. Generation stops when any sequence matches.
	// example: ["\n\n","END"]
	Stop []string `json:"stop,omitempty" example:"[\"\\n\\n\",\"END\"]"`
	// Random seed for reproducibility; 0 or omitted lets the runtime choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
	// Repeat penalty applied by llama-family runtimes.
	// example: 1.1
	RepeatPenalty float64 `json:"repeat_penalty,omitempty" example:"1.1"`
}

// ActivateRequest is the payload for POST /activate.
type ActivateRequest struct {
	// Identity of the model record to bring online.
	// example: tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf
	Model string `json:"model" example:"tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf"`
	// Optional override of the configured NPU-first preference.
	PreferNPU *bool `json:"prefer_npu,omitempty"`
}

// ActivateResponse acknowledges an accepted activation attempt.
type ActivateResponse struct {
	// Opaque operation id of the background attempt.
	// example: 7f9c24e8-3b0a-4f2e-9e58-1f54d3c1a9b2
	OpID string `json:"op_id" example:"7f9c24e8-3b0a-4f2e-9e58-1f54d3c1a9b2"`
	// Engine state at the time the attempt was accepted.
	// example: catalog_lookup
	State string `json:"state" example:"catalog_lookup"`
}

// ModelsResponse wraps the list of catalog records returned by GET /models.
type ModelsResponse struct {
	// Merged catalog records.
	Models []ModelRecord `json:"models"`
}

// BackendsResponse wraps the ranked backend list returned by GET /backends.
type BackendsResponse struct {
	// Detected backends in ranked order.
	Backends []BackendDescriptor `json:"backends"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: missing.gguf
	Error string `json:"error" example:"model not found: missing.gguf"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// SanityReport describes startup environment checks.
type SanityReport struct {
	// Whether the models directory exists and is writable.
	// example: true
	ModelsDirWritable bool `json:"models_dir_writable" example:"true"`
	// Path of the models directory that was checked.
	// example: /home/user/models
	ModelsDir string `json:"models_dir" example:"/home/user/models"`
	// Bytes occupied by artifacts and partial downloads under the models
	// directory.
	// example: 668788096
	ModelsDirBytes int64 `json:"models_dir_bytes" example:"668788096"`
	// Whether a curated catalog source was found (asset file or built-in).
	// example: true
	CatalogFound bool `json:"catalog_found" example:"true"`
	// Whether the inference runtime reports itself usable.
	// example: false
	RuntimeAvailable bool `json:"runtime_available" example:"false"`
	// Detail about the runtime check outcome.
	RuntimeDetail string `json:"runtime_detail,omitempty"`
	// Error encountered while checking, if any.
	Error string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Engine activation state (idle, catalog_lookup, transfer_pending,
	// transferring, verifying, backend_probe, active, fallback, draining).
	// example: active
	State string `json:"state" example:"active"`
	// Identity of the active model, when state is active.
	// example: tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf
	ActiveModel string `json:"active_model,omitempty" example:"tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf"`
	// Backend kind serving the active session.
	// example: cuda
	ActiveBackend string `json:"active_backend,omitempty" example:"cuda"`
	// True when the scripted fallback responder is answering chat.
	// example: false
	FallbackActive bool `json:"fallback_active" example:"false"`
	// Why the fallback responder is in effect, when it is.
	FallbackReason string `json:"fallback_reason,omitempty"`
	// Last probe error per backend kind from the most recent attempt.
	BackendErrors map[string]string `json:"backend_errors,omitempty"`
	// Live and recently finished transfer jobs.
	Transfers []TransferStatus `json:"transfers,omitempty"`
	// Number of chat requests waiting for admission.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of chat generations currently running.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued chat requests before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Total finished activation attempts since start.
	// example: 3
	ActivationsTotal uint64 `json:"activations_total" example:"3"`
	// Last error observed by the engine, if any.
	LastError string `json:"last_error,omitempty"`
	// Uptime of the daemon in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Startup environment checks.
	Sanity *SanityReport `json:"sanity,omitempty"`
}

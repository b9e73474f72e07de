package types

// BackendKind identifies a compute execution path a model can run on.
type BackendKind string

const (
	BackendCPU      BackendKind = "cpu"
	BackendCUDA     BackendKind = "cuda"
	BackendVulkan   BackendKind = "vulkan"
	BackendMetal    BackendKind = "metal"
	BackendOpenVINO BackendKind = "openvino"
	BackendNPU      BackendKind = "npu"
)

// IsNPUClass reports whether the kind is an NPU-class accelerator path.
// OpenVINO is grouped here: on the hosts we target it fronts the same
// low-power accelerator silicon as the dedicated NPU runtimes.
func (k BackendKind) IsNPUClass() bool {
	return k == BackendNPU || k == BackendOpenVINO
}

// IsGPUClass reports whether the kind is a GPU execution path.
func (k BackendKind) IsGPUClass() bool {
	return k == BackendCUDA || k == BackendVulkan || k == BackendMetal
}

// Availability describes how much of a model artifact is usable on disk.
type Availability string

const (
	// AvailabilityNotFetched means no local bytes exist for the record.
	AvailabilityNotFetched Availability = "not_fetched"
	// AvailabilityPartial means a partial download file exists.
	AvailabilityPartial Availability = "partial"
	// AvailabilityFetched means the full file is on disk but carries no
	// declared hash, so it is accepted on trust.
	AvailabilityFetched Availability = "fetched"
	// AvailabilityVerifiedOk means the full file matched its declared hash.
	AvailabilityVerifiedOk Availability = "verified_ok"
	// AvailabilityVerifiedFailed means the file did not match its declared
	// hash. The file is kept on disk for inspection; activation refuses it.
	AvailabilityVerifiedFailed Availability = "verified_failed"
)

// Activatable reports whether a record in this state may be handed to a
// backend probe. Only fully present artifacts qualify: verified ones, or
// hash-less ones accepted on trust.
func (a Availability) Activatable() bool {
	return a == AvailabilityFetched || a == AvailabilityVerifiedOk
}

// ModelRecord is one entry of the merged model catalog. Identity is the
// artifact filename; a record may be backed by a local file, a curated
// remote source, or both (local facts win for path/size, curated data
// supplies URLs and the expected hash).
type ModelRecord struct {
	// Stable identity: the artifact filename.
	// example: tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf
	ID string `json:"id" example:"tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf"`
	// Human-friendly name, from the curated catalog when known.
	// example: TinyLlama 1.1B Chat
	Name string `json:"name" example:"TinyLlama 1.1B Chat"`
	// Optional family (e.g., llama, mistral, phi, qwen).
	// example: llama
	Family string `json:"family,omitempty" example:"llama"`
	// Quantization or precision variant.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// Model flavor derived from the name (chat, instruct, code, base).
	// example: chat
	Kind string `json:"kind,omitempty" example:"chat"`
	// Curated description, if any.
	Description string `json:"description,omitempty"`
	// Absolute path of the local artifact. Empty when not fetched.
	// example: /home/user/models/tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf
	Path string `json:"path,omitempty" example:"/home/user/models/tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf"`
	// Size in bytes: local file size when present, else curated estimate.
	// example: 668788096
	SizeBytes int64 `json:"size_bytes,omitempty" example:"668788096"`
	// Download URL from the curated catalog.
	URL string `json:"url,omitempty"`
	// Companion artifacts (e.g., tokenizer files) required for activation.
	AuxURLs []string `json:"aux_urls,omitempty"`
	// Expected SHA-256 of the artifact, lowercase hex. Empty means the
	// catalog declares no hash and the file is accepted on trust.
	SHA256 string `json:"sha256,omitempty"`
	// Derived availability of the artifact on this host.
	// example: verified_ok
	Availability Availability `json:"availability" example:"verified_ok"`
	// Bytes present in the partial file when Availability is partial.
	// example: 307200
	BytesDone int64 `json:"bytes_done,omitempty" example:"307200"`
	// True when a complete local file backs this record.
	Local bool `json:"local"`
	// True when the record appears in the curated catalog.
	Curated bool `json:"curated"`
}

// BackendDescriptor is one candidate compute backend, as detected on this
// host. Descriptors are data: kind plus ranking weight; session creation is
// delegated to the runtime collaborator.
type BackendDescriptor struct {
	// Backend kind.
	// example: cuda
	Kind BackendKind `json:"kind" example:"cuda"`
	// Whether the probe found this backend usable on this host.
	// example: true
	Available bool `json:"available" example:"true"`
	// Ranking weight; higher ranks earlier. Preference flags adjust the
	// effective weight, not this base value.
	// example: 100
	Weight int `json:"weight" example:"100"`
	// Short probe detail for diagnostics (driver, device, library path).
	// example: NVIDIA GeForce RTX 4070
	Detail string `json:"detail,omitempty" example:"NVIDIA GeForce RTX 4070"`
}

// TransferStatus summarizes one transfer job for /status and /events.
type TransferStatus struct {
	// Record identity the job belongs to.
	// example: tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf
	Model string `json:"model" example:"tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf"`
	// Job state (queued, in_progress, paused, completed, failed, cancelled).
	// example: in_progress
	State string `json:"state" example:"in_progress"`
	// Bytes written to the partial file so far.
	// example: 307200
	BytesDone int64 `json:"bytes_done" example:"307200"`
	// Total expected bytes; 0 when the server did not declare a size.
	// example: 1048576
	TotalBytes int64 `json:"total_bytes,omitempty" example:"1048576"`
	// Instantaneous transfer rate in bytes per second.
	// example: 524288
	Rate float64 `json:"rate_bps,omitempty" example:"524288"`
	// Terminal error message, when failed.
	Error string `json:"error,omitempty"`
}

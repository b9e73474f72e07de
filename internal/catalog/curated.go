package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"emberd/internal/common/fsutil"
)

// CuratedEntry is one row of a curated catalog file. File is the artifact
// filename and doubles as record identity.
type CuratedEntry struct {
	File        string   `json:"file" yaml:"file"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Family      string   `json:"family,omitempty" yaml:"family,omitempty"`
	Quant       string   `json:"quant,omitempty" yaml:"quant,omitempty"`
	Kind        string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	URL         string   `json:"url" yaml:"url"`
	AuxURLs     []string `json:"aux_urls,omitempty" yaml:"aux_urls,omitempty"`
	SHA256      string   `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	SizeBytes   int64    `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
}

// LoadCurated reads a curated catalog file, dispatching on extension:
// .yaml/.yml or .json. Entries without a file name are rejected; declared
// hashes are normalized to lowercase hex.
func LoadCurated(path string) ([]CuratedEntry, error) {
	expanded, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []CuratedEntry
	switch strings.ToLower(filepath.Ext(expanded)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse yaml catalog: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse json catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s", filepath.Ext(expanded))
	}
	for i := range entries {
		if entries[i].File == "" {
			return nil, fmt.Errorf("catalog entry %d: missing file", i)
		}
		entries[i].SHA256 = strings.ToLower(entries[i].SHA256)
	}
	return entries, nil
}

// CuratedFor picks the curated entries for this host. NPU-class hosts get
// the alternate catalog when one is configured, so they see artifacts built
// for their accelerator instead of the generic GGUF set. With no catalog
// file configured the builtin list applies.
func CuratedFor(path, npuPath string, hasNPU bool) ([]CuratedEntry, error) {
	chosen := path
	if hasNPU && npuPath != "" {
		chosen = npuPath
	}
	if chosen == "" {
		return Builtin(hasNPU), nil
	}
	return LoadCurated(chosen)
}

// Builtin is the compiled-in catalog used when no catalog file is
// configured. Entries carry no hash and are accepted on trust; deployments
// that want verification ship a catalog file with pinned hashes.
func Builtin(npu bool) []CuratedEntry {
	if npu {
		return []CuratedEntry{
			{
				File:        "tinyllama-1.1b-chat-int8.onnx",
				Name:        "TinyLlama 1.1B Chat (ONNX int8)",
				Family:      "tinyllama",
				Quant:       "int8",
				Kind:        "chat",
				Description: "TinyLlama chat model quantized for NPU-class accelerators.",
				URL:         "https://huggingface.co/TinyLlama/TinyLlama-1.1B-Chat-v1.0/resolve/main/onnx/model_int8.onnx",
				SizeBytes:   1100 << 20,
			},
			{
				File:        "phi-3-mini-4k-instruct-int4.onnx",
				Name:        "Phi-3 Mini 4K Instruct (ONNX int4)",
				Family:      "phi",
				Quant:       "int4",
				Kind:        "instruct",
				Description: "Phi-3 mini instruct model quantized for NPU-class accelerators.",
				URL:         "https://huggingface.co/microsoft/Phi-3-mini-4k-instruct-onnx/resolve/main/cpu_and_mobile/cpu-int4-rtn-block-32/phi3-mini-4k-instruct-cpu-int4-rtn-block-32.onnx",
				SizeBytes:   2200 << 20,
			},
		}
	}
	return []CuratedEntry{
		{
			File:        "tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf",
			Name:        "TinyLlama 1.1B Chat",
			Family:      "tinyllama",
			Quant:       "Q4_K_M",
			Kind:        "chat",
			Description: "Small chat model suitable for smoke tests and low-memory hosts.",
			URL:         "https://huggingface.co/TheBloke/TinyLlama-1.1B-Chat-v1.0-GGUF/resolve/main/tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf",
			SizeBytes:   668788096,
		},
		{
			File:        "qwen2.5-0.5b-instruct-q4_k_m.gguf",
			Name:        "Qwen2.5 0.5B Instruct",
			Family:      "qwen",
			Quant:       "q4_k_m",
			Kind:        "instruct",
			Description: "Very small instruct model for constrained machines.",
			URL:         "https://huggingface.co/Qwen/Qwen2.5-0.5B-Instruct-GGUF/resolve/main/qwen2.5-0.5b-instruct-q4_k_m.gguf",
			SizeBytes:   491 << 20,
		},
		{
			File:        "phi-2.Q4_K_M.gguf",
			Name:        "Phi-2",
			Family:      "phi",
			Quant:       "Q4_K_M",
			Kind:        "base",
			Description: "General purpose 2.7B model.",
			URL:         "https://huggingface.co/TheBloke/phi-2-GGUF/resolve/main/phi-2.Q4_K_M.gguf",
			SizeBytes:   1790 << 20,
		},
	}
}

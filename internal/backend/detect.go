// Package backend probes the host for usable compute backends and ranks
// them for activation attempts. Probes are capability checks (driver, API
// library, device node presence), not functional tests; a probe that panics
// or errors is treated as "not available" and never aborts detection.
package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"emberd/pkg/types"
)

// Base ranking weights. GPU classes outrank NPU classes, which outrank the
// CPU baseline; the prefer-NPU flag shifts NPU classes ahead at rank time.
const (
	weightCPU      = 10
	weightCUDA     = 100
	weightVulkan   = 90
	weightMetal    = 85
	weightOpenVINO = 50
	weightNPU      = 60
)

// Detector probes once and caches the result for the process run.
// Re-detection happens only on explicit Refresh.
type Detector struct {
	mu     sync.Mutex
	cached []types.BackendDescriptor
}

func NewDetector() *Detector { return &Detector{} }

// Detect returns the cached descriptor list, probing on first use.
// Order is fixed: cpu, cuda, vulkan, metal, openvino, npu.
func (d *Detector) Detect() []types.BackendDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached == nil {
		d.cached = probeAll()
	}
	out := make([]types.BackendDescriptor, len(d.cached))
	copy(out, d.cached)
	return out
}

// Refresh re-probes the host and replaces the cached list.
func (d *Detector) Refresh() []types.BackendDescriptor {
	fresh := probeAll()
	d.mu.Lock()
	d.cached = fresh
	d.mu.Unlock()
	out := make([]types.BackendDescriptor, len(fresh))
	copy(out, fresh)
	return out
}

// Ranked returns the available backends in activation order.
func (d *Detector) Ranked(preferNPU bool) []types.BackendDescriptor {
	return Rank(d.Detect(), preferNPU)
}

// HasNPU reports whether any NPU-class backend was detected as available.
func (d *Detector) HasNPU() bool {
	for _, b := range d.Detect() {
		if b.Available && b.Kind.IsNPUClass() {
			return true
		}
	}
	return false
}

// Rank filters to available descriptors and orders them: highest effective
// weight first. preferNPU promotes NPU-class kinds strictly ahead of GPU and
// baseline kinds. The input slice is not mutated.
func Rank(list []types.BackendDescriptor, preferNPU bool) []types.BackendDescriptor {
	out := make([]types.BackendDescriptor, 0, len(list))
	for _, b := range list {
		if b.Available {
			out = append(out, b)
		}
	}
	effective := func(b types.BackendDescriptor) int {
		w := b.Weight
		if preferNPU && b.Kind.IsNPUClass() {
			w += 1000
		}
		return w
	}
	// insertion sort: the list is tiny and stable order matters
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && effective(out[j]) > effective(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func probeAll() []types.BackendDescriptor {
	probes := []struct {
		kind   types.BackendKind
		weight int
		fn     func() (bool, string)
	}{
		{types.BackendCPU, weightCPU, probeCPU},
		{types.BackendCUDA, weightCUDA, probeCUDA},
		{types.BackendVulkan, weightVulkan, probeVulkan},
		{types.BackendMetal, weightMetal, probeMetal},
		{types.BackendOpenVINO, weightOpenVINO, probeOpenVINO},
		{types.BackendNPU, weightNPU, probeNPU},
	}
	out := make([]types.BackendDescriptor, 0, len(probes))
	for _, p := range probes {
		avail, detail := swallow(p.fn)
		out = append(out, types.BackendDescriptor{
			Kind:      p.kind,
			Available: avail,
			Weight:    p.weight,
			Detail:    detail,
		})
	}
	return out
}

// swallow runs a probe and converts panics into "not available".
func swallow(fn func() (bool, string)) (avail bool, detail string) {
	defer func() {
		if r := recover(); r != nil {
			avail = false
			detail = fmt.Sprintf("probe panic: %v", r)
		}
	}()
	return fn()
}

func probeCPU() (bool, string) {
	return true, fmt.Sprintf("%d logical cores", runtime.NumCPU())
}

// probeCUDA checks for the NVIDIA driver via nvidia-smi and reads the first
// GPU name for diagnostics.
func probeCUDA() (bool, string) {
	smi, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return false, ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, smi, "--list-gpus").Output()
	if err != nil {
		return false, ""
	}
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	if line == "" {
		return false, ""
	}
	// lines look like "GPU 0: NVIDIA GeForce RTX 4070 (UUID: ...)"
	if i := strings.Index(line, ": "); i >= 0 {
		line = line[i+2:]
	}
	if i := strings.Index(line, " (UUID"); i >= 0 {
		line = line[:i]
	}
	return true, line
}

func probeVulkan() (bool, string) {
	var candidates []string
	switch runtime.GOOS {
	case "windows":
		sysRoot := os.Getenv("SYSTEMROOT")
		if sysRoot == "" {
			sysRoot = `C:\Windows`
		}
		candidates = []string{
			filepath.Join(sysRoot, "System32", "vulkan-1.dll"),
			filepath.Join(sysRoot, "SysWOW64", "vulkan-1.dll"),
		}
	case "linux":
		candidates = []string{
			"/usr/lib/x86_64-linux-gnu/libvulkan.so.1",
			"/usr/lib/libvulkan.so.1",
			"/usr/lib64/libvulkan.so.1",
			"/usr/local/lib/libvulkan.so.1",
		}
	default:
		// macOS routes through Metal; no native Vulkan loader expected.
		return false, ""
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return true, p
		}
	}
	return false, ""
}

func probeMetal() (bool, string) {
	if runtime.GOOS == "darwin" {
		return true, "darwin " + runtime.GOARCH
	}
	return false, ""
}

func probeOpenVINO() (bool, string) {
	if dir := os.Getenv("INTEL_OPENVINO_DIR"); dir != "" {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return true, dir
		}
	}
	var candidates []string
	switch runtime.GOOS {
	case "windows":
		candidates = []string{
			`C:\Program Files (x86)\Intel\openvino`,
			`C:\Program Files\Intel\openvino`,
		}
	default:
		candidates = []string{
			"/opt/intel/openvino",
			"/opt/intel/openvino_2024",
			"/opt/intel/openvino_2023",
		}
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && fi.IsDir() {
			return true, p
		}
	}
	return false, ""
}

// probeNPU looks for Qualcomm QNN runtimes or an Intel NPU device node.
func probeNPU() (bool, string) {
	if root := os.Getenv("QNN_SDK_ROOT"); root != "" {
		if fi, err := os.Stat(root); err == nil && fi.IsDir() {
			return true, "qnn sdk " + root
		}
	}
	switch runtime.GOOS {
	case "windows":
		sysRoot := os.Getenv("SYSTEMROOT")
		if sysRoot == "" {
			sysRoot = `C:\Windows`
		}
		for _, dll := range []string{"QnnHtp.dll", "QnnCpu.dll"} {
			p := filepath.Join(sysRoot, "System32", dll)
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				return true, p
			}
		}
		// also scan PATH the way the runtime loader would
		for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
			p := filepath.Join(dir, "QnnHtp.dll")
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				return true, p
			}
		}
	case "linux":
		// intel_vpu / amdxdna drivers expose accel devices
		for _, p := range []string{"/dev/accel/accel0", "/usr/lib/libQnnHtp.so"} {
			if _, err := os.Stat(p); err == nil {
				return true, p
			}
		}
	}
	return false, ""
}

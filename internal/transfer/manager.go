package transfer

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"emberd/pkg/types"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 500 * time.Millisecond
	defaultEmitInterval  = 100 * time.Millisecond
	defaultEmitByteDelta = 1 << 20
)

// ManagerConfig carries tunables for a Manager. Zero values select the
// defaults above.
type ManagerConfig struct {
	// Client overrides the shared HTTP client.
	Client *http.Client
	// RetryAttempts bounds request issuance retries per job.
	RetryAttempts uint
	// RetryDelay is the fixed pause between issuance retries.
	RetryDelay time.Duration
	// RateLimitBps caps aggregate download bandwidth in bytes per second.
	// Zero means unlimited.
	RateLimitBps int64
	// EmitInterval and EmitByteDelta throttle progress events: an event is
	// emitted when either threshold is crossed.
	EmitInterval  time.Duration
	EmitByteDelta int64
}

// Manager runs download jobs, at most one live job per target path.
// Starting a transfer for a target that already has a live job attaches to
// it instead of spawning a second writer.
type Manager struct {
	client        *http.Client
	limiter       *rate.Limiter
	retryAttempts uint
	retryDelay    time.Duration
	emitInterval  time.Duration
	emitByteDelta int64

	mu        sync.Mutex
	active    map[string]*Job
	recent    map[string]*Job
	restarted map[string]bool
}

// New constructs a Manager with default configuration.
func New() *Manager { return NewWithConfig(ManagerConfig{}) }

// NewWithConfig constructs a Manager, filling unset fields with defaults.
func NewWithConfig(cfg ManagerConfig) *Manager {
	if cfg.Client == nil {
		cfg.Client = defaultClient()
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.EmitInterval == 0 {
		cfg.EmitInterval = defaultEmitInterval
	}
	if cfg.EmitByteDelta == 0 {
		cfg.EmitByteDelta = defaultEmitByteDelta
	}
	m := &Manager{
		client:        cfg.Client,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		emitInterval:  cfg.EmitInterval,
		emitByteDelta: cfg.EmitByteDelta,
		active:        make(map[string]*Job),
		recent:        make(map[string]*Job),
		restarted:     make(map[string]bool),
	}
	if cfg.RateLimitBps > 0 {
		burst := int(cfg.RateLimitBps)
		if burst < copyBlockSize {
			burst = copyBlockSize
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitBps), burst)
	}
	return m
}

// Request describes one artifact to download.
type Request struct {
	// Model is the owning model ID, carried into progress events.
	Model string
	// URL is the source.
	URL string
	// TargetPath is the final artifact path. Bytes are written to
	// TargetPath+PartSuffix; the manager never creates the final path.
	TargetPath string
	// ExpectedBytes seeds the total before the server reports one. Zero
	// means unknown.
	ExpectedBytes int64
}

// StartOrResume starts a download, resuming from an existing partial file
// when one is present. If a live job already covers the same target path the
// call attaches to it and reports attached=true.
func (m *Manager) StartOrResume(req Request) (j *Job, attached bool, err error) {
	if req.URL == "" {
		return nil, false, errors.New("transfer: empty URL")
	}
	if req.TargetPath == "" {
		return nil, false, errors.New("transfer: empty target path")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if live, ok := m.active[req.TargetPath]; ok {
		return live, true, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	j = &Job{
		ID:            uuid.NewString(),
		Model:         req.Model,
		URL:           req.URL,
		TargetPath:    req.TargetPath,
		PartPath:      req.TargetPath + PartSuffix,
		emitInterval:  m.emitInterval,
		emitByteDelta: m.emitByteDelta,
		cancel:        cancel,
		done:          make(chan struct{}),
		state:         StateQueued,
		totalBytes:    req.ExpectedBytes,
	}
	m.active[req.TargetPath] = j
	transferActiveJobs.Inc()
	log.Printf("transfer event=start job=%s model=%q target=%q", j.ID, j.Model, j.TargetPath)
	go m.run(ctx, j)
	return j, false, nil
}

// Lookup returns the live job for a target path, or the most recently
// finished one when no live job exists.
func (m *Manager) Lookup(targetPath string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.active[targetPath]; ok {
		return j, true
	}
	j, ok := m.recent[targetPath]
	return j, ok
}

// CancelAll stops every live job. Partial files are kept.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	jobs := make([]*Job, 0, len(m.active))
	for _, j := range m.active {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()
	for _, j := range jobs {
		j.Cancel()
	}
}

// Statuses reports every known job, live first, sorted by model then target
// for stable output.
func (m *Manager) Statuses() []types.TransferStatus {
	m.mu.Lock()
	jobs := make([]*Job, 0, len(m.active)+len(m.recent))
	for _, j := range m.active {
		jobs = append(jobs, j)
	}
	for target, j := range m.recent {
		if _, live := m.active[target]; !live {
			jobs = append(jobs, j)
		}
	}
	m.mu.Unlock()

	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].Model != jobs[b].Model {
			return jobs[a].Model < jobs[b].Model
		}
		return jobs[a].TargetPath < jobs[b].TargetPath
	})
	out := make([]types.TransferStatus, 0, len(jobs))
	for _, j := range jobs {
		p := j.Snapshot()
		out = append(out, types.TransferStatus{
			Model:      p.Model,
			State:      string(p.State),
			BytesDone:  p.BytesDone,
			TotalBytes: p.TotalBytes,
			Rate:       p.Rate,
			Error:      p.Error,
		})
	}
	return out
}

func (m *Manager) detach(j *Job) {
	m.mu.Lock()
	if m.active[j.TargetPath] == j {
		delete(m.active, j.TargetPath)
	}
	m.recent[j.TargetPath] = j
	m.mu.Unlock()
	transferActiveJobs.Dec()
	p := j.Snapshot()
	log.Printf("transfer event=done job=%s model=%q state=%s bytes=%d err=%q",
		j.ID, j.Model, p.State, p.BytesDone, p.Error)
}

// markRestarted records a restart-from-zero for a target and reports whether
// the restart is allowed, which it is only once per target until a transfer
// for it completes.
func (m *Manager) markRestarted(targetPath string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.restarted[targetPath] {
		return false
	}
	m.restarted[targetPath] = true
	return true
}

func (m *Manager) clearRestarted(targetPath string) {
	m.mu.Lock()
	delete(m.restarted, targetPath)
	m.mu.Unlock()
}

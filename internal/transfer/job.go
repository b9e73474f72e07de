package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// State is the lifecycle state of a transfer job.
type State string

const (
	StateQueued     State = "queued"
	StateInProgress State = "in_progress"
	StatePaused     State = "paused"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether the job's goroutine has exited in this state.
// Paused counts as terminal for the goroutine; a later StartOrResume picks
// the partial file back up under a new job.
func (s State) Terminal() bool {
	switch s {
	case StatePaused, StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// PartSuffix is appended to the final artifact path while bytes are being
// written.
const PartSuffix = ".part"

// copyBlockSize is the unit of the copy loop. Cancellation is observed
// between blocks, so it also bounds cancel latency.
const copyBlockSize = 256 * 1024

// Job is one download attempt for one target path. A Job is created by
// Manager.StartOrResume and runs on its own goroutine until it reaches a
// terminal state. All exported methods are safe for concurrent use.
type Job struct {
	ID         string
	Model      string
	URL        string
	TargetPath string
	PartPath   string

	emitInterval  time.Duration
	emitByteDelta int64

	cancel context.CancelFunc
	done   chan struct{}

	mu            sync.Mutex
	state         State
	bytesDone     int64
	totalBytes    int64
	seq           uint64
	restarts      int
	err           error
	pauseWanted   bool
	subs          []chan Progress
	lastEmit      time.Time
	lastEmitBytes int64
}

// Cancel asks the job to stop. The partial file is kept. Safe to call at
// any time, including after the job finished.
func (j *Job) Cancel() { j.cancel() }

// Pause asks the job to stop but marks the stop as resumable, so the final
// state is Paused rather than Cancelled.
func (j *Job) Pause() {
	j.mu.Lock()
	j.pauseWanted = true
	j.mu.Unlock()
	j.cancel()
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes or ctx fires. On completion it returns
// the final snapshot and nil; on failure the transfer error; ErrCancelled or
// ErrPaused when the job was stopped deliberately.
func (j *Job) Wait(ctx context.Context) (Progress, error) {
	select {
	case <-ctx.Done():
		return Progress{}, ctx.Err()
	case <-j.done:
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progressLocked(), j.err
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setInProgress() {
	j.mu.Lock()
	j.state = StateInProgress
	j.broadcastLocked(j.progressLocked())
	j.mu.Unlock()
}

func (j *Job) setTotal(n int64) {
	j.mu.Lock()
	if n > 0 {
		j.totalBytes = n
	}
	j.mu.Unlock()
}

func (j *Job) total() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.totalBytes
}

func (j *Job) bytes() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.bytesDone
}

// noteRestart resets progress accounting after the server ignored a range
// request and the partial file was truncated.
func (j *Job) noteRestart() {
	transferRestartsTotal.Inc()
	j.mu.Lock()
	j.restarts++
	j.bytesDone = 0
	j.lastEmitBytes = 0
	j.broadcastLocked(j.progressLocked())
	j.mu.Unlock()
}

// finalize records the terminal state derived from err, emits the terminal
// event and closes all subscriber channels.
func (j *Job) finalize(err error) {
	j.mu.Lock()
	switch {
	case err == nil:
		j.state = StateCompleted
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		if j.pauseWanted {
			j.state = StatePaused
			j.err = ErrPaused
		} else {
			j.state = StateCancelled
			j.err = ErrCancelled
		}
	default:
		j.state = StateFailed
		j.err = err
		transferFailuresTotal.WithLabelValues(string(kindOf(err))).Inc()
	}
	j.broadcastLocked(j.progressLocked())
	j.closeSubsLocked()
	j.mu.Unlock()
	close(j.done)
}

// run drives a job to a terminal state. It owns the partial file for the
// duration of the job.
func (m *Manager) run(ctx context.Context, j *Job) {
	defer m.detach(j)
	j.finalize(m.runTransfer(ctx, j))
}

func (m *Manager) runTransfer(ctx context.Context, j *Job) error {
	if err := os.MkdirAll(filepath.Dir(j.PartPath), 0o755); err != nil {
		return errDisk("create target dir", err)
	}

	offset := int64(0)
	if fi, err := os.Stat(j.PartPath); err == nil {
		offset = fi.Size()
	}
	j.mu.Lock()
	j.bytesDone = offset
	j.lastEmitBytes = offset
	j.mu.Unlock()
	j.setInProgress()

	resp, err := m.openStream(ctx, j.URL, offset)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		if t := totalFromContentRange(resp.Header.Get("Content-Range")); t > 0 {
			j.setTotal(t)
		} else if resp.ContentLength > 0 {
			j.setTotal(offset + resp.ContentLength)
		}
	case http.StatusOK:
		if resp.ContentLength > 0 {
			j.setTotal(resp.ContentLength)
		}
		if offset > 0 {
			// The server ignored our range request. Restart from zero
			// once per target; a second full-body answer on a later
			// resume means ranged delivery will never work here.
			if !m.markRestarted(j.TargetPath) {
				return errServer("range ignored after a prior restart", nil)
			}
			if err := os.Truncate(j.PartPath, 0); err != nil {
				return errDisk("truncate partial", err)
			}
			offset = 0
			j.noteRestart()
		}
	case http.StatusRequestedRangeNotSatisfiable:
		if n := completeLengthFromContentRange(resp.Header.Get("Content-Range")); n > 0 && n == offset {
			// Everything already on disk from an earlier run.
			j.setTotal(n)
			return nil
		}
		return errServer(fmt.Sprintf("range not satisfiable at offset %d", offset), nil)
	default:
		return errServer("unexpected status "+resp.Status, nil)
	}

	f, err := os.OpenFile(j.PartPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errDisk("open partial", err)
	}
	defer f.Close()

	if err := m.copyBody(ctx, j, f, resp.Body); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return errDisk("sync partial", err)
	}
	if t := j.total(); t > 0 && j.bytes() < t {
		return errNetwork("stream ended early", io.ErrUnexpectedEOF)
	}
	m.clearRestarted(j.TargetPath)
	return nil
}

// copyBody streams the response body into the partial file in fixed-size
// blocks, observing cancellation and the optional bandwidth cap between
// blocks. Reported bytes never exceed the declared total; a body that keeps
// going past it fails the job.
func (m *Manager) copyBody(ctx context.Context, j *Job, f *os.File, body io.Reader) error {
	buf := make([]byte, copyBlockSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			if m.limiter != nil {
				if werr := m.limiter.WaitN(ctx, n); werr != nil {
					return werr
				}
			}
			wn := int64(n)
			overT := false
			if t := j.total(); t > 0 && j.bytes()+wn > t {
				wn = t - j.bytes()
				overT = true
			}
			if wn > 0 {
				if _, werr := f.Write(buf[:wn]); werr != nil {
					return errDisk("write partial", werr)
				}
				j.advance(wn)
			}
			if overT {
				return errServer("body exceeds declared size", nil)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return errNetwork("read body", rerr)
		}
	}
}

// totalFromContentRange extracts the complete length from a 206 header of
// the form "bytes 100-999/1000". Returns 0 when absent or "*".
func totalFromContentRange(v string) int64 {
	_, after, ok := strings.Cut(v, "/")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(after), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// completeLengthFromContentRange extracts the length from a 416 header of
// the form "bytes */1000".
func completeLengthFromContentRange(v string) int64 {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "bytes ") {
		return 0
	}
	return totalFromContentRange(v)
}

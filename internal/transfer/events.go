package transfer

import (
	"time"
)

// Progress is a point-in-time view of a job, delivered to subscribers and
// returned by Snapshot and Wait. Within one job, Seq strictly increases and
// BytesDone never decreases for a fixed Restarts value; a restart-from-zero
// increments Restarts and resets BytesDone.
type Progress struct {
	JobID      string  `json:"job_id"`
	Model      string  `json:"model"`
	Seq        uint64  `json:"seq"`
	State      State   `json:"state"`
	BytesDone  int64   `json:"bytes_done"`
	TotalBytes int64   `json:"total_bytes,omitempty"`
	Rate       float64 `json:"rate_bps,omitempty"`
	Restarts   int     `json:"restarts,omitempty"`
	Error      string  `json:"error,omitempty"`
}

const eventBuffer = 128

// Events returns a channel of progress updates for the job. The first
// element is always a snapshot of the current state, so late subscribers
// start from a known point. The channel is closed after the terminal event.
// Slow consumers may miss intermediate updates but never the close.
func (j *Job) Events() <-chan Progress {
	ch := make(chan Progress, eventBuffer)
	j.mu.Lock()
	defer j.mu.Unlock()
	ch <- j.progressLocked()
	if j.state.Terminal() {
		close(ch)
		return ch
	}
	j.subs = append(j.subs, ch)
	return ch
}

// Snapshot returns the current progress without subscribing.
func (j *Job) Snapshot() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progressLocked()
}

func (j *Job) progressLocked() Progress {
	p := Progress{
		JobID:      j.ID,
		Model:      j.Model,
		Seq:        j.seq,
		State:      j.state,
		BytesDone:  j.bytesDone,
		TotalBytes: j.totalBytes,
		Restarts:   j.restarts,
	}
	if j.err != nil {
		p.Error = j.err.Error()
	}
	return p
}

// advance records n freshly written bytes and emits a throttled progress
// event. Emission happens at most once per emitInterval unless at least
// emitByteDelta bytes accumulated since the last event.
func (j *Job) advance(n int64) {
	transferBytesTotal.Add(float64(n))
	j.mu.Lock()
	defer j.mu.Unlock()
	j.bytesDone += n
	now := time.Now()
	elapsed := now.Sub(j.lastEmit)
	if elapsed < j.emitInterval && j.bytesDone-j.lastEmitBytes < j.emitByteDelta {
		return
	}
	p := j.progressLocked()
	if elapsed > 0 {
		p.Rate = float64(j.bytesDone-j.lastEmitBytes) / elapsed.Seconds()
	}
	j.lastEmit = now
	j.lastEmitBytes = j.bytesDone
	j.broadcastLocked(p)
}

// broadcastLocked assigns the next sequence number and fans the event out to
// all subscribers without blocking.
func (j *Job) broadcastLocked(p Progress) {
	j.seq++
	p.Seq = j.seq
	for _, ch := range j.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

func (j *Job) closeSubsLocked() {
	for _, ch := range j.subs {
		close(ch)
	}
	j.subs = nil
}

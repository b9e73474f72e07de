package engine

import (
	"sync"
	"time"
)

// Event is a lifecycle notification. Fields carry event-specific details
// such as the backend kind or a failure message.
type Event struct {
	Name    string         `json:"name"`
	ModelID string         `json:"model,omitempty"`
	TimeUTC time.Time      `json:"time"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// EventPublisher receives engine events. Implementations must not block.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// subscriber channels are buffered; a slow consumer loses events rather
// than stalling the engine.
const subscriberBuffer = 64

type fanout struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newFanout() *fanout {
	return &fanout{subs: make(map[chan Event]struct{})}
}

func (f *fanout) Publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (f *fanout) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}

func (e *Engine) publish(name, modelID string, fields map[string]any) {
	ev := Event{Name: name, ModelID: modelID, TimeUTC: time.Now().UTC(), Fields: fields}
	e.events.Publish(ev)
	e.cfg.Publisher.Publish(ev)
}

// Subscribe registers an event listener. The returned cancel must be
// called to release the subscription.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	return e.events.Subscribe()
}

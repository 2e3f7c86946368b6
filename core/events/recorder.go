package events

import (
	"sync"

	"kaiwu/core/types"
)

// payloadCarrier is implemented by emitted events that wrap a concrete
// attribute payload in addition to the bare type string.
type payloadCarrier interface {
	Event() *types.Event
}

// Recorded pairs an event payload with its position in the append-only log.
// Sequence numbers start at 1 and increase by one per successful transition.
type Recorded struct {
	Sequence uint64       `json:"sequence"`
	Event    *types.Event `json:"event"`
}

// Recorder is an append-only in-memory event log. It is the integration point
// for external indexers: transitions write, readers poll by sequence number.
type Recorder struct {
	mu  sync.RWMutex
	log []Recorded
}

// NewRecorder returns an empty event log.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements the Emitter interface, appending the event to the log.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	payload := &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
	if carrier, ok := evt.(payloadCarrier); ok {
		if inner := carrier.Event(); inner != nil {
			payload = inner
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, Recorded{Sequence: uint64(len(r.log)) + 1, Event: payload})
}

// Since returns all events with a sequence number strictly greater than seq.
func (r *Recorder) Since(seq uint64) []Recorded {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if seq >= uint64(len(r.log)) {
		return []Recorded{}
	}
	out := make([]Recorded, len(r.log[seq:]))
	copy(out, r.log[seq:])
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.log)
}

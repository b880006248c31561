// Package telemetry fans game events out to observers: websocket clients,
// a NATS subject and CloudWatch metrics. Publishing is advisory and never
// blocks the game.
// file: telemetry/event.go
package telemetry

import (
	"sync"
	"time"
)

// Event types.
const (
	EventState        = "state"
	EventMatchStarted = "match_started"
	EventRound        = "round"
	EventMatchResult  = "match_result"
	EventLongPress    = "long_press_warning"
	EventFailSafe     = "failsafe_armed"
	EventCalibration  = "debounce_calibrated"
)

// Event is one observation of the game.
type Event struct {
	Type    string                 `json:"type"`
	Time    time.Time              `json:"time"`
	MatchID string                 `json:"matchId,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Sink receives events. Implementations must not block.
type Sink interface {
	Publish(ev Event)
}

// --------------- Nop / Multi -----------------

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Event) {}

// Multi publishes to every sink in order.
type Multi []Sink

func (m Multi) Publish(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(ev)
		}
	}
}

// OrNop returns s, or Nop if s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// --------------- Recorder -----------------

// Recorder keeps every event in memory. The status endpoint and tests read it.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewRecorder keeps at most limit events; limit <= 0 keeps all.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type typ.
func (r *Recorder) OfType(typ string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

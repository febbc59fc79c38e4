package bus

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defined event types.
const (
	EventExperimentCreated   = "experimentCreated"
	EventExperimentStarted   = "experimentStarted"
	EventExperimentPaused    = "experimentPaused"
	EventExperimentCompleted = "experimentCompleted"
	EventExperimentDeleted   = "experimentDeleted"
	EventAssignment          = "assignment"
	EventConversion          = "conversion"
)

// Event is the envelope every listener receives. Timestamp is epoch
// milliseconds.
type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

type Listener func(Event)

// Bus fans out engine mutations to external listeners. Listener panics
// are caught and logged; they never abort the triggering operation or
// the remaining listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
	log       zerolog.Logger
}

func New(log zerolog.Logger) *Bus {
	return &Bus{log: log}
}

func (b *Bus) Subscribe(fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

func (b *Bus) Publish(eventType string, data any) {
	ev := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, fn := range listeners {
		b.dispatch(fn, ev)
	}
}

func (b *Bus) dispatch(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn().
				Interface("panic", r).
				Str("event_type", ev.Type).
				Msg("event listener panicked")
		}
	}()
	fn(ev)
}

// Package log defines the observer the engine reports run checkpoints to.
// Observers are injected per run; there is no package-level logger.
package log

import (
	"sync"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"go.uber.org/zap"
)

// EventKind names a checkpoint.
type EventKind string

const (
	EventRunStart      EventKind = "run_start"
	EventRunEnd        EventKind = "run_end"
	EventSplitStart    EventKind = "split_start"
	EventSplitEnd      EventKind = "split_end"
	EventBarSkipped    EventKind = "bar_skipped"
	EventOrderRejected EventKind = "order_rejected"
	EventHalted        EventKind = "halted"
	EventFatalError    EventKind = "fatal_error"
)

// Event is a single checkpoint notification.
type Event struct {
	Kind     EventKind
	RunID    string
	Strategy string
	Symbol   string
	// SplitIndex is -1 outside walk-forward validation.
	SplitIndex int
	// BarIndex is -1 for run level events.
	BarIndex int
	// Time is the simulated bar time, zero for run level events.
	Time    time.Time
	Message string
	Err     error
	Fields  map[string]string
}

// Observer receives engine checkpoints. Implementations must be safe for
// concurrent use since walk-forward splits and sweeps share one observer.
type Observer interface {
	Observe(event Event)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) Observe(Event) {}

// ZapObserver writes events as structured log lines.
type ZapObserver struct {
	logger *logger.Logger
}

// NewZapObserver creates an observer logging through l.
func NewZapObserver(l *logger.Logger) *ZapObserver {
	return &ZapObserver{logger: l}
}

func (z *ZapObserver) Observe(event Event) {
	fields := []zap.Field{
		zap.String("event", string(event.Kind)),
		zap.String("run_id", event.RunID),
	}

	if event.Strategy != "" {
		fields = append(fields, zap.String("strategy", event.Strategy))
	}

	if event.Symbol != "" {
		fields = append(fields, zap.String("symbol", event.Symbol))
	}

	if event.SplitIndex >= 0 {
		fields = append(fields, zap.Int("split", event.SplitIndex))
	}

	if event.BarIndex >= 0 {
		fields = append(fields, zap.Int("bar", event.BarIndex), zap.Time("bar_time", event.Time))
	}

	for k, v := range event.Fields {
		fields = append(fields, zap.String(k, v))
	}

	switch event.Kind {
	case EventFatalError:
		z.logger.Error(event.Message, append(fields, zap.Error(event.Err))...)
	case EventBarSkipped, EventOrderRejected, EventHalted:
		if event.Err != nil {
			fields = append(fields, zap.Error(event.Err))
		}

		z.logger.Warn(event.Message, fields...)
	default:
		z.logger.Info(event.Message, fields...)
	}
}

// MemoryObserver keeps every event in memory.
type MemoryObserver struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryObserver creates an empty MemoryObserver.
func NewMemoryObserver() *MemoryObserver {
	return &MemoryObserver{}
}

func (m *MemoryObserver) Observe(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
}

// Events returns a copy of the recorded events.
func (m *MemoryObserver) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Event, len(m.events))
	copy(out, m.events)

	return out
}

// Count returns how many events of kind were recorded.
func (m *MemoryObserver) Count(kind EventKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0

	for _, e := range m.events {
		if e.Kind == kind {
			n++
		}
	}

	return n
}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) Observe(event Event) {
	for _, o := range m {
		o.Observe(event)
	}
}

// OrNop returns o, or a NopObserver when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return NopObserver{}
	}

	return o
}

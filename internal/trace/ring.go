package trace

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// RingTracer keeps the last N events in memory. With a dump target set,
// Close writes them out when at least one fault was recorded, so a run
// that went wrong leaves the events leading up to it.
type RingTracer struct {
	mu     sync.Mutex
	events []Event
	head   int // next write position
	full   bool
	level  Level
	faults int

	dump   io.Writer
	format Format
}

// NewRingTracer creates a ring holding capacity events (4096 if <= 0).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{events: make([]Event, capacity), level: level}
}

// DumpOnFault makes Close write the ring to w when faults were recorded.
func (t *RingTracer) DumpOnFault(w io.Writer, format Format) *RingTracer {
	t.dump, t.format = w, format
	return t
}

func (t *RingTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat && ev.Kind != KindFault {
		return
	}
	stored := *ev
	stored.Seq = NextSeq()

	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.Kind == KindFault {
		t.faults++
	}
	t.events[t.head] = stored
	t.head = (t.head + 1) % len(t.events)
	if t.head == 0 {
		t.full = true
	}
}

// Faults is the number of fault events seen, including ones that have
// since been overwritten.
func (t *RingTracer) Faults() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.faults
}

// Snapshot returns the stored events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return append([]Event(nil), t.events[:t.head]...)
	}
	out := make([]Event, 0, len(t.events))
	out = append(out, t.events[t.head:]...)
	return append(out, t.events[:t.head]...)
}

// Dump writes the stored events to w, timed from the oldest one.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	events := t.Snapshot()
	var origin time.Time
	if len(events) > 0 {
		origin = events[0].Time
	}
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format, origin)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error { return nil }

// Close dumps the ring if DumpOnFault was set and a fault was recorded,
// then closes the dump target.
func (t *RingTracer) Close() error {
	if t.dump == nil {
		return nil
	}
	w := t.dump
	t.dump = nil
	if n := t.Faults(); n > 0 {
		if t.format == FormatText {
			fmt.Fprintf(w, "-- %d fault(s); last %d trace events --\n", n, len(t.Snapshot()))
		}
		if err := t.Dump(w, t.format); err != nil {
			return err
		}
	}
	return closeWriter(w)
}

func (t *RingTracer) Level() Level { return t.level }

func (t *RingTracer) Enabled() bool { return t.level > LevelOff }

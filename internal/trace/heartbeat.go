package trace

import (
	"fmt"
	"sync"
	"time"
)

// Heartbeat emits a periodic event carrying how many events were traced
// since the previous beat. Beats with no activity in between, while a
// unit span is still open, point at a unit spinning below the trace
// level (or inside a single native call).
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// StartHeartbeat starts beating every interval. It returns nil when
// tracing is off or interval is not positive; Stop accepts nil.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	last := seqCounter.Load()
	for beat := 1; ; beat++ {
		select {
		case <-ticker.C:
			now := seqCounter.Load()
			seq := NextSeq()
			h.tracer.Emit(&Event{
				Time:   time.Now(),
				Seq:    seq,
				Kind:   KindHeartbeat,
				Scope:  ScopeDriver,
				GID:    goroutineID(),
				Name:   "heartbeat",
				Detail: fmt.Sprintf("#%d", beat),
				Extra:  map[string]string{"events": fmt.Sprint(now - last)},
			})
			// the beat and the tracer's own renumbering are not activity
			last = seqCounter.Load()
		case <-h.stop:
			return
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine. Safe to call more
// than once.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}

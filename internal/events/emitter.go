package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bantay-ai/bantay/internal/redact"
)

// Sink consumes classification events.
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// SinkStats counts deliveries for one sink.
type SinkStats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}

// Stats is a point-in-time copy of the emitter counters.
type Stats struct {
	Enqueued uint64               `json:"enqueued"`
	Dropped  uint64               `json:"dropped"`
	Sinks    map[string]SinkStats `json:"sinks"`
}

// EmitterConfig controls worker and queue sizing.
type EmitterConfig struct {
	QueueSize       int
	Workers         int
	ShutdownTimeout time.Duration
}

// Emitter delivers events to sinks from a bounded queue. Emit never blocks
// the request path: when the queue is full the event is dropped and counted.
type Emitter struct {
	queue           chan *Event
	sinks           []Sink
	shutdownTimeout time.Duration

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	statsMu  sync.Mutex
	perSink  map[string]*SinkStats

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewEmitter starts cfg.Workers goroutines delivering to sinks.
func NewEmitter(cfg EmitterConfig, sinks []Sink) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}

	em := &Emitter{
		queue:           make(chan *Event, cfg.QueueSize),
		sinks:           sinks,
		shutdownTimeout: cfg.ShutdownTimeout,
		perSink:         make(map[string]*SinkStats, len(sinks)),
	}
	for _, s := range sinks {
		em.perSink[s.Name()] = &SinkStats{}
	}
	for i := 0; i < cfg.Workers; i++ {
		em.wg.Add(1)
		go em.worker()
	}
	return em
}

// Emit enqueues ev, or drops it when the emitter is closed or full.
func (e *Emitter) Emit(ev *Event) {
	if e == nil || ev == nil {
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.dropped.Add(1)
		return
	}
	select {
	case e.queue <- ev:
		e.enqueued.Add(1)
	default:
		e.dropped.Add(1)
	}
}

// Close stops accepting events, waits up to the shutdown timeout for the
// queue to drain, then closes every sink.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	waitCtx, cancel := context.WithTimeout(ctx, e.shutdownTimeout)
	defer cancel()

	select {
	case <-done:
	case <-waitCtx.Done():
		redact.Logf("events: shutdown timeout with %d events queued", len(e.queue))
	}

	for _, s := range e.sinks {
		if err := s.Close(waitCtx); err != nil {
			redact.Logf("events: sink %s close error: %v", s.Name(), err)
		}
	}
}

// Stats copies the current counters.
func (e *Emitter) Stats() Stats {
	if e == nil {
		return Stats{Sinks: map[string]SinkStats{}}
	}
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	out := Stats{
		Enqueued: e.enqueued.Load(),
		Dropped:  e.dropped.Load(),
		Sinks:    make(map[string]SinkStats, len(e.perSink)),
	}
	for name, st := range e.perSink {
		out.Sinks[name] = *st
	}
	return out
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for ev := range e.queue {
		for _, s := range e.sinks {
			err := s.Deliver(context.Background(), ev)
			if err != nil {
				redact.Logf("events: sink %s failed: %v", s.Name(), err)
			}
			e.record(s.Name(), err == nil)
		}
	}
}

func (e *Emitter) record(sink string, ok bool) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	st := e.perSink[sink]
	if st == nil {
		st = &SinkStats{}
		e.perSink[sink] = st
	}
	if ok {
		st.Delivered++
	} else {
		st.Failed++
	}
}

// Package output drives each physical DMX port at a fixed cadence,
// pulling the merge engine's current frame and handing it to a sink.
package output

import (
	"log"
	"sync"
	"time"

	"github.com/gopatchy/dmxbridge/dmxsink"
	"github.com/gopatchy/dmxbridge/merge"
)

// TickObserver receives per-tick timing samples, e.g. to feed a
// metrics histogram. Optional: a Scheduler with no observer set just
// skips the call.
type TickObserver interface {
	ObserveOutputTick(port string, seconds float64)
}

// TickInterval is the DMX512 refresh cadence (~44Hz).
const TickInterval = 23 * time.Millisecond

// Scheduler runs one ticker per port. A missed tick is simply the
// next frame arriving late; the scheduler never sends more than one
// frame per tick to make up for lost time.
type Scheduler struct {
	mu       sync.Mutex
	running  bool
	stop     chan struct{}
	done     sync.WaitGroup
	observer TickObserver

	ports map[string]*port
}

type port struct {
	name string
	ctx  *merge.PortContext
	sink dmxsink.Sink

	ticksMu sync.Mutex
	ticks   uint64
}

// New creates an empty scheduler; call AddPort for each physical
// output before Start.
func New() *Scheduler {
	return &Scheduler{ports: map[string]*port{}, stop: make(chan struct{})}
}

// AddPort registers a port to be driven at TickInterval.
func (s *Scheduler) AddPort(name string, ctx *merge.PortContext, sink dmxsink.Sink) {
	s.ports[name] = &port{name: name, ctx: ctx, sink: sink}
}

// SetObserver attaches a tick-timing observer, e.g. telemetry.Telemetry.
func (s *Scheduler) SetObserver(o TickObserver) {
	s.observer = o
}

// Start launches one goroutine per registered port.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	for _, p := range s.ports {
		s.done.Add(1)
		go s.run(p)
	}
}

// Stop halts every port's ticker and waits for the goroutines to
// exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	s.done.Wait()
}

func (s *Scheduler) run(p *port) {
	defer s.done.Done()

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			start := time.Now()
			data, _ := p.ctx.Output()
			if err := p.sink.WriteFrame(p.name, &data); err != nil {
				log.Printf("[output] port=%s write error: %v", p.name, err)
			}
			if s.observer != nil {
				s.observer.ObserveOutputTick(p.name, time.Since(start).Seconds())
			}
			p.ticksMu.Lock()
			p.ticks++
			p.ticksMu.Unlock()
		}
	}
}

// TickCount returns the number of frames written to a port so far,
// for status reporting.
func (s *Scheduler) TickCount(name string) uint64 {
	p, ok := s.ports[name]
	if !ok {
		return 0
	}
	p.ticksMu.Lock()
	defer p.ticksMu.Unlock()
	return p.ticks
}

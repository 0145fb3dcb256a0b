package output

import (
	"sync"
	"testing"
	"time"

	"github.com/gopatchy/dmxbridge/merge"
)

type countingSink struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSink) WriteFrame(port string, data *[512]byte) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return nil
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingObserver struct {
	mu    sync.Mutex
	ticks int
}

func (r *recordingObserver) ObserveOutputTick(port string, seconds float64) {
	r.mu.Lock()
	r.ticks++
	r.mu.Unlock()
}

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

func TestSchedulerDrivesPortAtTickInterval(t *testing.T) {
	s := New()
	sink := &countingSink{}
	s.AddPort("1", merge.NewPortContext(), sink)
	s.Start()
	defer s.Stop()

	time.Sleep(5 * TickInterval)

	if sink.count() < 2 {
		t.Fatalf("expected several ticks to have fired, got %d", sink.count())
	}
	if s.TickCount("1") == 0 {
		t.Fatalf("expected TickCount to track written frames")
	}
}

func TestSchedulerNotifiesObserver(t *testing.T) {
	s := New()
	obs := &recordingObserver{}
	s.SetObserver(obs)
	s.AddPort("1", merge.NewPortContext(), &countingSink{})
	s.Start()
	defer s.Stop()

	time.Sleep(5 * TickInterval)

	if obs.count() == 0 {
		t.Fatalf("expected observer to be notified of output ticks")
	}
}

func TestSchedulerStopEndsTicking(t *testing.T) {
	s := New()
	sink := &countingSink{}
	s.AddPort("1", merge.NewPortContext(), sink)
	s.Start()
	time.Sleep(3 * TickInterval)
	s.Stop()

	after := sink.count()
	time.Sleep(3 * TickInterval)
	if sink.count() != after {
		t.Fatalf("expected no further writes after Stop, went from %d to %d", after, sink.count())
	}
}

func TestSchedulerUnknownPortTickCountIsZero(t *testing.T) {
	s := New()
	if s.TickCount("missing") != 0 {
		t.Fatalf("expected unknown port to report zero ticks")
	}
}

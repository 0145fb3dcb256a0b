// Package telemetry exposes Prometheus-format counters and
// histograms for the bridge's receive, merge, and output paths.
package telemetry

import (
	"fmt"
	"io"
	"sync"

	"github.com/VictoriaMetrics/metrics"
)

// Telemetry owns a private metrics.Set so multiple bridge instances
// in one process (e.g. under test) don't collide on the global
// default set.
type Telemetry struct {
	set *metrics.Set

	mu               sync.Mutex
	rxPackets        map[string]*metrics.Counter // keyed by proto
	rxInvalid        map[string]*metrics.Counter
	mergeTotal       map[string]*metrics.Counter // keyed by "port:mode"
	sourceTimeouts   map[string]*metrics.Counter // keyed by port
	outputTickSecond map[string]*metrics.Histogram
}

// New creates a Telemetry instance with an empty set.
func New() *Telemetry {
	return &Telemetry{
		set:              metrics.NewSet(),
		rxPackets:        map[string]*metrics.Counter{},
		rxInvalid:        map[string]*metrics.Counter{},
		mergeTotal:       map[string]*metrics.Counter{},
		sourceTimeouts:   map[string]*metrics.Counter{},
		outputTickSecond: map[string]*metrics.Histogram{},
	}
}

// SetRxPackets syncs the cumulative receive counter for a protocol
// ("artnet" or "sacn") to n. Receivers hold their own counters under
// their own lock; a periodic sync avoids taking a metrics lock on
// every packet.
func (t *Telemetry) SetRxPackets(proto string, n uint64) {
	t.counter(t.rxPackets, fmt.Sprintf(`dmxbridge_rx_packets_total{proto=%q}`, proto)).Set(n)
}

// SetRxInvalid syncs the cumulative invalid-packet counter for a
// protocol.
func (t *Telemetry) SetRxInvalid(proto string, n uint64) {
	t.counter(t.rxInvalid, fmt.Sprintf(`dmxbridge_rx_invalid_total{proto=%q}`, proto)).Set(n)
}

// SetMergeTotal syncs the per-port, per-mode cumulative merge count.
func (t *Telemetry) SetMergeTotal(port, mode string, n uint64) {
	t.counter(t.mergeTotal, fmt.Sprintf(`dmxbridge_merge_total{port=%q,mode=%q}`, port, mode)).Set(n)
}

// SetSourceTimeouts syncs the per-port cumulative source-timeout
// count.
func (t *Telemetry) SetSourceTimeouts(port string, n uint64) {
	t.counter(t.sourceTimeouts, fmt.Sprintf(`dmxbridge_source_timeouts_total{port=%q}`, port)).Set(n)
}

// ObserveOutputTick records how long one output tick took to build
// and write a frame for a port.
func (t *Telemetry) ObserveOutputTick(port string, seconds float64) {
	t.mu.Lock()
	h, ok := t.outputTickSecond[port]
	if !ok {
		h = t.set.NewHistogram(fmt.Sprintf(`dmxbridge_output_tick_seconds{port=%q}`, port))
		t.outputTickSecond[port] = h
	}
	t.mu.Unlock()
	h.Update(seconds)
}

func (t *Telemetry) counter(m map[string]*metrics.Counter, name string) *metrics.Counter {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := m[name]
	if !ok {
		c = t.set.NewCounter(name)
		m[name] = c
	}
	return c
}

// WritePrometheus writes every registered metric in Prometheus
// exposition format, for the /metrics HTTP handler.
func (t *Telemetry) WritePrometheus(w io.Writer) {
	t.set.WritePrometheus(w)
}

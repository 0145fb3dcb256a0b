package artnet

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/gopatchy/dmxbridge/wire"
)

// Handler receives normalized updates from the Art-Net receiver.
type Handler interface {
	HandleDMX(src *net.UDPAddr, pkt *DMXPacket)
	HandlePoll(src *net.UDPAddr)
}

// Stats are the receiver-side counters surfaced alongside the merge
// engine's own statistics.
type Stats struct {
	mu             sync.Mutex
	RxPackets      uint64
	RxInvalid      uint64
	SequenceErrors map[Universe]uint64
	lastSeq        map[Universe]uint8
}

func newStats() *Stats {
	return &Stats{
		SequenceErrors: map[Universe]uint64{},
		lastSeq:        map[Universe]uint8{},
	}
}

func (s *Stats) observeSequence(u Universe, seq uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.lastSeq[u]
	if wire.SequenceGap(prev, seq) {
		s.SequenceErrors[u]++
	}
	s.lastSeq[u] = seq
}

// Snapshot returns a point-in-time copy of the counters.
func (s *Stats) Snapshot() (rxPackets, rxInvalid uint64, sequenceErrors map[Universe]uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Universe]uint64, len(s.SequenceErrors))
	for k, v := range s.SequenceErrors {
		out[k] = v
	}
	return s.RxPackets, s.RxInvalid, out
}

// Receiver binds UDP/6454 and dispatches parsed ArtDmx/ArtPoll packets
// to a Handler. The receive loop blocks in ReadFromUDP with a 1s
// deadline so Stop can be observed in bounded time.
type Receiver struct {
	conn    *net.UDPConn
	handler Handler
	stats   *Stats

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// NewReceiver binds addr (typically ":6454") and returns a Receiver
// that has not yet started its receive loop.
func NewReceiver(addr *net.UDPAddr, handler Handler) (*Receiver, error) {
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}
	return &Receiver{
		conn:    conn,
		handler: handler,
		stats:   newStats(),
		stop:    make(chan struct{}),
	}, nil
}

// Start launches the receive loop in its own goroutine.
func (r *Receiver) Start() {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	go r.receiveLoop()
}

// Stop closes the socket, causing the blocked receive to return an
// error and the loop to exit.
func (r *Receiver) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stop)
	r.conn.Close()
}

func (r *Receiver) Stats() *Stats { return r.stats }

func (r *Receiver) receiveLoop() {
	buf := make([]byte, 1024)

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		r.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, src, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-r.stop:
				return
			default:
				log.Printf("[artnet] read error: %v", err)
				continue
			}
		}

		r.handlePacket(src, buf[:n])
	}
}

func (r *Receiver) handlePacket(src *net.UDPAddr, data []byte) {
	op, err := OpCode(data)
	if err != nil {
		r.stats.mu.Lock()
		r.stats.RxInvalid++
		r.stats.mu.Unlock()
		return
	}

	switch op {
	case OpDmx:
		pkt, err := ParseDMX(data)
		if err != nil {
			r.stats.mu.Lock()
			r.stats.RxInvalid++
			r.stats.mu.Unlock()
			return
		}
		r.stats.mu.Lock()
		r.stats.RxPackets++
		r.stats.mu.Unlock()
		r.stats.observeSequence(pkt.Universe, pkt.Sequence)
		r.handler.HandleDMX(src, pkt)

	case OpPoll:
		if _, err := ParsePoll(data); err != nil {
			r.stats.mu.Lock()
			r.stats.RxInvalid++
			r.stats.mu.Unlock()
			return
		}
		r.handler.HandlePoll(src)

	default:
		// Unknown but well-headed opcode; nothing to dispatch.
	}
}

// LocalAddr returns the bound local address.
func (r *Receiver) LocalAddr() net.Addr { return r.conn.LocalAddr() }

// SendTo writes a raw packet out through the receiver's own socket,
// used to send ArtPollReply from the same port the poll arrived on.
func (r *Receiver) SendTo(data []byte, addr *net.UDPAddr) error {
	_, err := r.conn.WriteToUDP(data, addr)
	return err
}

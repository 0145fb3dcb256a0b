package sacn

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gopatchy/dmxbridge/wire"
	"golang.org/x/net/ipv4"
)

// Handler receives parsed sACN data packets.
type Handler interface {
	HandleData(src *net.UDPAddr, pkt *DataPacket)
}

// Stats are the receiver-side counters.
type Stats struct {
	mu             sync.Mutex
	RxPackets      uint64
	RxInvalid      uint64
	RxPreview      uint64
	SequenceErrors map[uint16]uint64
	lastSeq        map[uint16]uint8
}

func newStats() *Stats {
	return &Stats{SequenceErrors: map[uint16]uint64{}, lastSeq: map[uint16]uint8{}}
}

func (s *Stats) observeSequence(universe uint16, seq uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.lastSeq[universe]
	if wire.SequenceGap(prev, seq) {
		s.SequenceErrors[universe]++
	}
	s.lastSeq[universe] = seq
}

func (s *Stats) Snapshot() (rxPackets, rxInvalid, rxPreview uint64, sequenceErrors map[uint16]uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint16]uint64, len(s.SequenceErrors))
	for k, v := range s.SequenceErrors {
		out[k] = v
	}
	return s.RxPackets, s.RxInvalid, s.RxPreview, out
}

// Receiver binds UDP/5568 and joins the multicast group for each
// subscribed universe. A single socket serves every universe; groups
// are joined on Subscribe and dropped on Unsubscribe/Stop.
type Receiver struct {
	conn    *ipv4.PacketConn
	raw     net.PacketConn
	iface   *net.Interface
	handler Handler
	stats   *Stats

	mu      sync.Mutex
	groups  map[uint16]bool
	running bool
	stop    chan struct{}
}

// NewReceiver binds the sACN port on all local addresses; iface is
// the interface used for multicast joins (nil picks the default).
func NewReceiver(iface *net.Interface, handler Handler) (*Receiver, error) {
	raw, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", Port))
	if err != nil {
		return nil, err
	}

	return &Receiver{
		conn:    ipv4.NewPacketConn(raw),
		raw:     raw,
		iface:   iface,
		handler: handler,
		stats:   newStats(),
		groups:  map[uint16]bool{},
		stop:    make(chan struct{}),
	}, nil
}

// Subscribe joins the multicast group for universe. On join failure,
// no group is recorded (no partial state).
func (r *Receiver) Subscribe(universe uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.groups[universe] {
		return nil
	}
	addr := MulticastAddr(universe)
	if err := r.conn.JoinGroup(r.iface, addr); err != nil {
		return fmt.Errorf("sacn: join group for universe %d: %w", universe, err)
	}
	r.groups[universe] = true
	return nil
}

// Unsubscribe drops the multicast group for universe.
func (r *Receiver) Unsubscribe(universe uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.groups[universe] {
		return nil
	}
	addr := MulticastAddr(universe)
	if err := r.conn.LeaveGroup(r.iface, addr); err != nil {
		return fmt.Errorf("sacn: leave group for universe %d: %w", universe, err)
	}
	delete(r.groups, universe)
	return nil
}

// Start launches the receive loop.
func (r *Receiver) Start() {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	go r.receiveLoop()
}

// Stop drops all multicast memberships before closing the socket, per
// spec: "on receiver stop, drop all memberships before closing."
func (r *Receiver) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	universes := make([]uint16, 0, len(r.groups))
	for u := range r.groups {
		universes = append(universes, u)
	}
	r.mu.Unlock()

	for _, u := range universes {
		r.Unsubscribe(u)
	}

	close(r.stop)
	r.conn.Close()
}

func (r *Receiver) Stats() *Stats { return r.stats }

func (r *Receiver) receiveLoop() {
	buf := make([]byte, 638) // largest legal E1.31 data packet

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		r.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, src, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-r.stop:
				return
			default:
				log.Printf("[sacn] read error: %v", err)
				continue
			}
		}

		udpSrc, _ := src.(*net.UDPAddr)
		r.handlePacket(udpSrc, buf[:n])
	}
}

func (r *Receiver) handlePacket(src *net.UDPAddr, data []byte) {
	pkt, err := ParseData(data)
	if err != nil {
		r.stats.mu.Lock()
		r.stats.RxInvalid++
		r.stats.mu.Unlock()
		return
	}

	r.stats.mu.Lock()
	r.stats.RxPackets++
	if pkt.Preview {
		r.stats.RxPreview++
	}
	r.stats.mu.Unlock()
	r.stats.observeSequence(pkt.Universe, pkt.Sequence)

	r.handler.HandleData(src, pkt)
}

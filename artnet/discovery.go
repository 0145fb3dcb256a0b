package artnet

import (
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
)

// NodeIdentity is the self-description used to build ArtPollReply
// frames: name fields from configuration, network fields from the
// active interface. It is refreshed as a whole via Update so the
// receiver never observes a half-written identity.
type NodeIdentity struct {
	mu        sync.RWMutex
	shortName string
	longName  string
	ip        [4]byte
	mac       [6]byte
}

func NewNodeIdentity(shortName, longName string) *NodeIdentity {
	return &NodeIdentity{shortName: shortName, longName: longName}
}

// Update replaces the network-derived fields, e.g. after the network
// provider reports interface up/down or address change.
func (n *NodeIdentity) Update(ip net.IP, mac net.HardwareAddr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ip4 := ip.To4(); ip4 != nil {
		copy(n.ip[:], ip4)
	}
	if len(mac) == 6 {
		copy(n.mac[:], mac)
	}
}

func (n *NodeIdentity) snapshot() (shortName, longName string, ip [4]byte, mac [6]byte) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.shortName, n.longName, n.ip, n.mac
}

// PollResponder answers ArtPoll with ArtPollReply, stamping each
// reply with a monotonically increasing report counter. It is
// stateless beyond that counter: no remote-node table is kept, since
// this node's job is to describe itself, not to discover others.
type PollResponder struct {
	identity     *NodeIdentity
	port1, port2 Universe
	port2Enabled bool
	reportSeq    uint64
}

func NewPollResponder(identity *NodeIdentity, port1, port2 Universe, port2Enabled bool) *PollResponder {
	return &PollResponder{identity: identity, port1: port1, port2: port2, port2Enabled: port2Enabled}
}

// Reply builds the ArtPollReply frame to send back to src.
func (p *PollResponder) Reply() []byte {
	seq := atomic.AddUint64(&p.reportSeq, 1)
	shortName, longName, ip, mac := p.identity.snapshot()
	report := reportString(seq)
	return BuildPollReply(ip, mac, shortName, longName, report, p.port1, p.port2, p.port2Enabled)
}

func reportString(seq uint64) string {
	var b strings.Builder
	b.WriteString("#0001 [")
	writeUint(&b, seq)
	b.WriteString("] dmxbridge ready")
	return b.String()
}

func writeUint(b *strings.Builder, v uint64) {
	if v == 0 {
		b.WriteByte('0')
		return
	}
	var digits [20]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	b.Write(digits[i:])
}

// sender abstracts the socket a reply is written through (the
// receiver's own bound socket, per spec: replies go back out the
// same port the poll arrived on).
type sender interface {
	SendTo(data []byte, addr *net.UDPAddr) error
}

// HandlePoll sends an ArtPollReply back to src via out.
func (p *PollResponder) HandlePoll(out sender, src *net.UDPAddr) {
	reply := p.Reply()
	dst := &net.UDPAddr{IP: src.IP, Port: Port}
	if err := out.SendTo(reply, dst); err != nil {
		log.Printf("[artnet] pollreply error dst=%s err=%v", dst.IP, err)
	}
}

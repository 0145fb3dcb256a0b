package artnet

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// PcapReceiver is a passive Art-Net ingest path: it captures UDP/6454
// traffic off an interface without binding the port, reusing the same
// parsers as Receiver. It exists for monitoring deployments that sit
// alongside another process already bound to 6454; the UDP-socket
// Receiver remains the primary ingest path the merge/timeout model
// depends on.
type PcapReceiver struct {
	handle  *pcap.Handle
	handler Handler
	stats   *Stats
	stop    chan struct{}
}

// NewPcapReceiver opens a live capture handle on iface with a BPF
// filter for Art-Net traffic.
func NewPcapReceiver(iface string, handler Handler) (*PcapReceiver, error) {
	handle, err := pcap.OpenLive(iface, 1600, true, pcap.BlockForever)
	if err != nil {
		return nil, err
	}
	if err := handle.SetBPFFilter("udp port 6454"); err != nil {
		handle.Close()
		return nil, err
	}
	return &PcapReceiver{
		handle:  handle,
		handler: handler,
		stats:   newStats(),
		stop:    make(chan struct{}),
	}, nil
}

func (r *PcapReceiver) Start() { go r.receiveLoop() }

func (r *PcapReceiver) Stop() {
	close(r.stop)
	r.handle.Close()
}

func (r *PcapReceiver) Stats() *Stats { return r.stats }

func (r *PcapReceiver) receiveLoop() {
	src := gopacket.NewPacketSource(r.handle, r.handle.LinkType())

	for {
		select {
		case <-r.stop:
			return
		case packet, ok := <-src.Packets():
			if !ok {
				return
			}
			r.handlePacket(packet)
		}
	}
}

func (r *PcapReceiver) handlePacket(packet gopacket.Packet) {
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok {
		return
	}

	var srcIP net.IP
	if ipLayer := packet.Layer(layers.LayerTypeIPv4); ipLayer != nil {
		if ip, ok := ipLayer.(*layers.IPv4); ok {
			srcIP = ip.SrcIP
		}
	}

	data := udp.Payload
	op, err := OpCode(data)
	if err != nil {
		r.stats.mu.Lock()
		r.stats.RxInvalid++
		r.stats.mu.Unlock()
		return
	}

	src := &net.UDPAddr{IP: srcIP, Port: int(udp.SrcPort)}

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
		if _, err := ParsePoll(data); err == nil {
			r.handler.HandlePoll(src)
		}
	}
}

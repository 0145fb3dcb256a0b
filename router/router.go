// Package router maps incoming Art-Net and sACN updates onto the
// merge engine ports configured to receive them. A single universe
// may feed zero, one, or both physical ports.
package router

import (
	"net"
	"time"

	"github.com/gopatchy/dmxbridge/artnet"
	"github.com/gopatchy/dmxbridge/config"
	"github.com/gopatchy/dmxbridge/merge"
	"github.com/gopatchy/dmxbridge/sacn"
)

// Port bundles a configured output port's name with its merge engine
// context, so the router and the output scheduler share one instance.
type Port struct {
	Name string
	Ctx  *merge.PortContext
}

// Router dispatches protocol-level packets to every port subscribed
// to the packet's universe. It never blocks on I/O: Push only takes
// the destination PortContext's own mutex.
type Router struct {
	ports   map[string]*Port
	artnet  map[uint16][]*Port
	sacn    map[uint16][]*Port
}

// New builds a Router from a loaded configuration, creating one
// merge.PortContext per configured port.
func New(cfg *config.Config) *Router {
	r := &Router{
		ports:  map[string]*Port{},
		artnet: map[uint16][]*Port{},
		sacn:   map[uint16][]*Port{},
	}

	for name, pc := range cfg.Port {
		if !pc.Enabled {
			continue
		}
		ctx := merge.NewPortContext()
		ctx.Configure(toMergeMode(pc.Mode), time.Duration(pc.TimeoutMS)*time.Millisecond)

		port := &Port{Name: name, Ctx: ctx}
		r.ports[name] = port

		u := pc.Universe.Universe
		switch u.Protocol {
		case config.ProtocolArtNet:
			r.artnet[u.Number] = append(r.artnet[u.Number], port)
		case config.ProtocolSACN:
			r.sacn[u.Number] = append(r.sacn[u.Number], port)
		}
	}

	return r
}

func toMergeMode(m config.MergeMode) merge.Mode {
	switch m {
	case config.ModeHTP:
		return merge.ModeHTP
	case config.ModeLTP:
		return merge.ModeLTP
	case config.ModeLast:
		return merge.ModeLast
	case config.ModeBackup:
		return merge.ModeBackup
	case config.ModeDisable:
		return merge.ModeDisable
	default:
		return merge.ModeHTP
	}
}

// Ports returns every configured port, for the output scheduler and
// status API to range over.
func (r *Router) Ports() map[string]*Port { return r.ports }

// Port looks up a single port's merge context by name.
func (r *Router) Port(name string) (*Port, bool) {
	p, ok := r.ports[name]
	return p, ok
}

// HandleDMX implements artnet.Handler: it is called from the Art-Net
// receiver's own goroutine, so it must not block.
func (r *Router) HandleDMX(src *net.UDPAddr, pkt *artnet.DMXPacket) {
	ports := r.artnet[uint16(pkt.Universe)]
	if len(ports) == 0 {
		return
	}
	u := merge.Update{
		Key:      merge.SourceKey{Protocol: merge.ProtocolArtNet, IP: src.IP.String()},
		Universe: uint16(pkt.Universe),
		Data:     pkt.Data,
		Sequence: pkt.Sequence,
		Priority: 100, // Art-Net carries no priority field; synthesize sACN's default
	}
	for _, p := range ports {
		p.Ctx.Push(u)
	}
}

// HandlePoll implements artnet.Handler; poll responses are the
// discovery responder's concern, not the router's, so this is a no-op
// placeholder satisfying the interface when the router itself is
// registered as the DMX handler only.
func (r *Router) HandlePoll(src *net.UDPAddr) {}

// HandleData implements sacn.Handler.
func (r *Router) HandleData(src *net.UDPAddr, pkt *sacn.DataPacket) {
	ports := r.sacn[pkt.Universe]
	if len(ports) == 0 {
		return
	}

	key := merge.SourceKey{Protocol: merge.ProtocolSACN, IP: src.IP.String()}

	if pkt.Terminated {
		for _, p := range ports {
			p.Ctx.Terminate(key)
		}
		return
	}
	if pkt.Preview {
		// Preview data is for visualization only and must not reach
		// live output.
		return
	}

	u := merge.Update{
		Key:        key,
		Universe:   pkt.Universe,
		Data:       pkt.Data,
		Sequence:   pkt.Sequence,
		Priority:   pkt.Priority,
		SourceName: pkt.SourceName,
	}
	for _, p := range ports {
		p.Ctx.Push(u)
	}
}

// SACNUniverses returns every distinct sACN universe the router needs
// multicast membership for, so main can Subscribe the sACN receiver.
func (r *Router) SACNUniverses() []uint16 {
	out := make([]uint16, 0, len(r.sacn))
	for u := range r.sacn {
		out = append(out, u)
	}
	return out
}

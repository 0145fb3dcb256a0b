package main

import (
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gopatchy/dmxbridge/artnet"
	"github.com/gopatchy/dmxbridge/config"
	"github.com/gopatchy/dmxbridge/dmxsink"
	"github.com/gopatchy/dmxbridge/netinfo"
	"github.com/gopatchy/dmxbridge/output"
	"github.com/gopatchy/dmxbridge/router"
	"github.com/gopatchy/dmxbridge/sacn"
	"github.com/gopatchy/dmxbridge/statusapi"
	"github.com/gopatchy/dmxbridge/telemetry"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	artnetListen := flag.String("artnet-listen", "", "artnet listen address override (empty uses config.toml)")
	artnetBroadcast := flag.String("artnet-broadcast", "", "artnet broadcast address override (empty uses config.toml)")
	artnetPcapIface := flag.String("artnet-pcap-iface", "", "interface for passive Art-Net packet capture (disabled if empty)")
	sacnInterface := flag.String("sacn-interface", "", "network interface override for sACN multicast")
	apiListen := flag.String("api-listen", "", "status/metrics HTTP listen address override (empty uses config.toml)")
	debug := flag.Bool("debug", false, "log each written DMX frame instead of discarding it")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[config] load error: %v", err)
	}
	if *artnetListen != "" {
		cfg.ArtNet.Listen = *artnetListen
	}
	if *artnetBroadcast != "" {
		cfg.ArtNet.Broadcast = *artnetBroadcast
	}
	if *sacnInterface != "" {
		cfg.SACN.Interface = *sacnInterface
	}
	if *apiListen != "" {
		cfg.Metrics.Listen = *apiListen
	}
	if *artnetPcapIface != "" {
		cfg.ArtNet.PcapIface = *artnetPcapIface
	}

	log.Printf("[config] loaded node=%q ports=%d", cfg.Node.ShortName, len(cfg.Port))

	rt := router.New(cfg)
	for name := range rt.Ports() {
		pc := cfg.Port[name]
		log.Printf("[config]   port %s universe=%s mode=%s timeout_ms=%d", name, pc.Universe.Universe, pc.Mode, pc.TimeoutMS)
	}

	tel := telemetry.New()

	sched := output.New()
	sched.SetObserver(tel)
	var sink dmxsink.Sink = dmxsink.NopSink{}
	if *debug {
		sink = dmxsink.LogSink{}
	}
	for name, p := range rt.Ports() {
		sched.AddPort(name, p.Ctx, sink)
	}

	var artReceiver *artnet.Receiver
	var pollResponder *artnet.PollResponder
	var identity *artnet.NodeIdentity

	if cfg.ArtNet.Listen != "" {
		addr, err := net.ResolveUDPAddr("udp4", cfg.ArtNet.Listen)
		if err != nil {
			log.Fatalf("[artnet] invalid listen address %q: %v", cfg.ArtNet.Listen, err)
		}

		identity = artnet.NewNodeIdentity(cfg.Node.ShortName, cfg.Node.LongName)

		port1, port2 := artnetPortUniverses(cfg)
		pollResponder = artnet.NewPollResponder(identity, port1, port2, hasSecondArtNetPort(cfg))

		handler := &artnetHandler{router: rt, poll: pollResponder}
		artReceiver, err = artnet.NewReceiver(addr, handler)
		if err != nil {
			log.Fatalf("[artnet] listen error: %v", err)
		}
		handler.sender = artReceiver

		broadcasts := resolveBroadcasts(cfg.ArtNet.Broadcast)
		if len(broadcasts) > 0 {
			iface := netinfo.DetectLocal(broadcasts[0].IP)
			identity.Update(iface.IP, iface.MAC)
		}

		artReceiver.Start()
		log.Printf("[artnet] listening addr=%s", addr)
	}

	var pcapReceiver *artnet.PcapReceiver
	if cfg.ArtNet.PcapIface != "" {
		pcapReceiver, err = artnet.NewPcapReceiver(cfg.ArtNet.PcapIface, rt)
		if err != nil {
			log.Printf("[artnet] pcap capture disabled: %v", err)
		} else {
			pcapReceiver.Start()
			log.Printf("[artnet] pcap capture iface=%s", cfg.ArtNet.PcapIface)
		}
	}

	var sacnReceiver *sacn.Receiver
	if universes := rt.SACNUniverses(); len(universes) > 0 {
		var iface *net.Interface
		if cfg.SACN.Interface != "" {
			iface, err = net.InterfaceByName(cfg.SACN.Interface)
			if err != nil {
				log.Fatalf("[sacn] interface %q not found: %v", cfg.SACN.Interface, err)
			}
		}

		sacnReceiver, err = sacn.NewReceiver(iface, rt)
		if err != nil {
			log.Fatalf("[sacn] receiver error: %v", err)
		}
		for _, u := range universes {
			if err := sacnReceiver.Subscribe(u); err != nil {
				log.Printf("[sacn] subscribe error universe=%d: %v", u, err)
			}
		}
		sacnReceiver.Start()
		log.Printf("[sacn] listening universes=%v", universes)
	}

	sched.Start()

	if cfg.Metrics.Listen != "" {
		srv := statusapi.New(cfg, rt, sched, tel)
		go func() {
			httpSrv := &http.Server{Addr: cfg.Metrics.Listen, Handler: srv.Mux()}
			log.Printf("[api] listening addr=%s", cfg.Metrics.Listen)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("[api] server error: %v", err)
			}
		}()
	}

	go syncTelemetry(tel, rt, artReceiver, sacnReceiver)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[main] shutting down")
	if artReceiver != nil {
		artReceiver.Stop()
	}
	if pcapReceiver != nil {
		pcapReceiver.Stop()
	}
	if sacnReceiver != nil {
		sacnReceiver.Stop()
	}
	sched.Stop()
}

// artnetHandler adapts the router (which only cares about DMX data)
// and the poll responder (which answers discovery) into the single
// artnet.Handler the receiver dispatches to.
type artnetHandler struct {
	router *router.Router
	poll   *artnet.PollResponder
	sender *artnet.Receiver
}

func (h *artnetHandler) HandleDMX(src *net.UDPAddr, pkt *artnet.DMXPacket) {
	h.router.HandleDMX(src, pkt)
}

func (h *artnetHandler) HandlePoll(src *net.UDPAddr) {
	h.poll.HandlePoll(h.sender, src)
}

// artnetPortUniverses picks the Art-Net universes advertised in
// ArtPollReply from the first one or two configured Art-Net ports, in
// map iteration order (port naming is operator-chosen and carries no
// ordering guarantee beyond what's in config.toml).
func artnetPortUniverses(cfg *config.Config) (artnet.Universe, artnet.Universe) {
	var port1, port2 artnet.Universe
	seen := 0
	for _, p := range cfg.Port {
		if p.Universe.Universe.Protocol != config.ProtocolArtNet || !p.Enabled {
			continue
		}
		u := artnet.Universe(p.Universe.Universe.Number)
		if seen == 0 {
			port1 = u
		} else if seen == 1 {
			port2 = u
		}
		seen++
	}
	return port1, port2
}

func hasSecondArtNetPort(cfg *config.Config) bool {
	count := 0
	for _, p := range cfg.Port {
		if p.Universe.Universe.Protocol == config.ProtocolArtNet && p.Enabled {
			count++
		}
	}
	return count >= 2
}

func resolveBroadcasts(broadcast string) []*net.UDPAddr {
	if broadcast == "" {
		return nil
	}
	if broadcast == "auto" {
		return netinfo.DetectBroadcasts()
	}
	addr, err := net.ResolveUDPAddr("udp4", broadcast+":6454")
	if err != nil {
		return nil
	}
	return []*net.UDPAddr{addr}
}

// syncTelemetry periodically copies cumulative counters from the
// receivers and the router's merge contexts into the metrics set,
// keeping the hot paths free of metrics-set locking.
func syncTelemetry(tel *telemetry.Telemetry, rt *router.Router, art *artnet.Receiver, s *sacn.Receiver) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if art != nil {
			rxPackets, rxInvalid, _ := art.Stats().Snapshot()
			tel.SetRxPackets("artnet", rxPackets)
			tel.SetRxInvalid("artnet", rxInvalid)
		}
		if s != nil {
			rxPackets, rxInvalid, _, _ := s.Stats().Snapshot()
			tel.SetRxPackets("sacn", rxPackets)
			tel.SetRxInvalid("sacn", rxInvalid)
		}

		for name, p := range rt.Ports() {
			st := p.Ctx.GetStats()
			tel.SetMergeTotal(name, "htp", st.HTPMerges)
			tel.SetMergeTotal(name, "ltp", st.LTPMerges)
			tel.SetMergeTotal(name, "last", st.LastMerges)
			// The engine keeps no per-merge BACKUP counter; the "backup"
			// series carries the failover switch count instead.
			tel.SetMergeTotal(name, "backup", st.BackupSwitches)
			tel.SetSourceTimeouts(name, st.SourceTimeouts)
		}
	}
}

func init() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
}

// Package netinfo detects the local IPv4 address, MAC address, and
// broadcast addresses used to answer Art-Net discovery, adapted from
// the interface-scanning helpers a node needs at startup.
package netinfo

import "net"

// Interface describes the network identity used to build ArtPollReply
// frames.
type Interface struct {
	IP        net.IP
	MAC       net.HardwareAddr
	Broadcast net.IP
}

// DetectBroadcasts returns the broadcast address of every up,
// non-loopback IPv4 interface, used when artnet.broadcast = "auto".
func DetectBroadcasts() []*net.UDPAddr {
	var addrs []*net.UDPAddr
	seen := map[string]bool{}

	ifaces, err := net.Interfaces()
	if err != nil {
		return addrs
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		ifaceAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, a := range ifaceAddrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			mask := ipnet.Mask
			if len(mask) != 4 {
				continue
			}

			bcast := make(net.IP, 4)
			for i := 0; i < 4; i++ {
				bcast[i] = ip4[i] | ^mask[i]
			}

			key := bcast.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			addrs = append(addrs, &net.UDPAddr{IP: bcast, Port: 6454})
		}
	}

	return addrs
}

// DetectLocal returns the IPv4 address and MAC address of the
// interface whose broadcast address matches broadcast. It is used to
// stamp ArtPollReply frames with this node's real network identity.
func DetectLocal(broadcast net.IP) Interface {
	ifaces, err := net.Interfaces()
	if err != nil || broadcast == nil {
		return Interface{}
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			mask := ipnet.Mask
			if len(mask) != 4 {
				continue
			}

			bcast := make(net.IP, 4)
			for i := 0; i < 4; i++ {
				bcast[i] = ip4[i] | ^mask[i]
			}

			if bcast.Equal(broadcast) {
				return Interface{IP: ip4, MAC: iface.HardwareAddr, Broadcast: bcast}
			}
		}
	}

	return Interface{}
}

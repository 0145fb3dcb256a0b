package netinfo

import "testing"

func TestDetectBroadcastsReturnsOnlyUpNonLoopback(t *testing.T) {
	addrs := DetectBroadcasts()
	for _, a := range addrs {
		if a.IP.IsLoopback() {
			t.Fatalf("did not expect a loopback broadcast address, got %v", a.IP)
		}
	}
}

func TestDetectLocalWithNilBroadcastReturnsZeroValue(t *testing.T) {
	iface := DetectLocal(nil)
	if iface.IP != nil || iface.MAC != nil {
		t.Fatalf("expected zero-value Interface for nil broadcast, got %+v", iface)
	}
}

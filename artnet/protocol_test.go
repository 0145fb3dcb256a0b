package artnet

import (
	"encoding/binary"
	"testing"
)

func buildDMX(universe uint16, sequence, physical byte, data []byte) []byte {
	buf := make([]byte, 18+len(data))
	copy(buf[0:8], ID[:])
	binary.LittleEndian.PutUint16(buf[8:10], OpDmx)
	buf[10] = ProtocolVersion >> 8
	buf[11] = ProtocolVersion & 0xFF
	buf[12] = sequence
	buf[13] = physical
	binary.LittleEndian.PutUint16(buf[14:16], universe)
	binary.BigEndian.PutUint16(buf[16:18], uint16(len(data)))
	copy(buf[18:], data)
	return buf
}

func TestParseDMXValid(t *testing.T) {
	data := make([]byte, 10)
	for i := range data {
		data[i] = byte(i + 1)
	}
	pkt, err := ParseDMX(buildDMX(5, 1, 0, data))
	if err != nil {
		t.Fatalf("ParseDMX: %v", err)
	}
	if pkt.Universe != 5 {
		t.Fatalf("expected universe 5, got %d", pkt.Universe)
	}
	if pkt.Length != 10 {
		t.Fatalf("expected length 10, got %d", pkt.Length)
	}
	for i, b := range data {
		if pkt.Data[i] != b {
			t.Fatalf("channel %d: expected %d, got %d", i, b, pkt.Data[i])
		}
	}
	// Channels beyond the declared length must read zero, not stale
	// buffer content.
	if pkt.Data[11] != 0 {
		t.Fatalf("expected zero padding beyond declared length")
	}
}

func TestParseDMXRejectsBadHeader(t *testing.T) {
	bad := buildDMX(1, 0, 0, make([]byte, 4))
	bad[0] = 'X'
	if _, err := ParseDMX(bad); err == nil {
		t.Fatalf("expected error for corrupted ID")
	}
}

func TestParseDMXRejectsLengthOutOfRange(t *testing.T) {
	// Length must be 2-512; a hand-crafted length of 1 is invalid.
	buf := buildDMX(1, 0, 0, make([]byte, 1))
	binary.BigEndian.PutUint16(buf[16:18], 1)
	if _, err := ParseDMX(buf); err == nil {
		t.Fatalf("expected error for length < 2")
	}
}

func TestParseDMXRejectsWrongOpcode(t *testing.T) {
	buf := buildDMX(1, 0, 0, make([]byte, 4))
	binary.LittleEndian.PutUint16(buf[8:10], OpPoll)
	if _, err := ParseDMX(buf); err == nil {
		t.Fatalf("expected error for mismatched opcode")
	}
}

func TestUniverseBitLayout(t *testing.T) {
	u := NewUniverse(5, 3, 7)
	if u.Net() != 5 || u.SubNet() != 3 || u.Universe() != 7 {
		t.Fatalf("unexpected decomposition: net=%d sub=%d univ=%d", u.Net(), u.SubNet(), u.Universe())
	}
}

func TestBuildPollReplyLayout(t *testing.T) {
	ip := [4]byte{10, 0, 0, 5}
	mac := [6]byte{0x02, 0x42, 0xAC, 0x11, 0x00, 0x02}
	reply := BuildPollReply(ip, mac, "dmxbridge", "dmxbridge node", "ready", NewUniverse(0, 0, 1), NewUniverse(0, 0, 2), true)

	if len(reply) != 239 {
		t.Fatalf("expected 239-byte ArtPollReply, got %d", len(reply))
	}
	if !bytesEqual(reply[0:8], ID[:]) {
		t.Fatalf("expected ID header")
	}
	op := binary.LittleEndian.Uint16(reply[8:10])
	if op != OpPollReply {
		t.Fatalf("expected OpPollReply opcode, got %#04x", op)
	}
	if !bytesEqual(reply[10:14], ip[:]) {
		t.Fatalf("expected IP echoed at offset 10")
	}
	if !bytesEqual(reply[201:207], mac[:]) {
		t.Fatalf("expected MAC at offset 201")
	}
	if reply[174] != 0x80 || reply[175] != 0x80 {
		t.Fatalf("expected both ports flagged as DMX output")
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func FuzzParseDMX(f *testing.F) {
	f.Add(buildDMX(0, 0, 0, make([]byte, 512)))
	f.Add(buildDMX(1, 1, 1, make([]byte, 2)))
	f.Add([]byte{})
	f.Add(make([]byte, 8))
	f.Add(make([]byte, 18))

	f.Fuzz(func(t *testing.T, data []byte) {
		pkt, err := ParseDMX(data)
		if err != nil {
			return
		}
		if pkt.Length < 2 || pkt.Length > 512 {
			t.Fatalf("accepted out-of-range length %d", pkt.Length)
		}
	})
}

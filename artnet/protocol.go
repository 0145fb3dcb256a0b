// Package artnet implements the wire format, receiver, and discovery
// responder for Art-Net v4 DMX-over-IP (UDP port 6454).
package artnet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gopatchy/dmxbridge/wire"
)

const (
	Port = 6454

	OpPoll      = 0x2000
	OpPollReply = 0x2100
	OpDmx       = 0x5000

	ProtocolVersion = 14
)

var ID = [8]byte{'A', 'r', 't', '-', 'N', 'e', 't', 0x00}

var (
	ErrInvalidHeader  = errors.New("artnet: invalid header")
	ErrPacketTooShort = errors.New("artnet: packet too short")
)

// Universe is the 15-bit Art-Net universe address:
// bits 14-8 net, bits 7-4 subnet, bits 3-0 universe.
type Universe uint16

func NewUniverse(net, subnet, universe uint8) Universe {
	return Universe((uint16(net&0x7F) << 8) | (uint16(subnet&0x0F) << 4) | uint16(universe&0x0F))
}

func (u Universe) Net() uint8      { return uint8((u >> 8) & 0x7F) }
func (u Universe) SubNet() uint8   { return uint8((u >> 4) & 0x0F) }
func (u Universe) Universe() uint8 { return uint8(u & 0x0F) }

func (u Universe) String() string {
	return fmt.Sprintf("%d.%d.%d", u.Net(), u.SubNet(), u.Universe())
}

// DMXPacket is a parsed ArtDmx (OpCode 0x5000).
type DMXPacket struct {
	Sequence uint8
	Physical uint8
	Universe Universe
	Length   uint16
	Data     [512]byte
}

// PollPacket is a parsed ArtPoll (OpCode 0x2000).
type PollPacket struct {
	Flags        uint8
	DiagPriority uint8
}

// opCode reads the header and returns the opcode, or an error if the
// packet isn't a validly-headed Art-Net packet. No partial commitment:
// the header is fully validated before any opcode-specific parsing.
func opCode(data []byte) (uint16, error) {
	id, ok := wire.Slice(data, 0, 8)
	if !ok || !wire.Equal(id, ID[:]) {
		return 0, ErrInvalidHeader
	}
	op, ok := wire.Uint16LE(data, 8)
	if !ok {
		return 0, ErrPacketTooShort
	}
	return op, nil
}

// ParseDMX validates and parses an ArtDmx packet. Per spec, length
// must be 2-512; if length < 512, the remaining channels are treated
// as zero rather than leaving stale bytes in Data.
func ParseDMX(data []byte) (*DMXPacket, error) {
	op, err := opCode(data)
	if err != nil {
		return nil, err
	}
	if op != OpDmx {
		return nil, fmt.Errorf("artnet: not an ArtDmx packet (opcode %#04x)", op)
	}

	hdr, ok := wire.Slice(data, 10, 8)
	if !ok {
		return nil, ErrPacketTooShort
	}

	length, ok := wire.Uint16BE(data, 16)
	if !ok {
		return nil, ErrPacketTooShort
	}
	if length < 2 || length > 512 {
		return nil, fmt.Errorf("artnet: length out of range: %d", length)
	}

	dataBytes, ok := wire.Slice(data, 18, int(length))
	if !ok {
		return nil, ErrPacketTooShort
	}

	pkt := &DMXPacket{
		Sequence: hdr[2],
		Physical: hdr[3],
		Universe: Universe(binary.LittleEndian.Uint16(hdr[4:6])),
		Length:   length,
	}
	copy(pkt.Data[:], dataBytes)
	return pkt, nil
}

// ParsePoll validates and parses an ArtPoll packet.
func ParsePoll(data []byte) (*PollPacket, error) {
	op, err := opCode(data)
	if err != nil {
		return nil, err
	}
	if op != OpPoll {
		return nil, fmt.Errorf("artnet: not an ArtPoll packet (opcode %#04x)", op)
	}

	hdr, ok := wire.Slice(data, 10, 4)
	if !ok {
		return nil, ErrPacketTooShort
	}

	return &PollPacket{Flags: hdr[2], DiagPriority: hdr[3]}, nil
}

// OpCode returns just the opcode, for callers (the receiver) that
// dispatch before deciding which specific parser to invoke.
func OpCode(data []byte) (uint16, error) {
	return opCode(data)
}

// BuildPollReply constructs a 239-byte ArtPollReply per spec.md §6.
func BuildPollReply(ip [4]byte, mac [6]byte, shortName, longName, nodeReport string, port1, port2 Universe, port2Enabled bool) []byte {
	buf := make([]byte, 239)

	copy(buf[0:8], ID[:])
	binary.LittleEndian.PutUint16(buf[8:10], OpPollReply)
	copy(buf[10:14], ip[:])
	binary.LittleEndian.PutUint16(buf[14:16], Port)
	binary.BigEndian.PutUint16(buf[16:18], ProtocolVersion)

	buf[18] = port1.Net()
	buf[19] = port1.SubNet()

	buf[23] = 0xE0 // Status1: indicators normal, network configured

	copy(buf[26:44], padName(shortName, 17))
	copy(buf[44:108], padName(longName, 63))
	copy(buf[108:172], padName(nodeReport, 63))

	buf[172] = 0 // NumPorts hi
	buf[173] = 2 // NumPorts lo

	buf[174] = 0x80 // PortTypes[0]: DMX output
	buf[175] = 0x80 // PortTypes[1]: DMX output

	buf[182] = 0x80 // GoodOutput[0]: data being transmitted
	if port2Enabled {
		buf[183] = 0x80 // GoodOutput[1]
	}

	buf[190] = uint8(port1) & 0x0F // SwOut[0]
	if port2Enabled {
		buf[191] = uint8(port2) & 0x0F // SwOut[1]
	}

	buf[200] = 0x00 // Style: ST_NODE

	copy(buf[201:207], mac[:])
	copy(buf[207:211], ip[:]) // BindIP

	buf[212] = 0x08 // Status2: Art-Net 4 capable

	return buf
}

// BuildPoll constructs an ArtPoll packet.
func BuildPoll() []byte {
	buf := make([]byte, 14)
	copy(buf[0:8], ID[:])
	binary.LittleEndian.PutUint16(buf[8:10], OpPoll)
	binary.BigEndian.PutUint16(buf[10:12], ProtocolVersion)
	return buf
}

func padName(s string, max int) []byte {
	if len(s) > max {
		s = s[:max]
	}
	// +1 for the NUL terminator the field reserves.
	out := make([]byte, max+1)
	copy(out, s)
	return out
}

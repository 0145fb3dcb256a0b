// Package sacn implements the wire format and multicast receiver for
// ANSI E1.31 (sACN) DMX-over-IP (UDP port 5568).
package sacn

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/gopatchy/dmxbridge/wire"
)

const Port = 5568

const (
	vectorRootE131Data   = 0x00000004
	vectorFramingData    = 0x00000002
	vectorDMPSetProperty = 0x02

	optionTerminated = 0x40
	optionPreview    = 0x80
)

var acnPacketIdentifier = [12]byte{
	'A', 'S', 'C', '-', 'E', '1', '.', '1', '7', 0x00, 0x00, 0x00,
}

// DataPacket is a parsed E1.31 data packet (root+framing+DMP layers).
type DataPacket struct {
	SourceName      string
	Priority        uint8
	SyncAddress     uint16
	Sequence        uint8
	Preview         bool
	Terminated      bool
	Universe        uint16
	Data            [512]byte
	Length          int // number of valid DMX bytes in Data
}

// MulticastAddr returns the per-universe multicast group per spec:
// 239.255.(u>>8).(u&0xff).
func MulticastAddr(universe uint16) *net.UDPAddr {
	return &net.UDPAddr{
		IP:   net.IPv4(239, 255, byte(universe>>8), byte(universe&0xff)),
		Port: Port,
	}
}

// ParseData validates the root and framing layers, and for packets
// without the Stream Terminated option also the DMP layer, before
// returning any field; it returns an error on the first mismatch.
func ParseData(data []byte) (*DataPacket, error) {
	// Root layer.
	id, ok := wire.Slice(data, 4, 12)
	if !ok || !wire.Equal(id, acnPacketIdentifier[:]) {
		return nil, fmt.Errorf("sacn: invalid root identifier")
	}
	preambleSize, ok := wire.Uint16BE(data, 0)
	if !ok || preambleSize != 0x0010 {
		return nil, fmt.Errorf("sacn: invalid preamble size")
	}
	postambleSize, ok := wire.Uint16BE(data, 2)
	if !ok || postambleSize != 0x0000 {
		return nil, fmt.Errorf("sacn: invalid postamble size")
	}
	rootVector, ok := wire.Uint32BE(data, 18)
	if !ok || rootVector != vectorRootE131Data {
		return nil, fmt.Errorf("sacn: unexpected root vector")
	}

	// Framing layer.
	framingVector, ok := wire.Uint32BE(data, 40)
	if !ok || framingVector != vectorFramingData {
		return nil, fmt.Errorf("sacn: unexpected framing vector")
	}
	nameBytes, ok := wire.Slice(data, 44, 64)
	if !ok {
		return nil, fmt.Errorf("sacn: packet too short (source name)")
	}
	if len(data) < 115 {
		return nil, fmt.Errorf("sacn: packet too short (framing layer)")
	}
	priority := data[108]
	if priority > 200 {
		return nil, fmt.Errorf("sacn: priority out of range: %d", priority)
	}
	syncAddress, ok := wire.Uint16BE(data, 109)
	if !ok {
		return nil, fmt.Errorf("sacn: packet too short (sync address)")
	}
	sequence := data[111]
	options := data[112]
	universe, ok := wire.Uint16BE(data, 113)
	if !ok {
		return nil, fmt.Errorf("sacn: packet too short (universe)")
	}
	if universe < 1 || universe > 63999 {
		return nil, fmt.Errorf("sacn: universe out of range: %d", universe)
	}

	pkt := &DataPacket{
		SourceName:  wire.NullTerminated(nameBytes),
		Priority:    priority,
		SyncAddress: syncAddress,
		Sequence:    sequence,
		Preview:     options&optionPreview != 0,
		Terminated:  options&optionTerminated != 0,
		Universe:    universe,
	}

	if pkt.Terminated {
		// Stream-terminated packets carry no DMP layer guarantees;
		// the caller invalidates the source without reading Data.
		return pkt, nil
	}

	// DMP layer.
	if len(data) < 126 {
		return nil, fmt.Errorf("sacn: packet too short (DMP layer)")
	}
	if data[117] != vectorDMPSetProperty {
		return nil, fmt.Errorf("sacn: unexpected DMP vector")
	}
	if data[118] != 0xA1 {
		return nil, fmt.Errorf("sacn: unexpected address/data type")
	}
	firstAddr, ok := wire.Uint16BE(data, 119)
	if !ok || firstAddr != 0x0000 {
		return nil, fmt.Errorf("sacn: unexpected first property address")
	}
	increment, ok := wire.Uint16BE(data, 121)
	if !ok || increment != 0x0001 {
		return nil, fmt.Errorf("sacn: unexpected address increment")
	}
	propCount, ok := wire.Uint16BE(data, 123)
	if !ok || propCount < 1 {
		return nil, fmt.Errorf("sacn: invalid property count")
	}
	if data[125] != 0x00 {
		return nil, fmt.Errorf("sacn: unexpected start code")
	}

	dmxLen := int(propCount) - 1
	if dmxLen > 512 {
		dmxLen = 512
	}
	dmxBytes, ok := wire.Slice(data, 126, dmxLen)
	if !ok {
		return nil, fmt.Errorf("sacn: packet too short (DMX data)")
	}
	copy(pkt.Data[:], dmxBytes)
	pkt.Length = dmxLen

	return pkt, nil
}

// BuildData constructs a wire-format E1.31 data packet. It is used by
// tests to synthesize fixtures and is the basis a future transmit
// path would reuse; this repo does not itself retransmit sACN.
func BuildData(universe uint16, sequence uint8, priority uint8, sourceName string, options uint8, data []byte) []byte {
	dataLen := len(data)
	if dataLen > 512 {
		dataLen = 512
	}

	pktLen := 126 + dataLen
	buf := make([]byte, pktLen)

	binary.BigEndian.PutUint16(buf[0:2], 0x0010)
	binary.BigEndian.PutUint16(buf[2:4], 0x0000)
	copy(buf[4:16], acnPacketIdentifier[:])
	binary.BigEndian.PutUint16(buf[16:18], 0x7000|uint16(pktLen-16))
	binary.BigEndian.PutUint32(buf[18:22], vectorRootE131Data)

	binary.BigEndian.PutUint16(buf[38:40], 0x7000|uint16(pktLen-38))
	binary.BigEndian.PutUint32(buf[40:44], vectorFramingData)
	copy(buf[44:108], sourceName)
	buf[108] = priority
	binary.BigEndian.PutUint16(buf[109:111], 0)
	buf[111] = sequence
	buf[112] = options
	binary.BigEndian.PutUint16(buf[113:115], universe)

	dmpLen := 11 + dataLen
	binary.BigEndian.PutUint16(buf[115:117], 0x7000|uint16(dmpLen))
	buf[117] = vectorDMPSetProperty
	buf[118] = 0xA1
	binary.BigEndian.PutUint16(buf[119:121], 0)
	binary.BigEndian.PutUint16(buf[121:123], 1)
	binary.BigEndian.PutUint16(buf[123:125], uint16(dataLen+1))
	buf[125] = 0x00
	copy(buf[126:], data[:dataLen])

	return buf
}

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol names which wire protocol a universe is routed over.
type Protocol string

const (
	ProtocolArtNet Protocol = "artnet"
	ProtocolSACN   Protocol = "sacn"
)

// Universe is a protocol-qualified universe number. For Art-Net it is
// the 15-bit net/subnet/universe value (0-32767); for sACN it is the
// 1-63999 E1.31 universe.
type Universe struct {
	Protocol Protocol
	Number   uint16
}

func (u Universe) String() string {
	return fmt.Sprintf("%s:%d", u.Protocol, u.Number)
}

// NewUniverse validates and constructs a Universe.
func NewUniverse(proto Protocol, number uint16) (Universe, error) {
	switch proto {
	case ProtocolArtNet:
		if number > 32767 {
			return Universe{}, fmt.Errorf("artnet universe out of range: %d", number)
		}
	case ProtocolSACN:
		if number < 1 || number > 63999 {
			return Universe{}, fmt.Errorf("sacn universe out of range: %d", number)
		}
	default:
		return Universe{}, fmt.Errorf("unknown protocol: %q", proto)
	}
	return Universe{Protocol: proto, Number: number}, nil
}

// ArtNetNetSubUniv packs net/subnet/universe into the 15-bit Art-Net
// logical universe, matching artnet.NewUniverse's bit layout.
func ArtNetNetSubUniv(net, sub, univ uint8) uint16 {
	return (uint16(net&0x7F) << 8) | (uint16(sub&0x0F) << 4) | uint16(univ&0x0F)
}

// ParseUniverse parses "artnet:NET.SUB.UNIV", "artnet:NUM", or
// "sacn:NUM".
func ParseUniverse(s string) (Universe, error) {
	proto, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Universe{}, fmt.Errorf("invalid universe address %q: missing protocol prefix", s)
	}

	p := Protocol(proto)
	number, err := parseUniverseNumber(rest, p)
	if err != nil {
		return Universe{}, err
	}

	return NewUniverse(p, number)
}

func parseUniverseNumber(s string, proto Protocol) (uint16, error) {
	if proto == ProtocolArtNet && strings.Contains(s, ".") {
		parts := strings.Split(s, ".")
		if len(parts) != 3 {
			return 0, fmt.Errorf("invalid net.subnet.universe address: %q", s)
		}
		var vals [3]int
		for i, p := range parts {
			v, err := strconv.Atoi(p)
			if err != nil || v < 0 || v > 255 {
				return 0, fmt.Errorf("invalid net.subnet.universe component %q", p)
			}
			vals[i] = v
		}
		return ArtNetNetSubUniv(uint8(vals[0]), uint8(vals[1]), uint8(vals[2])), nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid universe number %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("universe number must not be negative: %d", v)
	}
	return uint16(v), nil
}

// UniverseAddr is the TOML-decodable form of Universe, supporting both
// `universe = "artnet:0.0.1"` string values and bare integers (which
// default to sACN, the common case for a port fed purely over
// multicast).
type UniverseAddr struct {
	Universe Universe
}

func (u *UniverseAddr) UnmarshalText(text []byte) error {
	parsed, err := ParseUniverse(string(text))
	if err != nil {
		return err
	}
	u.Universe = parsed
	return nil
}

func (u *UniverseAddr) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		parsed, err := ParseUniverse(v)
		if err != nil {
			return err
		}
		u.Universe = parsed
		return nil
	case int64:
		parsed, err := NewUniverse(ProtocolSACN, uint16(v))
		if err != nil {
			return err
		}
		u.Universe = parsed
		return nil
	default:
		return fmt.Errorf("unsupported universe address type: %T", data)
	}
}

package radio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"rfcoap/pkg/coap"
)

// Endpoint record layout (8 bytes). Integer fields are little-endian.
//
//	0       Tag    transport identity (the generic routing byte)
//	1       Flags  bitfield, zero on this transport
//	2 ..5   Host   IPv4
//	6 ..7   Port   u16
//
// The record is embedded by value in the user header of an outbound chain
// and stays read-only for the lifetime of the send.
const EncodedSize = 8

var (
	ErrShortEndpoint = errors.New("radio: endpoint record too short")
	ErrNotIPv4       = errors.New("radio: endpoint host is not IPv4")
)

// Endpoint addresses one peer reachable over the radio link.
type Endpoint struct {
	Tag   coap.TransportID
	Flags uint8
	Host  netip.Addr
	Port  uint16
}

// MarshalBinary encodes the endpoint into its fixed 8-byte record.
func (e Endpoint) MarshalBinary() ([]byte, error) {
	if !e.Host.Is4() {
		return nil, fmt.Errorf("%w: %s", ErrNotIPv4, e.Host)
	}
	b := make([]byte, EncodedSize)
	b[0] = byte(e.Tag)
	b[1] = e.Flags
	host := e.Host.As4()
	copy(b[2:6], host[:])
	binary.LittleEndian.PutUint16(b[6:8], e.Port)
	return b, nil
}

// DecodeEndpoint parses the fixed 8-byte record from rec.
func DecodeEndpoint(rec []byte) (Endpoint, error) {
	if len(rec) < EncodedSize {
		return Endpoint{}, fmt.Errorf("%w: %d bytes", ErrShortEndpoint, len(rec))
	}
	var host [4]byte
	copy(host[:], rec[2:6])
	return Endpoint{
		Tag:   coap.TransportID(rec[0]),
		Flags: rec[1],
		Host:  netip.AddrFrom4(host),
		Port:  binary.LittleEndian.Uint16(rec[6:8]),
	}, nil
}

// SameAddress reports whether o names the same host and port.
func (e Endpoint) SameAddress(o Endpoint) bool {
	return e.Host == o.Host && e.Port == o.Port
}

// String renders host:port for diagnostics.
func (e Endpoint) String() string {
	return netip.AddrPortFrom(e.Host, e.Port).String()
}

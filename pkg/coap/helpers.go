package coap

import (
	"fmt"

	"rfcoap/pkg/coap/codec"
	"rfcoap/pkg/mbuf"
)

// EncodePayload marshals v with the codec registered for format.
func EncodePayload(reg *codec.Registry, format uint16, v any) ([]byte, error) {
	c, ok := reg.ByFormat(format)
	if !ok {
		return nil, fmt.Errorf("coap: no codec for content format %d", format)
	}
	return c.Marshal(v)
}

// DecodePayload unmarshals data into v with the codec registered for format.
func DecodePayload(reg *codec.Registry, format uint16, data []byte, v any) error {
	c, ok := reg.ByFormat(format)
	if !ok {
		return fmt.Errorf("coap: no codec for content format %d", format)
	}
	return c.Unmarshal(data, v)
}

// NewChain frames m as an outbound chain stamped with the endpoint record
// rec. The chain is ready for Registry.Transmit.
func NewChain(rec []byte, m *Message) (*mbuf.Chain, error) {
	wire, err := m.Encode()
	if err != nil {
		return nil, err
	}
	ch := mbuf.NewWithPayload(len(rec), wire)
	copy(ch.UserHeader(), rec)
	return ch, nil
}

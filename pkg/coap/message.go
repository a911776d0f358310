package coap

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Fixed message prologue layout (8 bytes) shared by every transport.
// All integer fields are little-endian.
//
//	0       VerType  version (high nibble) | message type (low nibble)
//	1       Code     class (high 3 bits), detail (low 5 bits)
//	2 ..3   MessageID u16
//	4 ..5   ContentFormat u16
//	6       TokenLen u8 (0..8)
//	7       Reserved u8 (zero)
//
// TokenLen token bytes follow the prologue, then the payload runs to the
// end of the frame.
const (
	Version     = 1
	HeaderSize  = 8
	MaxTokenLen = 8
)

var (
	ErrShortMessage = errors.New("coap: short message")
	ErrVersion      = errors.New("coap: unsupported version")
	ErrType         = errors.New("coap: bad message type")
	ErrTokenLen     = errors.New("coap: token length out of range")
	ErrReserved     = errors.New("coap: reserved byte set")
)

// Type is the message exchange class.
type Type uint8

const (
	Confirmable Type = iota
	NonConfirmable
	Acknowledgement
	Reset
)

func (t Type) String() string {
	switch t {
	case Confirmable:
		return "CON"
	case NonConfirmable:
		return "NON"
	case Acknowledgement:
		return "ACK"
	case Reset:
		return "RST"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Code identifies a request method or a response status, packed as a 3-bit
// class and a 5-bit detail.
type Code uint8

const (
	CodeEmpty Code = 0

	// Requests (class 0).
	CodeGET    Code = 1
	CodePOST   Code = 2
	CodePUT    Code = 3
	CodeDELETE Code = 4

	// Responses.
	CodeCreated          Code = 2<<5 | 1  // 2.01
	CodeDeleted          Code = 2<<5 | 2  // 2.02
	CodeChanged          Code = 2<<5 | 4  // 2.04
	CodeContent          Code = 2<<5 | 5  // 2.05
	CodeBadRequest       Code = 4<<5 | 0  // 4.00
	CodeNotFound         Code = 4<<5 | 4  // 4.04
	CodeMethodNotAllowed Code = 4<<5 | 5  // 4.05
	CodeInternalError    Code = 5<<5 | 0  // 5.00
)

// Class returns the high 3 bits of the code.
func (c Code) Class() uint8 { return uint8(c) >> 5 }

// Detail returns the low 5 bits of the code.
func (c Code) Detail() uint8 { return uint8(c) & 0x1f }

// IsRequest reports whether c is a request method.
func (c Code) IsRequest() bool { return c.Class() == 0 && c != CodeEmpty }

// IsResponse reports whether c is a response status.
func (c Code) IsResponse() bool { return c.Class() >= 2 }

func (c Code) String() string {
	switch c {
	case CodeEmpty:
		return "EMPTY"
	case CodeGET:
		return "GET"
	case CodePOST:
		return "POST"
	case CodePUT:
		return "PUT"
	case CodeDELETE:
		return "DELETE"
	}
	return fmt.Sprintf("%d.%02d", c.Class(), c.Detail())
}

// Message is one request or response.
type Message struct {
	Type          Type
	Code          Code
	MessageID     uint16
	ContentFormat uint16
	Token         []byte
	Payload       []byte
}

// Encode frames the message as prologue, token, payload.
func (m *Message) Encode() ([]byte, error) {
	if m.Type > Reset {
		return nil, fmt.Errorf("%w: %d", ErrType, uint8(m.Type))
	}
	if len(m.Token) > MaxTokenLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrTokenLen, len(m.Token))
	}
	buf := make([]byte, HeaderSize+len(m.Token)+len(m.Payload))
	buf[0] = Version<<4 | uint8(m.Type)&0x0f
	buf[1] = uint8(m.Code)
	binary.LittleEndian.PutUint16(buf[2:4], m.MessageID)
	binary.LittleEndian.PutUint16(buf[4:6], m.ContentFormat)
	buf[6] = uint8(len(m.Token))
	// buf[7] reserved stays zero
	copy(buf[HeaderSize:], m.Token)
	copy(buf[HeaderSize+len(m.Token):], m.Payload)
	return buf, nil
}

// DecodeMessage parses one framed message. Token and payload are copied out
// of b.
func DecodeMessage(b []byte) (*Message, error) {
	if len(b) < HeaderSize {
		return nil, ErrShortMessage
	}
	if b[0]>>4 != Version {
		return nil, ErrVersion
	}
	t := Type(b[0] & 0x0f)
	if t > Reset {
		return nil, fmt.Errorf("%w: %d", ErrType, uint8(t))
	}
	if b[7] != 0 {
		return nil, ErrReserved
	}
	tkl := int(b[6])
	if tkl > MaxTokenLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrTokenLen, tkl)
	}
	if len(b) < HeaderSize+tkl {
		return nil, ErrShortMessage
	}
	m := &Message{
		Type:          t,
		Code:          Code(b[1]),
		MessageID:     binary.LittleEndian.Uint16(b[2:4]),
		ContentFormat: binary.LittleEndian.Uint16(b[4:6]),
	}
	if tkl > 0 {
		m.Token = append([]byte(nil), b[HeaderSize:HeaderSize+tkl]...)
	}
	if rest := b[HeaderSize+tkl:]; len(rest) > 0 {
		m.Payload = append([]byte(nil), rest...)
	}
	return m, nil
}

// Package loop provides an in-process transport binding that hands outbound
// messages straight to a bound server and collects the responses. It runs
// the stack without hardware and doubles as a test transport.
package loop

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"rfcoap/pkg/coap"
	"rfcoap/pkg/mbuf"
)

// EncodedSize is the loop endpoint record size: tag and flags only.
const EncodedSize = 2

var (
	ErrRegister = errors.New("loop: registration failed")
	ErrNotBound = errors.New("loop: no server bound")
	ErrMismatch = errors.New("loop: record not tagged for this binding")
	ErrTransmit = errors.New("loop: transmit failed")
)

// Transport is the in-process binding. Outbound chains are decoded as
// messages and served by the bound server synchronously.
type Transport struct {
	reg *coap.Registry

	mu        sync.Mutex
	id        coap.TransportID
	hasID     bool
	srv       *coap.Server
	responses []*coap.Message
}

var _ coap.Transport = (*Transport)(nil)

// New returns an unbound loop transport over reg.
func New(reg *coap.Registry) *Transport {
	return &Transport{reg: reg}
}

// Register obtains an identity from the registry and binds srv.
func (t *Transport) Register(srv *coap.Server) error {
	if srv == nil {
		return fmt.Errorf("%w: nil server", ErrRegister)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.srv != nil {
		return fmt.Errorf("%w: already bound to %q", ErrRegister, t.srv.Name())
	}
	id, err := t.reg.Register(t, 0)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRegister, err)
	}
	t.id = id
	t.hasID = true
	t.srv = srv
	zap.L().Info("loop transport registered", zap.Uint8("transport", uint8(id)))
	return nil
}

// Endpoint returns the binding's own endpoint record.
func (t *Transport) Endpoint() ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasID {
		return nil, false
	}
	return []byte{byte(t.id), 0}, true
}

// EndpointSize reports the loop record size.
func (*Transport) EndpointSize() int { return EncodedSize }

// HasConnection reports true while a server is bound: the in-process pair
// behaves as an always-open session.
func (t *Transport) HasConnection([]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.srv != nil
}

// FormatEndpoint renders rec for diagnostics; it never fails.
func (*Transport) FormatEndpoint(rec []byte) string {
	if len(rec) < EncodedSize {
		return "loop:<invalid>"
	}
	return fmt.Sprintf("loop:%d", rec[0])
}

// Init is the stack's post-registration hook.
func (t *Transport) Init() error { return nil }

// Shutdown unbinds the server and returns the identity to the registry.
func (t *Transport) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasID {
		if err := t.reg.Unregister(t.id); err != nil {
			zap.L().Warn("loop: unregister on shutdown", zap.Error(err))
		}
		t.hasID = false
	}
	t.srv = nil
	t.responses = nil
}

// TransmitUnicast decodes the chain payload as one message, serves it, and
// records the response. The chain is released exactly once on every path.
func (t *Transport) TransmitUnicast(ch *mbuf.Chain) error {
	if ch == nil {
		return fmt.Errorf("%w: nil chain", ErrTransmit)
	}
	defer ch.Release()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.srv == nil {
		return ErrNotBound
	}
	rec := ch.UserHeader()
	if len(rec) < EncodedSize {
		return fmt.Errorf("%w: record %d bytes", ErrTransmit, len(rec))
	}
	if coap.TransportID(rec[0]) != t.id {
		return fmt.Errorf("%w: tag %d", ErrMismatch, rec[0])
	}
	req, err := coap.DecodeMessage(ch.Bytes())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransmit, err)
	}
	resp, err := t.srv.Serve(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransmit, err)
	}
	if resp != nil {
		t.responses = append(t.responses, resp)
	}
	zap.L().Debug("loop rx", zap.Stringer("code", req.Code))
	return nil
}

// Responses returns the responses collected so far, oldest first.
func (t *Transport) Responses() []*coap.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*coap.Message(nil), t.responses...)
}

package coap

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"rfcoap/pkg/mbuf"
)

// TransportID is the identity the registry assigns to a transport. It
// doubles as the routing tag: byte 0 of every encoded endpoint record is the
// owning transport's id.
type TransportID uint8

// MaxTransports bounds the registry table; identities run 0 through
// MaxTransports-1.
const MaxTransports = 8

// Flags declares transport capabilities at registration time.
type Flags uint8

const (
	FlagMulticast Flags = 1 << iota
	FlagSecure
)

// Transport is the capability surface a binding registers with the stack.
// The registry calls back into it for sizing, diagnostics and delivery.
type Transport interface {
	// EndpointSize reports the fixed encoded size of this transport's
	// endpoint records, used to reserve chain header space.
	EndpointSize() int
	// HasConnection reports whether the endpoint record names a peer with
	// an open connection.
	HasConnection(rec []byte) bool
	// TransmitUnicast delivers one outbound chain. The transport owns the
	// chain from this point and must release it exactly once.
	TransmitUnicast(ch *mbuf.Chain) error
	// FormatEndpoint renders rec for diagnostics. It never fails.
	FormatEndpoint(rec []byte) string
	// Init is invoked once after registration, before traffic.
	Init() error
	// Shutdown is invoked at stack teardown.
	Shutdown()
}

var (
	ErrRegistryFull = errors.New("coap: transport registry full")
	ErrNoTransport  = errors.New("coap: no transport for endpoint tag")
	ErrShortRecord  = errors.New("coap: endpoint record too short")
)

// PeekTag returns the transport tag of an encoded endpoint record.
func PeekTag(rec []byte) (TransportID, error) {
	if len(rec) < 1 {
		return 0, ErrShortRecord
	}
	return TransportID(rec[0]), nil
}

type slot struct {
	tr    Transport
	flags Flags
}

// Registry assigns identities to transports and routes outbound chains to
// the transport named by the endpoint record's tag. All state is instance
// state; callbacks run without the registry lock held.
type Registry struct {
	mu    sync.RWMutex
	slots [MaxTransports]*slot
}

// NewRegistry returns an empty transport registry.
func NewRegistry() *Registry { return &Registry{} }

// Register allocates the lowest free identity for tr and records its
// capability flags.
func (r *Registry) Register(tr Transport, flags Flags) (TransportID, error) {
	if tr == nil {
		return 0, errors.New("coap: nil transport")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.slots {
		if r.slots[i] == nil {
			r.slots[i] = &slot{tr: tr, flags: flags}
			id := TransportID(i)
			zap.L().Info("transport registered",
				zap.Uint8("transport", uint8(id)),
				zap.Int("endpoint_size", tr.EndpointSize()))
			return id, nil
		}
	}
	return 0, ErrRegistryFull
}

// Unregister frees the slot held by id. Freeing an empty slot is a no-op.
func (r *Registry) Unregister(id TransportID) error {
	if int(id) >= MaxTransports {
		return fmt.Errorf("coap: transport id %d out of range", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slots[id] != nil {
		r.slots[id] = nil
		zap.L().Info("transport unregistered", zap.Uint8("transport", uint8(id)))
	}
	return nil
}

// Lookup returns the transport registered under id.
func (r *Registry) Lookup(id TransportID) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= MaxTransports || r.slots[id] == nil {
		return nil, false
	}
	return r.slots[id].tr, true
}

// Flags returns the capability flags id registered with.
func (r *Registry) Flags(id TransportID) (Flags, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= MaxTransports || r.slots[id] == nil {
		return 0, false
	}
	return r.slots[id].flags, true
}

// Transmit routes ch to the transport named by the record tag in the
// chain's user header. The chain is released exactly once: by the transport
// it is dispatched to, or here when no transport can take it.
func (r *Registry) Transmit(ch *mbuf.Chain) error {
	if ch == nil {
		return errors.New("coap: nil chain")
	}
	tag, err := PeekTag(ch.UserHeader())
	if err != nil {
		ch.Release()
		return err
	}
	tr, ok := r.Lookup(tag)
	if !ok {
		ch.Release()
		return fmt.Errorf("%w: tag %d", ErrNoTransport, tag)
	}
	return tr.TransmitUnicast(ch)
}

// EndpointSize reports the encoded endpoint record size for id.
func (r *Registry) EndpointSize(id TransportID) (int, bool) {
	tr, ok := r.Lookup(id)
	if !ok {
		return 0, false
	}
	return tr.EndpointSize(), true
}

// HasConnection reports connection state for rec via its owning transport.
// Unroutable records report false.
func (r *Registry) HasConnection(rec []byte) bool {
	tag, err := PeekTag(rec)
	if err != nil {
		return false
	}
	tr, ok := r.Lookup(tag)
	if !ok {
		return false
	}
	return tr.HasConnection(rec)
}

// FormatEndpoint renders rec via its owning transport. Unroutable records
// render as a placeholder; formatting never fails.
func (r *Registry) FormatEndpoint(rec []byte) string {
	tag, err := PeekTag(rec)
	if err != nil {
		return "<invalid endpoint>"
	}
	tr, ok := r.Lookup(tag)
	if !ok {
		return fmt.Sprintf("<tag %d unregistered>", tag)
	}
	return tr.FormatEndpoint(rec)
}

// Init runs every registered transport's init hook and joins the failures.
func (r *Registry) Init() error {
	var errs []error
	for _, tr := range r.snapshot() {
		if err := tr.Init(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown runs every registered transport's shutdown hook. Transports
// unregister themselves as part of shutting down.
func (r *Registry) Shutdown() {
	for _, tr := range r.snapshot() {
		tr.Shutdown()
	}
}

func (r *Registry) snapshot() []Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Transport, 0, MaxTransports)
	for _, s := range r.slots {
		if s != nil {
			out = append(out, s.tr)
		}
	}
	return out
}

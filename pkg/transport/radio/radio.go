// Package radio implements the stack's transport binding for a low-power
// packet radio link: a fixed-size endpoint record, a single server binding,
// the registration protocol against the stack registry, and the unicast
// transmit path with exclusive per-operation device sessions.
package radio

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"go.uber.org/zap"

	"rfcoap/pkg/coap"
	"rfcoap/pkg/device"
	"rfcoap/pkg/mbuf"
)

var (
	// ErrRegistration covers device lookup failures, identity allocation
	// failures and double registration.
	ErrRegistration = errors.New("radio: registration failed")
	// ErrBinding covers server binding preconditions: no identity allocated
	// yet, a binding already active, or an unusable server endpoint.
	ErrBinding = errors.New("radio: server binding failed")
	// ErrRoutingMismatch flags an outbound endpoint this binding does not
	// serve. It indicates a routing defect upstream, not an I/O fault.
	ErrRoutingMismatch = errors.New("radio: endpoint not served by binding")
	// ErrTransmit flags a send that failed or moved no bytes.
	ErrTransmit = errors.New("radio: transmit failed")
)

type state uint8

const (
	stateUnregistered state = iota
	stateRegistered
	stateShutDown
)

func (s state) String() string {
	switch s {
	case stateUnregistered:
		return "unregistered"
	case stateRegistered:
		return "registered"
	default:
		return "shutdown"
	}
}

// Config names the device and the single server endpoint a binding serves.
type Config struct {
	Device string
	Host   netip.Addr
	Port   uint16
}

// Transport binds the messaging stack to a packet radio device. One
// Transport serves exactly one remote server endpoint; the link is
// connectionless and the device is acquired per operation, never held.
//
// Lifecycle runs unregistered, registered, shut down, in that order only.
// All entry points serialize on one mutex, so transmits are strictly
// ordered and a shutdown waits out any in-flight send.
type Transport struct {
	reg  *coap.Registry
	devs *device.Table
	cfg  Config

	mu       sync.Mutex
	state    state
	id       coap.TransportID
	hasID    bool
	endpoint Endpoint
	server   *coap.Server
	device   string
}

var _ coap.Transport = (*Transport)(nil)

// New returns an unregistered binding over reg and devs.
func New(reg *coap.Registry, devs *device.Table, cfg Config) *Transport {
	return &Transport{reg: reg, devs: devs, cfg: cfg}
}

// Register wires the binding into the stack: it verifies the named device
// exists and takes it for the duration, obtains a transport identity with
// no capability flags set, binds srv, and records the device name. The
// steps succeed or fail as a unit; a failed registration leaves no identity
// allocated and no server bound.
func (t *Transport) Register(srv *coap.Server) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case stateRegistered:
		return fmt.Errorf("%w: already registered", ErrRegistration)
	case stateShutDown:
		return fmt.Errorf("%w: binding shut down", ErrRegistration)
	}

	err := t.devs.With(t.cfg.Device, func(device.Conn) error {
		id, err := t.reg.Register(t, 0)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRegistration, err)
		}
		t.id = id
		t.hasID = true
		if err := t.bindServer(srv); err != nil {
			if uerr := t.reg.Unregister(id); uerr != nil {
				zap.L().Warn("radio: rollback unregister", zap.Error(uerr))
			}
			t.id = 0
			t.hasID = false
			return err
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrRegistration) && !errors.Is(err, ErrBinding) {
			err = fmt.Errorf("%w: %w", ErrRegistration, err)
		}
		zap.L().Error("radio: register", zap.String("device", t.cfg.Device), zap.Error(err))
		return err
	}

	t.device = t.cfg.Device
	t.state = stateRegistered
	zap.L().Info("radio transport registered",
		zap.String("device", t.device),
		zap.Uint8("transport", uint8(t.id)),
		zap.String("server", t.endpoint.String()))
	return nil
}

// bindServer stamps the server endpoint with the allocated identity and
// records srv as the sole active binding. The identity must exist first.
func (t *Transport) bindServer(srv *coap.Server) error {
	if !t.hasID {
		return fmt.Errorf("%w: no identity allocated", ErrBinding)
	}
	if t.server != nil {
		return fmt.Errorf("%w: already bound to %q", ErrBinding, t.server.Name())
	}
	if srv == nil {
		return fmt.Errorf("%w: nil server", ErrBinding)
	}
	if !t.cfg.Host.Is4() || t.cfg.Port == 0 {
		return fmt.Errorf("%w: server endpoint %s:%d not fully populated",
			ErrBinding, t.cfg.Host, t.cfg.Port)
	}
	t.endpoint = Endpoint{Tag: t.id, Flags: 0, Host: t.cfg.Host, Port: t.cfg.Port}
	t.server = srv
	return nil
}

// Identity returns the allocated transport identity.
func (t *Transport) Identity() (coap.TransportID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id, t.hasID
}

// ServerEndpoint returns the bound server endpoint.
func (t *Transport) ServerEndpoint() (Endpoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.server == nil {
		return Endpoint{}, false
	}
	return t.endpoint, true
}

// EndpointSize reports the fixed encoded endpoint record size. Constant,
// no side effects; the stack uses it to reserve chain header space.
func (*Transport) EndpointSize() int { return EncodedSize }

// HasConnection always reports false: the radio link has no persistent
// session concept, so no endpoint ever has an open connection.
func (*Transport) HasConnection([]byte) bool { return false }

// FormatEndpoint renders rec as host:port. It never fails; an undecodable
// record renders as a placeholder.
func (*Transport) FormatEndpoint(rec []byte) string {
	ep, err := DecodeEndpoint(rec)
	if err != nil {
		return "radio:<invalid>"
	}
	return ep.String()
}

// Init is the stack's post-registration hook. Nothing is acquired here;
// the device is taken per operation.
func (t *Transport) Init() error { return nil }

// Shutdown moves the binding to its terminal state and returns the identity
// to the registry. Safe to call more than once; nothing is valid after it.
func (t *Transport) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == stateShutDown {
		return
	}
	if t.hasID {
		if err := t.reg.Unregister(t.id); err != nil {
			zap.L().Warn("radio: unregister on shutdown", zap.Error(err))
		}
		t.hasID = false
	}
	t.server = nil
	t.state = stateShutDown
	zap.L().Info("radio transport shut down", zap.String("device", t.device))
}

// TransmitUnicast sends one outbound chain to the bound server and releases
// the chain exactly once, whatever the outcome.
//
// The chain's user header must hold this binding's endpoint record; a
// record naming any other host or port is rejected before the device is
// touched. Each payload segment must move a strictly positive byte count.
func (t *Transport) TransmitUnicast(ch *mbuf.Chain) error {
	if ch == nil {
		return fmt.Errorf("%w: nil chain", ErrTransmit)
	}
	defer ch.Release()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateRegistered {
		return fmt.Errorf("%w: binding %s", ErrTransmit, t.state)
	}
	ep, err := DecodeEndpoint(ch.UserHeader())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRoutingMismatch, err)
	}
	if !ep.SameAddress(t.endpoint) {
		zap.L().Warn("radio tx: endpoint not served",
			zap.String("endpoint", ep.String()),
			zap.String("server", t.endpoint.String()))
		return fmt.Errorf("%w: %s, bound to %s", ErrRoutingMismatch, ep, t.endpoint)
	}
	segs := ch.Segments()
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty chain", ErrTransmit)
	}

	total := 0
	err = t.devs.With(t.device, func(conn device.Conn) error {
		for _, seg := range segs {
			if len(seg) == 0 {
				continue
			}
			n, err := conn.Send(seg)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrTransmit, err)
			}
			if n <= 0 {
				return fmt.Errorf("%w: device reported %d bytes", ErrTransmit, n)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrTransmit) {
			err = fmt.Errorf("%w: %w", ErrTransmit, err)
		}
		zap.L().Error("radio tx", zap.String("endpoint", ep.String()), zap.Error(err))
		return err
	}

	zap.L().Debug("radio tx",
		zap.String("endpoint", ep.String()),
		zap.Int("bytes", total),
		zap.Int("segments", len(segs)))
	return nil
}

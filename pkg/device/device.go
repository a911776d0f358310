// Package device manages named link-layer devices and hands out exclusive
// sessions on them.
//
// A link device supports one active session at a time. Table.With is the
// only way to reach a device: it acquires the device, runs the caller's
// function with a session handle, and releases on every exit path. Callers
// never hold a device across operations.
package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Sender is the transmit surface a link driver implements. Send queues one
// frame on the link and returns the number of bytes the link accepted.
type Sender interface {
	Send(p []byte) (int, error)
}

// Opener is implemented by drivers that need per-session setup.
type Opener interface {
	Open() error
}

// Closer is implemented by drivers that need per-session teardown. Teardown
// failures are counted but never propagated.
type Closer interface {
	Close() error
}

var (
	// ErrUnavailable reports that the named device does not exist in the
	// table.
	ErrUnavailable = errors.New("device: unavailable")
	// ErrExists reports a duplicate registration under one name.
	ErrExists = errors.New("device: already registered")
)

// Device is a named link device. The mutex serializes sessions: holders of
// a session block all other operations on the same device until release.
type Device struct {
	name string
	mu   sync.Mutex
	drv  Sender

	acquires atomic.Uint64
	releases atomic.Uint64
	opens    atomic.Uint64
	closes   atomic.Uint64
	frames   atomic.Uint64
	bytes    atomic.Uint64
}

// Name returns the table name the device was registered under.
func (d *Device) Name() string { return d.name }

// Stats is a point-in-time snapshot of a device's counters.
type Stats struct {
	Acquires uint64
	Releases uint64
	Opens    uint64
	Closes   uint64
	Frames   uint64
	Bytes    uint64
}

// Stats snapshots the device counters.
func (d *Device) Stats() Stats {
	return Stats{
		Acquires: d.acquires.Load(),
		Releases: d.releases.Load(),
		Opens:    d.opens.Load(),
		Closes:   d.closes.Load(),
		Frames:   d.frames.Load(),
		Bytes:    d.bytes.Load(),
	}
}

// Conn is a handle on an acquired device session. It is valid only until
// the function passed to Table.With returns.
type Conn struct {
	d *Device
}

// Name returns the held device's name.
func (c Conn) Name() string { return c.d.name }

// Send transmits one frame through the held session.
func (c Conn) Send(p []byte) (int, error) {
	n, err := c.d.drv.Send(p)
	if err == nil && n > 0 {
		c.d.frames.Add(1)
		c.d.bytes.Add(uint64(n))
	}
	return n, err
}

// Table maps names to registered devices.
type Table struct {
	mu   sync.RWMutex
	devs map[string]*Device
}

// NewTable returns an empty device table.
func NewTable() *Table {
	return &Table{devs: make(map[string]*Device)}
}

// Register adds drv to the table under name.
func (t *Table) Register(name string, drv Sender) (*Device, error) {
	if name == "" {
		return nil, errors.New("device: empty name")
	}
	if drv == nil {
		return nil, fmt.Errorf("device: nil driver for %q", name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.devs[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}
	d := &Device{name: name, drv: drv}
	t.devs[name] = d
	return d, nil
}

// Lookup returns the device registered under name.
func (t *Table) Lookup(name string) (*Device, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.devs[name]
	return d, ok
}

// Names returns the registered device names, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.devs))
	for name := range t.devs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// With runs fn while holding exclusive access to the named device.
//
// Acquisition waits without bound until the current holder releases; there
// is no timeout and no cancellation, the device always eventually frees.
// The session is released on every exit path, including an error or panic
// inside fn, so acquires always pair with releases.
func (t *Table) With(name string, fn func(Conn) error) error {
	d, ok := t.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: no such device %q", ErrUnavailable, name)
	}
	d.mu.Lock()
	d.acquires.Add(1)
	defer func() {
		d.releases.Add(1)
		d.mu.Unlock()
	}()
	if o, ok := d.drv.(Opener); ok {
		if err := o.Open(); err != nil {
			return fmt.Errorf("device: open %s: %w", name, err)
		}
		d.opens.Add(1)
	}
	if cl, ok := d.drv.(Closer); ok {
		defer func() {
			if err := cl.Close(); err == nil {
				d.closes.Add(1)
			}
		}()
	}
	return fn(Conn{d: d})
}

package device

import (
	"fmt"
	"sync"
)

// MemRadio is an in-memory link driver. It records every transmitted frame
// and stands in for a packet radio during tests and local runs.
//
// Failure injection: Fail arms an error returned by subsequent Sends until
// cleared, ReportZero makes the next Send report zero bytes without error.
type MemRadio struct {
	mu      sync.Mutex
	mtu     int
	frames  [][]byte
	failErr error
	zero    bool
	opens   int
	closes  int
}

// NewMemRadio returns a driver accepting frames up to mtu bytes; mtu <= 0
// leaves the frame size unlimited.
func NewMemRadio(mtu int) *MemRadio {
	return &MemRadio{mtu: mtu}
}

// Open counts session setup.
func (m *MemRadio) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	return nil
}

// Close counts session teardown.
func (m *MemRadio) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

// Send records p as one transmitted frame.
func (m *MemRadio) Send(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return 0, m.failErr
	}
	if m.zero {
		m.zero = false
		return 0, nil
	}
	if m.mtu > 0 && len(p) > m.mtu {
		return 0, fmt.Errorf("memradio: %d byte frame exceeds mtu %d", len(p), m.mtu)
	}
	m.frames = append(m.frames, append([]byte(nil), p...))
	return len(p), nil
}

// Fail arms err as the result of every following Send; Fail(nil) disarms.
func (m *MemRadio) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// ReportZero makes the next Send report zero bytes with no error.
func (m *MemRadio) ReportZero() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zero = true
}

// Frames returns a copy of the recorded frames in transmit order.
func (m *MemRadio) Frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.frames))
	for i, f := range m.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Sessions reports the Open and Close hook counts.
func (m *MemRadio) Sessions() (opens, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens, m.closes
}

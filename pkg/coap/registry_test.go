package coap

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfcoap/pkg/mbuf"
)

// fakeTransport records registry callbacks. It releases every chain it is
// handed, matching the ownership contract.
type fakeTransport struct {
	size      int
	connected bool
	sendErr   error
	initErr   error

	frames    [][]byte
	inits     int
	shutdowns int
}

func (f *fakeTransport) EndpointSize() int            { return f.size }
func (f *fakeTransport) HasConnection(rec []byte) bool { return f.connected }
func (f *fakeTransport) FormatEndpoint(rec []byte) string {
	return fmt.Sprintf("fake:%x", rec)
}

func (f *fakeTransport) TransmitUnicast(ch *mbuf.Chain) error {
	f.frames = append(f.frames, ch.Bytes())
	ch.Release()
	return f.sendErr
}

func (f *fakeTransport) Init() error { f.inits++; return f.initErr }
func (f *fakeTransport) Shutdown()   { f.shutdowns++ }

func chainWithTag(tag TransportID, payload []byte) *mbuf.Chain {
	ch := mbuf.NewWithPayload(1, payload)
	ch.UserHeader()[0] = byte(tag)
	return ch
}

func TestRegistryAssignsLowestFreeSlot(t *testing.T) {
	reg := NewRegistry()

	a := &fakeTransport{size: 8}
	b := &fakeTransport{size: 2}

	idA, err := reg.Register(a, 0)
	require.NoError(t, err)
	assert.Equal(t, TransportID(0), idA)

	idB, err := reg.Register(b, FlagMulticast)
	require.NoError(t, err)
	assert.Equal(t, TransportID(1), idB)

	got, ok := reg.Lookup(idA)
	require.True(t, ok)
	assert.Same(t, a, got)

	flags, ok := reg.Flags(idB)
	require.True(t, ok)
	assert.Equal(t, FlagMulticast, flags)

	flags, ok = reg.Flags(idA)
	require.True(t, ok)
	assert.Equal(t, Flags(0), flags)
}

func TestRegistryRejectsNilTransport(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register(nil, 0)
	require.Error(t, err)
}

func TestRegistryFull(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < MaxTransports; i++ {
		_, err := reg.Register(&fakeTransport{size: 1}, 0)
		require.NoError(t, err)
	}
	_, err := reg.Register(&fakeTransport{size: 1}, 0)
	require.ErrorIs(t, err, ErrRegistryFull)
}

func TestRegistryUnregisterReusesSlot(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Register(&fakeTransport{size: 1}, 0)
	require.NoError(t, err)
	idB, err := reg.Register(&fakeTransport{size: 1}, 0)
	require.NoError(t, err)

	require.NoError(t, reg.Unregister(idB))
	_, ok := reg.Lookup(idB)
	assert.False(t, ok)

	// freeing an empty slot is a no-op
	require.NoError(t, reg.Unregister(idB))

	// the freed slot is the lowest available again
	idC, err := reg.Register(&fakeTransport{size: 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, idB, idC)

	require.Error(t, reg.Unregister(TransportID(MaxTransports)))
}

func TestRegistryTransmitRoutesByTag(t *testing.T) {
	reg := NewRegistry()
	a := &fakeTransport{size: 8}
	b := &fakeTransport{size: 2}
	idA, err := reg.Register(a, 0)
	require.NoError(t, err)
	idB, err := reg.Register(b, 0)
	require.NoError(t, err)

	require.NoError(t, reg.Transmit(chainWithTag(idB, []byte{1, 2})))
	require.NoError(t, reg.Transmit(chainWithTag(idA, []byte{3})))

	assert.Equal(t, [][]byte{{3}}, a.frames)
	assert.Equal(t, [][]byte{{1, 2}}, b.frames)
}

func TestRegistryTransmitUnroutable(t *testing.T) {
	reg := NewRegistry()

	err := reg.Transmit(nil)
	require.Error(t, err)

	ch := mbuf.NewWithPayload(0, []byte{1})
	err = reg.Transmit(ch)
	require.ErrorIs(t, err, ErrShortRecord)
	assert.True(t, ch.Released())

	ch = chainWithTag(5, []byte{1})
	err = reg.Transmit(ch)
	require.ErrorIs(t, err, ErrNoTransport)
	assert.True(t, ch.Released())
}

func TestRegistryTransmitTransportError(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	tr := &fakeTransport{size: 1, sendErr: boom}
	id, err := reg.Register(tr, 0)
	require.NoError(t, err)

	ch := chainWithTag(id, []byte{9})
	require.ErrorIs(t, reg.Transmit(ch), boom)
	assert.True(t, ch.Released())
}

func TestRegistryEndpointSize(t *testing.T) {
	reg := NewRegistry()
	id, err := reg.Register(&fakeTransport{size: 8}, 0)
	require.NoError(t, err)

	n, ok := reg.EndpointSize(id)
	require.True(t, ok)
	assert.Equal(t, 8, n)

	_, ok = reg.EndpointSize(id + 1)
	assert.False(t, ok)
}

func TestRegistryHasConnection(t *testing.T) {
	reg := NewRegistry()
	id, err := reg.Register(&fakeTransport{size: 1, connected: true}, 0)
	require.NoError(t, err)

	assert.True(t, reg.HasConnection([]byte{byte(id)}))
	assert.False(t, reg.HasConnection(nil))
	assert.False(t, reg.HasConnection([]byte{byte(id) + 1}))
}

func TestRegistryFormatEndpoint(t *testing.T) {
	reg := NewRegistry()
	id, err := reg.Register(&fakeTransport{size: 1}, 0)
	require.NoError(t, err)

	assert.Equal(t, "fake:0003", reg.FormatEndpoint([]byte{byte(id), 3}))
	assert.Equal(t, "<invalid endpoint>", reg.FormatEndpoint(nil))
	assert.Equal(t, "<tag 7 unregistered>", reg.FormatEndpoint([]byte{7}))
}

func TestRegistryInitJoinsFailures(t *testing.T) {
	reg := NewRegistry()
	ok1 := &fakeTransport{size: 1}
	bad := &fakeTransport{size: 1, initErr: errors.New("no antenna")}
	ok2 := &fakeTransport{size: 1}
	for _, tr := range []*fakeTransport{ok1, bad, ok2} {
		_, err := reg.Register(tr, 0)
		require.NoError(t, err)
	}

	err := reg.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no antenna")
	assert.Equal(t, 1, ok1.inits)
	assert.Equal(t, 1, bad.inits)
	assert.Equal(t, 1, ok2.inits)
}

func TestRegistryShutdown(t *testing.T) {
	reg := NewRegistry()
	a := &fakeTransport{size: 1}
	b := &fakeTransport{size: 1}
	for _, tr := range []*fakeTransport{a, b} {
		_, err := reg.Register(tr, 0)
		require.NoError(t, err)
	}

	reg.Shutdown()
	assert.Equal(t, 1, a.shutdowns)
	assert.Equal(t, 1, b.shutdowns)
}

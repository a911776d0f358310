package coap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeCacheRoundtrip(t *testing.T) {
	c := NewExchangeCache(time.Minute)

	req := &Message{Type: Confirmable, Code: CodeGET, MessageID: 7, Token: []byte{1}}
	resp := &Message{Type: Acknowledgement, Code: CodeContent, MessageID: 7, Token: []byte{1}}

	_, ok := c.Lookup(req)
	require.False(t, ok)

	c.Store(req, resp)
	got, ok := c.Lookup(req)
	require.True(t, ok)
	assert.Same(t, resp, got)

	// a different token is a different exchange
	other := &Message{Type: Confirmable, Code: CodeGET, MessageID: 7, Token: []byte{2}}
	_, ok = c.Lookup(other)
	assert.False(t, ok)

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(2), st.Misses)
}

func TestExchangeCacheExpiry(t *testing.T) {
	c := NewExchangeCache(time.Second)
	now := time.Unix(1000, 0)
	c.nowFn = func() time.Time { return now }

	req := &Message{Type: Confirmable, Code: CodeGET, MessageID: 1}
	c.Store(req, &Message{Type: Acknowledgement, Code: CodeContent, MessageID: 1})

	_, ok := c.Lookup(req)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Lookup(req)
	require.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
	assert.Equal(t, 0, c.Len())
}

func TestExchangeCacheSweep(t *testing.T) {
	c := NewExchangeCache(time.Second)
	now := time.Unix(1000, 0)
	c.nowFn = func() time.Time { return now }

	for id := uint16(0); id < 8; id++ {
		req := &Message{Type: Confirmable, Code: CodeGET, MessageID: id}
		c.Store(req, &Message{Type: Acknowledgement, Code: CodeContent, MessageID: id})
	}
	require.Equal(t, 8, c.Len())

	// all 8 are now dead; each Store sweeps a few of them
	now = now.Add(time.Minute)
	for id := uint16(100); id < 103; id++ {
		req := &Message{Type: Confirmable, Code: CodeGET, MessageID: id}
		c.Store(req, &Message{Type: Acknowledgement, Code: CodeContent, MessageID: id})
	}
	assert.Less(t, c.Len(), 11)
	assert.Greater(t, c.Stats().Evictions, uint64(0))
}

func TestExchangeCacheDefaultTTL(t *testing.T) {
	c := NewExchangeCache(0)
	assert.Equal(t, ExchangeLifetime, c.ttl)
}

func TestServerDedup(t *testing.T) {
	srv := NewServer("node")
	srv.UseDedup(NewExchangeCache(time.Minute))

	var calls int
	srv.Handle(CodeGET, func(req *Message) (*Message, error) {
		calls++
		return &Message{Type: Confirmable, Code: CodeContent, Payload: []byte("pong")}, nil
	})

	req := &Message{Type: Confirmable, Code: CodeGET, MessageID: 41, Token: []byte{9}}
	first, err := srv.Serve(req)
	require.NoError(t, err)

	// the retransmission is answered from cache with the identical response
	again, err := srv.Serve(req)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, calls)

	st := srv.Stats()
	assert.Equal(t, uint64(2), st.Requests)
	assert.Equal(t, uint64(1), st.Responses)
	assert.Equal(t, uint64(1), st.Replays)

	// a fresh message id runs the handler again
	_, err = srv.Serve(&Message{Type: Confirmable, Code: CodeGET, MessageID: 42, Token: []byte{9}})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestServerDedupSkipsNonConfirmable(t *testing.T) {
	srv := NewServer("node")
	srv.UseDedup(NewExchangeCache(time.Minute))

	var calls int
	srv.Handle(CodePOST, func(req *Message) (*Message, error) {
		calls++
		return &Message{Type: Confirmable, Code: CodeChanged}, nil
	})

	req := &Message{Type: NonConfirmable, Code: CodePOST, MessageID: 5}
	for i := 0; i < 2; i++ {
		_, err := srv.Serve(req)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(0), srv.Stats().Replays)
}

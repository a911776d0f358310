// Package mbuf provides chained output buffers for outbound messages.
//
// A Chain carries one message: a reserved user-header region on the head
// segment holding routing metadata (the encoded endpoint record), followed
// by payload segments holding the wire bytes. The stack builds a chain,
// stamps the record, and hands ownership to exactly one transport; the
// transport must release the chain exactly once, on every path.
package mbuf

import "sync/atomic"

// Chain is an ordered sequence of payload segments plus a reserved
// user-header region on the head segment.
//
// The user header is metadata and is never part of the wire payload; the
// boundary between the two is this type, not a byte offset inside a segment.
// Release is not idempotent: releasing twice panics, as does any access
// after release.
type Chain struct {
	usrHdr   []byte
	segs     [][]byte
	released atomic.Int32
}

// New returns an empty chain with a user-header region of usrHdrLen bytes.
func New(usrHdrLen int) *Chain {
	if usrHdrLen < 0 {
		usrHdrLen = 0
	}
	return &Chain{usrHdr: make([]byte, usrHdrLen)}
}

// NewWithPayload returns a chain holding p as its single payload segment.
// p is not copied.
func NewWithPayload(usrHdrLen int, p []byte) *Chain {
	c := New(usrHdrLen)
	if len(p) > 0 {
		c.Append(p)
	}
	return c
}

// UserHeader returns the reserved header region of the head segment. Callers
// write the endpoint record into it in place.
func (c *Chain) UserHeader() []byte {
	c.check()
	return c.usrHdr
}

// SetUserHeader replaces the user-header region with a copy of rec.
func (c *Chain) SetUserHeader(rec []byte) {
	c.check()
	c.usrHdr = append([]byte(nil), rec...)
}

// Append adds one payload segment to the tail. p is not copied.
func (c *Chain) Append(p []byte) {
	c.check()
	c.segs = append(c.segs, p)
}

// Segments returns the payload segments in order.
func (c *Chain) Segments() [][]byte {
	c.check()
	return c.segs
}

// Len returns the total payload length in bytes. The user header does not
// count.
func (c *Chain) Len() int {
	c.check()
	n := 0
	for _, s := range c.segs {
		n += len(s)
	}
	return n
}

// Bytes returns the payload flattened into a single freshly allocated slice.
func (c *Chain) Bytes() []byte {
	out := make([]byte, 0, c.Len())
	for _, s := range c.segs {
		out = append(out, s...)
	}
	return out
}

// Release returns the chain to its owner. It must be called exactly once;
// a second call panics.
func (c *Chain) Release() {
	if c.released.Add(1) != 1 {
		panic("mbuf: chain released twice")
	}
	c.usrHdr = nil
	c.segs = nil
}

// Released reports whether Release has been called.
func (c *Chain) Released() bool {
	return c.released.Load() != 0
}

func (c *Chain) check() {
	if c.released.Load() != 0 {
		panic("mbuf: use of released chain")
	}
}

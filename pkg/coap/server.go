package coap

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// HandlerFunc handles one inbound request and returns the response, or nil
// for no reply.
type HandlerFunc func(*Message) (*Message, error)

// Server is the stack's server object. Transports bind to it at
// registration time and hand inbound requests to Serve.
type Server struct {
	name string

	mu       sync.RWMutex
	handlers map[Code]HandlerFunc
	fallback HandlerFunc
	dedup    *ExchangeCache

	requests  atomic.Uint64
	responses atomic.Uint64
	replays   atomic.Uint64
	failures  atomic.Uint64
}

// NewServer returns a server with no handlers.
func NewServer(name string) *Server {
	return &Server{name: name, handlers: make(map[Code]HandlerFunc)}
}

// Name returns the server's diagnostic name.
func (s *Server) Name() string { return s.name }

// Handle registers h for request code c, replacing any previous handler.
func (s *Server) Handle(c Code, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[c] = h
}

// HandleFallback registers the handler used for codes without one of their
// own.
func (s *Server) HandleFallback(h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = h
}

// UseDedup equips the server with an exchange cache. A retransmitted
// confirmable request is then answered with its original response and the
// handler runs only once per exchange.
func (s *Server) UseDedup(c *ExchangeCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dedup = c
}

// Serve dispatches req to its handler and completes the response: message id
// and token are taken from the request when the handler leaves them unset,
// and a response to a confirmable request is promoted to an acknowledgement.
func (s *Server) Serve(req *Message) (*Message, error) {
	if req == nil {
		return nil, errors.New("coap: nil request")
	}
	s.requests.Add(1)

	s.mu.RLock()
	cache := s.dedup
	h := s.handlers[req.Code]
	if h == nil {
		h = s.fallback
	}
	s.mu.RUnlock()

	if cache != nil && req.Type == Confirmable {
		if resp, ok := cache.Lookup(req); ok {
			s.replays.Add(1)
			return resp, nil
		}
	}
	if h == nil {
		s.failures.Add(1)
		return nil, fmt.Errorf("coap: no handler for %s", req.Code)
	}

	resp, err := h(req)
	if err != nil {
		s.failures.Add(1)
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	if resp.MessageID == 0 {
		resp.MessageID = req.MessageID
	}
	if len(resp.Token) == 0 {
		resp.Token = req.Token
	}
	if resp.Type == Confirmable {
		switch req.Type {
		case Confirmable:
			resp.Type = Acknowledgement
		case NonConfirmable:
			resp.Type = NonConfirmable
		}
	}
	if cache != nil && req.Type == Confirmable {
		cache.Store(req, resp)
	}
	s.responses.Add(1)
	return resp, nil
}

// ServerStats is a snapshot of dispatch counters.
type ServerStats struct {
	Requests  uint64
	Responses uint64
	Replays   uint64
	Failures  uint64
}

// Stats snapshots the server counters.
func (s *Server) Stats() ServerStats {
	return ServerStats{
		Requests:  s.requests.Load(),
		Responses: s.responses.Load(),
		Replays:   s.replays.Load(),
		Failures:  s.failures.Load(),
	}
}

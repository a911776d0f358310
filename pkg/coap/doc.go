// Package coap implements the host side of a small request/response
// messaging stack and the registry transports plug into.
//
// Key concepts:
//   - Message: one request or response, framed with a fixed 8-byte prologue
//   - Server: the process's server object; transports bind to it and feed
//     inbound requests to its handlers
//   - Transport: the capability surface a link binding registers (sizing,
//     connection queries, unicast delivery, endpoint formatting, lifecycle)
//   - Registry: allocates transport identities and routes outbound chains by
//     the tag byte leading every encoded endpoint record
//
// Concrete bindings live under pkg/transport; payload codecs under
// pkg/coap/codec.
package coap

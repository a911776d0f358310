// Package codec provides payload codecs keyed by content format.
//
// Codecs are deterministic and safe for cross-node exchange; the stack
// stamps the format number into the message prologue so the peer can pick
// the matching codec.
package codec

// Content format numbers carried in the message prologue. JSON and CBOR use
// the registered CoAP numbers; Proto sits in the private-use range.
const (
	FormatText   uint16 = 0
	FormatOctets uint16 = 42
	FormatJSON   uint16 = 50
	FormatCBOR   uint16 = 60
	FormatProto  uint16 = 65001
	FormatNone   uint16 = 0xffff
)

// Codec marshals typed payloads for one content format.
type Codec interface {
	Name() string
	ContentFormat() uint16
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps content format numbers and short names to codecs.
type Registry struct {
	byFormat map[uint16]Codec
	byName   map[string]Codec
}

// NewRegistry constructs a registry preloaded with the built-in codecs that
// need no initialization: JSON and Proto. CBOR is added explicitly via
// Register(CBOR()).
func NewRegistry() *Registry {
	r := &Registry{
		byFormat: make(map[uint16]Codec),
		byName:   make(map[string]Codec),
	}
	r.Register(JSON())
	r.Register(Proto())
	return r
}

// Register adds a codec under its format number and name.
func (r *Registry) Register(c Codec) {
	r.byFormat[c.ContentFormat()] = c
	r.byName[c.Name()] = c
}

// ByFormat returns the codec for a content format number.
func (r *Registry) ByFormat(f uint16) (Codec, bool) {
	c, ok := r.byFormat[f]
	return c, ok
}

// ByName returns the codec registered under a short name such as "json".
func (r *Registry) ByName(name string) (Codec, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Names returns the registered short names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

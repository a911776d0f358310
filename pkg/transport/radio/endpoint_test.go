package radio

import (
	"bytes"
	"net/netip"
	"testing"
)

func TestEndpointRoundtrip(t *testing.T) {
	ep := Endpoint{
		Tag:   3,
		Flags: 0x80,
		Host:  netip.MustParseAddr("192.168.1.20"),
		Port:  61616,
	}
	b, err := ep.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(b) != EncodedSize {
		t.Fatalf("encoded size = %d, want %d", len(b), EncodedSize)
	}
	got, err := DecodeEndpoint(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != ep {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", got, ep)
	}
}

func TestEndpointKnownVector(t *testing.T) {
	ep := Endpoint{Tag: 0, Flags: 0, Host: netip.MustParseAddr("10.0.0.5"), Port: 5683}
	b, err := ep.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := []byte{0x00, 0x00, 0x0a, 0x00, 0x00, 0x05, 0x33, 0x16}
	if !bytes.Equal(b, want) {
		t.Fatalf("encoded record = % x, want % x", b, want)
	}
	if s := ep.String(); s != "10.0.0.5:5683" {
		t.Fatalf("String() = %q", s)
	}
}

func TestEndpointDecodeShort(t *testing.T) {
	if _, err := DecodeEndpoint(make([]byte, EncodedSize-1)); err == nil {
		t.Fatal("expected error for short record")
	}
	if _, err := DecodeEndpoint(nil); err == nil {
		t.Fatal("expected error for empty record")
	}
}

func TestEndpointMarshalRejectsNonIPv4(t *testing.T) {
	cases := []Endpoint{
		{},
		{Host: netip.MustParseAddr("fe80::1"), Port: 5683},
	}
	for _, ep := range cases {
		if _, err := ep.MarshalBinary(); err == nil {
			t.Fatalf("expected error for host %v", ep.Host)
		}
	}
}

func TestEndpointSameAddress(t *testing.T) {
	a := Endpoint{Host: netip.MustParseAddr("10.0.0.5"), Port: 5683}
	b := Endpoint{Tag: 7, Flags: 1, Host: netip.MustParseAddr("10.0.0.5"), Port: 5683}
	if !a.SameAddress(b) {
		t.Fatal("tag and flags must not affect address equality")
	}
	if a.SameAddress(Endpoint{Host: netip.MustParseAddr("10.0.0.9"), Port: 5683}) {
		t.Fatal("different host reported equal")
	}
	if a.SameAddress(Endpoint{Host: netip.MustParseAddr("10.0.0.5"), Port: 5684}) {
		t.Fatal("different port reported equal")
	}
}

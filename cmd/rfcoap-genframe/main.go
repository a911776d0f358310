package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"rfcoap/pkg/coap"
	"rfcoap/pkg/coap/codec"
	"rfcoap/pkg/transport/radio"
)

func main() {
	outDir := flag.String("out", "testdata/frame", "output directory for binary frames")
	flag.Parse()
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	reg := codec.NewRegistry()
	reg.Register(codec.MustCBOR())

	// 1) JSON beacon frame
	payload, err := coap.EncodePayload(reg, codec.FormatJSON, map[string]any{"node": "node-1", "seq": 1})
	if err != nil {
		log.Fatal(err)
	}
	m := coap.Message{
		Type:          coap.NonConfirmable,
		Code:          coap.CodePOST,
		MessageID:     1,
		ContentFormat: codec.FormatJSON,
		Payload:       payload,
	}
	writeOut(*outDir, "frame_beacon_json.bin", mustFrame(&m))

	// 2) Same beacon encoded as CBOR
	payload, err = coap.EncodePayload(reg, codec.FormatCBOR, map[string]any{"node": "node-1", "seq": 1})
	if err != nil {
		log.Fatal(err)
	}
	m2 := m
	m2.MessageID = 2
	m2.ContentFormat = codec.FormatCBOR
	m2.Payload = payload
	writeOut(*outDir, "frame_beacon_cbor.bin", mustFrame(&m2))

	// 3) Tokened GET
	m3 := coap.Message{Type: coap.Confirmable, Code: coap.CodeGET, MessageID: 3, Token: []byte{0xde, 0xad}}
	writeOut(*outDir, "frame_get_token.bin", mustFrame(&m3))

	// 4) Empty reset frame
	m4 := coap.Message{Type: coap.Reset, Code: coap.CodeEmpty, MessageID: 4}
	writeOut(*outDir, "frame_reset_empty.bin", mustFrame(&m4))

	// 5) Endpoint record for tag 0 at 10.0.0.5:5683
	ep := radio.Endpoint{Tag: 0, Host: netip.AddrFrom4([4]byte{10, 0, 0, 5}), Port: 5683}
	rec, err := ep.MarshalBinary()
	if err != nil {
		log.Fatal(err)
	}
	writeOut(*outDir, "endpoint_radio0.bin", rec)

	fmt.Println("Generated frames in", *outDir)
}

func mustFrame(m *coap.Message) []byte {
	b, err := m.Encode()
	if err != nil {
		log.Fatal(err)
	}
	return b
}

func writeOut(dir, name string, b []byte) {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%-24s %5d bytes  head: %s\n", name, len(b), shortHex(b, 64))
}

func shortHex(b []byte, n int) string {
	if len(b) == 0 {
		return ""
	}
	if n > len(b) {
		n = len(b)
	}
	enc := hex.EncodeToString(b[:n])
	if len(b) > n {
		enc += "..."
	}
	var out []string
	for i := 0; i < len(enc); i += 4 {
		j := i + 4
		if j > len(enc) {
			j = len(enc)
		}
		out = append(out, enc[i:j])
	}
	return strings.Join(out, " ")
}

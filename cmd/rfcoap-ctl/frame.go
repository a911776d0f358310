package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"rfcoap/pkg/coap"
	"rfcoap/pkg/coap/codec"
)

var (
	frameType    string
	frameCode    string
	frameID      uint16
	frameToken   string
	frameFormat  string
	framePayload string
	frameOut     string
	frameIn      string
)

var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Build and dump message frames",
}

var frameBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build one message frame and print it as hex",
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, err := parseType(frameType)
		if err != nil {
			return err
		}
		code, err := parseCode(frameCode)
		if err != nil {
			return err
		}
		format, err := parseFormat(frameFormat)
		if err != nil {
			return err
		}
		var token []byte
		if frameToken != "" {
			if token, err = hex.DecodeString(frameToken); err != nil {
				return fmt.Errorf("invalid token hex: %w", err)
			}
		}

		m := &coap.Message{
			Type:          typ,
			Code:          code,
			MessageID:     frameID,
			ContentFormat: format,
			Token:         token,
			Payload:       []byte(framePayload),
		}
		wire, err := m.Encode()
		if err != nil {
			return err
		}
		if frameOut != "" {
			if err := os.WriteFile(frameOut, wire, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(wire), frameOut)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(wire))
		return nil
	},
}

var frameDumpCmd = &cobra.Command{
	Use:   "dump [hex]",
	Short: "Decode a message frame from hex or from a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var wire []byte
		var err error
		switch {
		case frameIn != "":
			if wire, err = os.ReadFile(frameIn); err != nil {
				return err
			}
		case len(args) == 1:
			if wire, err = hex.DecodeString(args[0]); err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}
		default:
			return fmt.Errorf("pass a hex frame or --in file")
		}

		m, err := coap.DecodeMessage(wire)
		if err != nil {
			return err
		}
		out := struct {
			Type          string
			Code          string
			MessageID     uint16
			ContentFormat uint16
			Token         string
			PayloadBytes  int
			Payload       string
		}{
			Type:          m.Type.String(),
			Code:          m.Code.String(),
			MessageID:     m.MessageID,
			ContentFormat: m.ContentFormat,
			Token:         hex.EncodeToString(m.Token),
			PayloadBytes:  len(m.Payload),
			Payload:       renderPayload(m.Payload),
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(out))
		return nil
	},
}

func parseType(s string) (coap.Type, error) {
	switch strings.ToLower(s) {
	case "con":
		return coap.Confirmable, nil
	case "non":
		return coap.NonConfirmable, nil
	case "ack":
		return coap.Acknowledgement, nil
	case "rst":
		return coap.Reset, nil
	}
	return 0, fmt.Errorf("unknown message type %q", s)
}

func parseCode(s string) (coap.Code, error) {
	switch strings.ToUpper(s) {
	case "EMPTY":
		return coap.CodeEmpty, nil
	case "GET":
		return coap.CodeGET, nil
	case "POST":
		return coap.CodePOST, nil
	case "PUT":
		return coap.CodePUT, nil
	case "DELETE":
		return coap.CodeDELETE, nil
	}
	// dotted form like 2.05
	if cl, dt, ok := strings.Cut(s, "."); ok {
		class, err1 := strconv.Atoi(cl)
		detail, err2 := strconv.Atoi(dt)
		if err1 == nil && err2 == nil && class >= 0 && class <= 7 && detail >= 0 && detail < 32 {
			return coap.Code(class<<5 | detail), nil
		}
	}
	return 0, fmt.Errorf("unknown code %q", s)
}

func parseFormat(s string) (uint16, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return codec.FormatText, nil
	case "octets":
		return codec.FormatOctets, nil
	case "json":
		return codec.FormatJSON, nil
	case "cbor":
		return codec.FormatCBOR, nil
	case "proto":
		return codec.FormatProto, nil
	case "none":
		return codec.FormatNone, nil
	}
	return 0, fmt.Errorf("unknown content format %q", s)
}

func renderPayload(p []byte) string {
	if len(p) == 0 {
		return ""
	}
	for _, r := range string(p) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return "0x" + hex.EncodeToString(p)
		}
	}
	return string(p)
}

func init() {
	frameBuildCmd.Flags().StringVar(&frameType, "type", "non", "message type: con, non, ack, rst")
	frameBuildCmd.Flags().StringVar(&frameCode, "code", "POST", "request method or dotted response code")
	frameBuildCmd.Flags().Uint16Var(&frameID, "id", 1, "message id")
	frameBuildCmd.Flags().StringVar(&frameToken, "token", "", "token as hex, up to 8 bytes")
	frameBuildCmd.Flags().StringVar(&frameFormat, "format", "text", "content format: text, octets, json, cbor, proto, none")
	frameBuildCmd.Flags().StringVar(&framePayload, "payload", "", "payload bytes, written as-is")
	frameBuildCmd.Flags().StringVar(&frameOut, "out", "", "write the frame to a file instead of stdout")
	frameDumpCmd.Flags().StringVar(&frameIn, "in", "", "read the frame from a file")
	frameCmd.AddCommand(frameBuildCmd)
	frameCmd.AddCommand(frameDumpCmd)
	rootCmd.AddCommand(frameCmd)
}

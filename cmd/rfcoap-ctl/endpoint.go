package main

import (
	"encoding/hex"
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"

	"rfcoap/pkg/coap"
	"rfcoap/pkg/transport/radio"
)

var (
	endpointTag   uint8
	endpointFlags uint8
)

var endpointCmd = &cobra.Command{
	Use:   "endpoint",
	Short: "Encode and decode radio endpoint records",
}

var endpointEncodeCmd = &cobra.Command{
	Use:   "encode <host:port>",
	Short: "Encode an IPv4 endpoint into its 8-byte record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ap, err := netip.ParseAddrPort(args[0])
		if err != nil {
			return fmt.Errorf("invalid endpoint: %w", err)
		}
		ep := radio.Endpoint{
			Tag:   coap.TransportID(endpointTag),
			Flags: endpointFlags,
			Host:  ap.Addr(),
			Port:  ap.Port(),
		}
		rec, err := ep.MarshalBinary()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(rec))
		return nil
	},
}

var endpointDecodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode an 8-byte record into its fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("invalid hex: %w", err)
		}
		ep, err := radio.DecodeEndpoint(rec)
		if err != nil {
			return err
		}
		out := struct {
			Tag     uint8
			Flags   uint8
			Address string
		}{uint8(ep.Tag), ep.Flags, ep.String()}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(out))
		return nil
	},
}

var endpointFormatCmd = &cobra.Command{
	Use:   "format <hex>",
	Short: "Render a record as host:port; never fails",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("invalid hex: %w", err)
		}
		ep, err := radio.DecodeEndpoint(rec)
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "radio:<invalid>")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), ep.String())
		return nil
	},
}

func init() {
	endpointEncodeCmd.Flags().Uint8Var(&endpointTag, "tag", 0, "transport identity tag")
	endpointEncodeCmd.Flags().Uint8Var(&endpointFlags, "flags", 0, "endpoint flags byte")
	endpointCmd.AddCommand(endpointEncodeCmd)
	endpointCmd.AddCommand(endpointDecodeCmd)
	endpointCmd.AddCommand(endpointFormatCmd)
	rootCmd.AddCommand(endpointCmd)
}

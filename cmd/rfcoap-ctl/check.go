package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"rfcoap/pkg/coap"
	"rfcoap/pkg/device"
	"rfcoap/pkg/transport/loop"
	"rfcoap/pkg/transport/radio"
)

// checkReport summarizes one in-process run of the registration and
// transmit path using the loaded configuration.
type checkReport struct {
	Device   string
	Identity uint8
	Endpoint string
	LoopCode string
	Frames   uint64
	Bytes    uint64
	Acquires uint64
	Releases uint64
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run an in-process check of the registration and transmit path",
	RunE: func(cmd *cobra.Command, args []string) error {
		devs := device.NewTable()
		if _, err := devs.Register(cfg.Device.Name, device.NewMemRadio(cfg.Device.MTU)); err != nil {
			return err
		}

		srv := coap.NewServer(cfg.AppName)
		srv.Handle(coap.CodeGET, func(req *coap.Message) (*coap.Message, error) {
			return &coap.Message{Type: coap.Confirmable, Code: coap.CodeContent, Payload: []byte("ok")}, nil
		})

		reg := coap.NewRegistry()
		host, err := cfg.Radio.Addr()
		if err != nil {
			return err
		}
		rt := radio.New(reg, devs, radio.Config{
			Device: cfg.Radio.Device,
			Host:   host,
			Port:   cfg.Radio.Port,
		})
		if err := rt.Register(srv); err != nil {
			return fmt.Errorf("radio registration: %w", err)
		}
		lt := loop.New(reg)
		if err := lt.Register(srv); err != nil {
			return fmt.Errorf("loop registration: %w", err)
		}
		defer reg.Shutdown()

		// one request through the loop binding
		lrec, ok := lt.Endpoint()
		if !ok {
			return errors.New("loop binding has no endpoint")
		}
		ch, err := coap.NewChain(lrec, &coap.Message{Type: coap.Confirmable, Code: coap.CodeGET, MessageID: 1})
		if err != nil {
			return err
		}
		if err := reg.Transmit(ch); err != nil {
			return fmt.Errorf("loopback transmit: %w", err)
		}

		// one probe over the radio binding to the node's own endpoint
		ep, ok := rt.ServerEndpoint()
		if !ok {
			return errors.New("radio binding has no server endpoint")
		}
		rec, err := ep.MarshalBinary()
		if err != nil {
			return err
		}
		probe := &coap.Message{Type: coap.NonConfirmable, Code: coap.CodePOST, MessageID: 2, Payload: []byte{1, 2, 3}}
		if ch, err = coap.NewChain(rec, probe); err != nil {
			return err
		}
		if err := reg.Transmit(ch); err != nil {
			return fmt.Errorf("radio transmit: %w", err)
		}

		id, _ := rt.Identity()
		rep := checkReport{
			Device:   cfg.Radio.Device,
			Identity: uint8(id),
			Endpoint: ep.String(),
		}
		if rs := lt.Responses(); len(rs) > 0 {
			rep.LoopCode = rs[len(rs)-1].Code.String()
		}
		if d, ok := devs.Lookup(cfg.Radio.Device); ok {
			st := d.Stats()
			rep.Frames = st.Frames
			rep.Bytes = st.Bytes
			rep.Acquires = st.Acquires
			rep.Releases = st.Releases
		}
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(rep))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/known/structpb"

	"rfcoap/pkg/coap"
	"rfcoap/pkg/coap/codec"
	"rfcoap/pkg/config"
	"rfcoap/pkg/device"
	"rfcoap/pkg/observability"
	"rfcoap/pkg/transport/loop"
	"rfcoap/pkg/transport/radio"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}
	if opts.Device != "" {
		cfg.Device.Name = opts.Device
		cfg.Radio.Device = opts.Device
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.NoBeacon {
		cfg.Beacon.Enable = false
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	// Startup logs + configuration dump
	zap.L().Info("rfcoap-node started", zap.String("app", cfg.AppName))
	zap.L().Info("effective configuration", zap.Any("config", cfg))

	// Link device table with the configured radio
	devs := device.NewTable()
	if _, err := devs.Register(cfg.Device.Name, device.NewMemRadio(cfg.Device.MTU)); err != nil {
		zap.L().Error("failed to register device", zap.Error(err))
		return 1
	}

	// Payload codecs
	codecs := codec.NewRegistry()
	codecs.Register(codec.MustCBOR())

	// Server object with the node's handlers and retransmission dedup
	srv := coap.NewServer(cfg.AppName)
	srv.UseDedup(coap.NewExchangeCache(0))
	srv.Handle(coap.CodeGET, statusHandler(cfg, devs, codecs))
	srv.Handle(coap.CodePOST, echoHandler())

	// Transport registry and bindings
	reg := coap.NewRegistry()

	host, err := cfg.Radio.Addr()
	if err != nil {
		zap.L().Error("invalid radio endpoint", zap.Error(err))
		return 1
	}
	rt := radio.New(reg, devs, radio.Config{
		Device: cfg.Radio.Device,
		Host:   host,
		Port:   cfg.Radio.Port,
	})
	if err := rt.Register(srv); err != nil {
		zap.L().Error("failed to register radio binding", zap.Error(err))
		return 1
	}
	lt := loop.New(reg)
	if err := lt.Register(srv); err != nil {
		zap.L().Error("failed to register loop binding", zap.Error(err))
		return 1
	}

	if err := reg.Init(); err != nil {
		zap.L().Error("transport init failed", zap.Error(err))
		return 1
	}
	defer reg.Shutdown()

	if err := selfCheck(reg, lt); err != nil {
		zap.L().Error("loopback self-check failed", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})
	if cfg.Beacon.Enable {
		g.Go(func() error { return beaconLoop(ctx, cfg, rt, reg, codecs) })
	}

	zap.L().Info("node is running; press Ctrl+C to exit")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Error("node stopped", zap.Error(err))
		return 1
	}
	zap.L().Info("node shut down")
	return 0
}

// selfCheck sends one GET through the loop binding and expects a response
// from the node's own server.
func selfCheck(reg *coap.Registry, lt *loop.Transport) error {
	rec, ok := lt.Endpoint()
	if !ok {
		return errors.New("loop binding not registered")
	}
	msg := &coap.Message{Type: coap.Confirmable, Code: coap.CodeGET, MessageID: 1, Token: []byte{0x5c}}
	ch, err := coap.NewChain(rec, msg)
	if err != nil {
		return err
	}
	if err := reg.Transmit(ch); err != nil {
		return err
	}
	rs := lt.Responses()
	if len(rs) == 0 {
		return errors.New("no response on loopback")
	}
	zap.L().Info("loopback self-check ok",
		zap.String("code", rs[len(rs)-1].Code.String()),
		zap.Int("payload_bytes", len(rs[len(rs)-1].Payload)))
	return nil
}

// beaconLoop periodically transmits a beacon to the node's own radio
// endpoint, exercising the outbound path end to end. Per-message failures
// are logged and the loop keeps going.
func beaconLoop(ctx context.Context, cfg *config.Config, rt *radio.Transport, reg *coap.Registry, codecs *codec.Registry) error {
	c, ok := codecs.ByName(cfg.Beacon.Format)
	if !ok {
		return fmt.Errorf("no codec %q", cfg.Beacon.Format)
	}
	ep, ok := rt.ServerEndpoint()
	if !ok {
		return errors.New("radio binding has no server endpoint")
	}
	rec, err := ep.MarshalBinary()
	if err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.Beacon.IntervalMS) * time.Millisecond)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		seq++

		body, err := beaconBody(cfg.Beacon.Format, cfg.NodeID, seq)
		if err != nil {
			zap.L().Warn("beacon body", zap.Error(err))
			continue
		}
		payload, err := c.Marshal(body)
		if err != nil {
			zap.L().Warn("beacon encode", zap.Error(err))
			continue
		}
		msg := &coap.Message{
			Type:          coap.NonConfirmable,
			Code:          coap.CodePOST,
			MessageID:     uint16(seq),
			ContentFormat: c.ContentFormat(),
			Payload:       payload,
		}
		ch, err := coap.NewChain(rec, msg)
		if err != nil {
			zap.L().Warn("beacon frame", zap.Error(err))
			continue
		}
		if err := reg.Transmit(ch); err != nil {
			zap.L().Warn("beacon transmit failed", zap.Uint64("seq", seq), zap.Error(err))
			continue
		}
		zap.L().Debug("beacon sent", zap.Uint64("seq", seq), zap.Int("bytes", len(payload)))
	}
}

func beaconBody(format, node string, seq uint64) (any, error) {
	m := map[string]any{"node": node, "seq": seq}
	if format == "proto" {
		return structpb.NewStruct(m)
	}
	return m, nil
}

// statusHandler answers GET with the node name and per-device counters.
func statusHandler(cfg *config.Config, devs *device.Table, codecs *codec.Registry) coap.HandlerFunc {
	return func(req *coap.Message) (*coap.Message, error) {
		devices := make(map[string]any)
		for _, name := range devs.Names() {
			d, ok := devs.Lookup(name)
			if !ok {
				continue
			}
			st := d.Stats()
			devices[name] = map[string]any{
				"frames": st.Frames,
				"bytes":  st.Bytes,
			}
		}
		body := map[string]any{"node": cfg.NodeID, "devices": devices}
		payload, err := coap.EncodePayload(codecs, codec.FormatJSON, body)
		if err != nil {
			return nil, err
		}
		return &coap.Message{
			Type:          coap.Confirmable,
			Code:          coap.CodeContent,
			ContentFormat: codec.FormatJSON,
			Payload:       payload,
		}, nil
	}
}

// echoHandler answers POST by echoing the request payload back.
func echoHandler() coap.HandlerFunc {
	return func(req *coap.Message) (*coap.Message, error) {
		return &coap.Message{
			Type:          coap.Confirmable,
			Code:          coap.CodeChanged,
			ContentFormat: req.ContentFormat,
			Payload:       req.Payload,
		}, nil
	}
}

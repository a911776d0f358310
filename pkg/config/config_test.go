package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rfcoap.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppName != "rfcoap-node" || cfg.NodeID != "node-1" {
		t.Fatalf("identity defaults: %q %q", cfg.AppName, cfg.NodeID)
	}
	if cfg.Device.Name != "radio0" || cfg.Device.MTU != 127 {
		t.Fatalf("device defaults: %+v", cfg.Device)
	}
	if cfg.Radio.Host != "10.0.0.5" || cfg.Radio.Port != 5683 {
		t.Fatalf("radio defaults: %+v", cfg.Radio)
	}
	// the binding inherits the device name when radio.device is empty
	if cfg.Radio.Device != "radio0" {
		t.Fatalf("radio.device = %q", cfg.Radio.Device)
	}
	if !cfg.Beacon.Enable || cfg.Beacon.IntervalMS != 5000 || cfg.Beacon.Format != "json" {
		t.Fatalf("beacon defaults: %+v", cfg.Beacon)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
node_id: field-7
device:
  name: sx1262
  mtu: 64
radio:
  host: 10.1.2.3
  port: 7700
beacon:
  enable: false
  format: CBOR
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NodeID != "field-7" {
		t.Fatalf("node_id = %q", cfg.NodeID)
	}
	if cfg.Device.Name != "sx1262" || cfg.Device.MTU != 64 {
		t.Fatalf("device: %+v", cfg.Device)
	}
	if cfg.Radio.Device != "sx1262" || cfg.Radio.Host != "10.1.2.3" || cfg.Radio.Port != 7700 {
		t.Fatalf("radio: %+v", cfg.Radio)
	}
	if cfg.Beacon.Enable || cfg.Beacon.Format != "cbor" {
		t.Fatalf("beacon: %+v", cfg.Beacon)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RFCOAP_LOG_LEVEL", "debug")
	t.Setenv("RFCOAP_RADIO_PORT", "9000")

	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log.level = %q", cfg.Log.Level)
	}
	if cfg.Radio.Port != 9000 {
		t.Fatalf("radio.port = %d", cfg.Radio.Port)
	}
}

func TestValidate(t *testing.T) {
	mutations := []struct {
		name string
		mut  func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"negative mtu", func(c *Config) { c.Device.MTU = -1 }},
		{"bad host", func(c *Config) { c.Radio.Host = "fe80::1" }},
		{"unparsable host", func(c *Config) { c.Radio.Host = "radio.local" }},
		{"zero port", func(c *Config) { c.Radio.Port = 0 }},
		{"bad beacon format", func(c *Config) { c.Beacon.Format = "xml" }},
		{"beacon without interval", func(c *Config) { c.Beacon.IntervalMS = 0 }},
	}
	for _, tc := range mutations {
		c := Default()
		tc.mut(c)
		if err := c.validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}

	c := Default()
	if err := c.validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestRadioAddr(t *testing.T) {
	a, err := (RadioConfig{Host: "10.0.0.5"}).Addr()
	if err != nil {
		t.Fatalf("Addr: %v", err)
	}
	if !a.Is4() || a.String() != "10.0.0.5" {
		t.Fatalf("Addr = %v", a)
	}
	if _, err := (RadioConfig{Host: "::1"}).Addr(); err == nil {
		t.Fatal("expected error for IPv6 host")
	}
	if _, err := (RadioConfig{Host: "nonsense"}).Addr(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMustLoadPanics(t *testing.T) {
	path := writeConfig(t, "log:\n  level: loud\n")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustLoad(path)
}

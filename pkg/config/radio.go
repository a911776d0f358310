package config

import (
	"fmt"
	"net/netip"
)

// RadioConfig configures the radio transport binding: which device it sends
// through and the node's own server endpoint on the radio network.
type RadioConfig struct {
	Device string `mapstructure:"device"` // device name; empty inherits device.name
	Host   string `mapstructure:"host"`   // IPv4 address, e.g. "10.0.0.5"
	Port   uint16 `mapstructure:"port"`
}

// Addr parses Host and requires an IPv4 address.
func (r RadioConfig) Addr() (netip.Addr, error) {
	a, err := netip.ParseAddr(r.Host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid radio.host: %w", err)
	}
	if !a.Is4() {
		return netip.Addr{}, fmt.Errorf("radio.host must be an IPv4 address: %q", r.Host)
	}
	return a, nil
}

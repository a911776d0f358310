package config

// BeaconConfig controls the periodic beacon the node sends to its own
// server endpoint as a transmit-path self check.
type BeaconConfig struct {
	Enable     bool   `mapstructure:"enable"`
	IntervalMS int    `mapstructure:"interval_ms"`
	Format     string `mapstructure:"format"` // json, cbor, or proto
}

package config

// DeviceConfig describes the radio device opened at startup.
type DeviceConfig struct {
	Name string `mapstructure:"name"` // e.g., radio0
	MTU  int    `mapstructure:"mtu"`  // max frame size in bytes; 0 means unlimited
}

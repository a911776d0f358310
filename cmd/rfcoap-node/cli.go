package main

import "flag"

// Options holds CLI options for the node.
type Options struct {
	ConfigPath string
	Device     string
	LogLevel   string
	NoBeacon   bool
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
	fs := flag.NewFlagSet("rfcoap-node", flag.ExitOnError)
	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
	fs.StringVar(&opts.Device, "device", "", "Override the radio device name")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Override the log level")
	fs.BoolVar(&opts.NoBeacon, "no-beacon", false, "Disable the periodic beacon")
	_ = fs.Parse(args)
	return opts
}

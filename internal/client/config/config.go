// Package config loads runtime configuration for the filevault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables (SERVER_ADDRESS).
//  3. Command-line flags, which override earlier values.
package config

import (
	"flag"
	"os"
)

// Config holds runtime settings for the filevault CLI.
// Args carries the positional arguments left after flag parsing, i.e. the
// command and its operands.
type Config struct {
	ServerAddr string
	Args       []string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "http://127.0.0.1:8080"
}

func parseEnv(c *Config) {
	if v, ok := os.LookupEnv("SERVER_ADDRESS"); ok {
		c.ServerAddr = v
	}
}

func parseFlags(c *Config) {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.StringVar(&c.ServerAddr, "a", c.ServerAddr, "base URL of the server")
	_ = fs.Parse(os.Args[1:])
	c.Args = fs.Args()
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment and command-line flags. Later sources take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

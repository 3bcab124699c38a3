// Package config loads runtime configuration for panelctl.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. PANELCTL_* and PANEL_* environment variables.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string     address:port of the panel gRPC endpoint
//	-t string     access token
//	-s string     secret key, only needed by the token command
//	-P string     archive passphrase, only needed by the unseal command
//	-T duration   per-call timeout
//
// Everything after the flags is the command and its arguments.
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "access_token": "eyJ...",
//	  "secret_key": "...",
//	  "archive_passphrase": "...",
//	  "timeout": "10s"
//	}
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds runtime settings for panelctl.
type Config struct {
	ServerEndpointAddr string        `validate:"required"`
	AccessToken        string
	SecretKey          string
	ArchivePassphrase  string
	Timeout            time.Duration `validate:"gt=0"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.AccessToken = ""
	c.SecretKey = ""
	c.ArchivePassphrase = ""
	c.Timeout = 10 * time.Second
}

// Load builds a Config from args and the environment. It returns the
// positional arguments left after the flags.
func Load(args []string, lookupEnv func(string) (string, bool)) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, nil, err
	}
	parseEnv(cfg, lookupEnv)
	rest, err := parseFlags(cfg, args)
	if err != nil {
		return nil, nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, rest, nil
}

// LoadConfig is Load over the process arguments and environment.
func LoadConfig() (*Config, []string, error) {
	return Load(os.Args[1:], os.LookupEnv)
}

func parseEnv(c *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if v, ok := lookup("PANELCTL_ADDR"); ok {
		c.ServerEndpointAddr = v
	}
	if v, ok := lookup("PANELCTL_TOKEN"); ok {
		c.AccessToken = v
	}
	if v, ok := lookup("PANEL_SECRET_KEY"); ok {
		c.SecretKey = v
	}
	if v, ok := lookup("PANEL_ARCHIVE_PASSPHRASE"); ok {
		c.ArchivePassphrase = v
	}
}

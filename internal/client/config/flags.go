package config

import (
	"flag"
	"io"
)

// parseFlags overlays flags onto cfg and returns the command words that
// follow them. -c/-config is accepted here too but only parseJson uses it.
func parseFlags(cfg *Config, args []string) ([]string, error) {
	fs := flag.NewFlagSet("panelctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var configPath string
	fs.StringVar(&configPath, "c", "", "config file")
	fs.StringVar(&configPath, "config", "", "config file")

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key for minting tokens")
	fs.StringVar(&cfg.ArchivePassphrase, "P", cfg.ArchivePassphrase, "archive passphrase")
	fs.DurationVar(&cfg.Timeout, "T", cfg.Timeout, "per-call timeout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

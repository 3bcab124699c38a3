package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/boleyla/panel/internal/flagx"
	"github.com/boleyla/panel/internal/timex"
)

// JsonConfig is the on-disk shape of the panelctl config file.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	AccessToken        string         `json:"access_token"`
	SecretKey          string         `json:"secret_key"`
	ArchivePassphrase  string         `json:"archive_passphrase"`
	Timeout            timex.Duration `json:"timeout"`
}

// parseJson overlays the file named by -c/-config. Keys absent from the
// file keep their current value.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	jc := JsonConfig{
		ServerEndpointAddr: cfg.ServerEndpointAddr,
		AccessToken:        cfg.AccessToken,
		SecretKey:          cfg.SecretKey,
		ArchivePassphrase:  cfg.ArchivePassphrase,
		Timeout:            timex.Duration{Duration: cfg.Timeout},
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	cfg.AccessToken = jc.AccessToken
	cfg.SecretKey = jc.SecretKey
	cfg.ArchivePassphrase = jc.ArchivePassphrase
	cfg.Timeout = jc.Timeout.Duration
	return nil
}

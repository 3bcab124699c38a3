package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/boleyla/panel/internal/flagx"
	"github.com/boleyla/panel/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// "10s" strings and integer nanoseconds. Keys absent from the file keep the
// value the Config already had.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`

	XrayTemplatePath string         `json:"xray_template_path"`
	XrayOutputDir    string         `json:"xray_output_dir"`
	XrayBasePort     int            `json:"xray_base_port"`
	SyncWorkers      int            `json:"sync_workers"`
	RenderTimeout    timex.Duration `json:"render_timeout"`
	WriteTimeout     timex.Duration `json:"write_timeout"`
	SyncSchedule     string         `json:"sync_schedule"`
	SyncOnStart      bool           `json:"sync_on_start"`

	ArchiveEnabled       bool   `json:"archive_enabled"`
	ArchiveRetentionDays int    `json:"archive_retention_days"`
	ArchivePassphrase    string `json:"archive_passphrase"`
	S3RootUser           string `json:"s3_root_user"`
	S3RootPassword       string `json:"s3_root_password"`
	S3Bucket             string `json:"s3_bucket"`
	S3Region             string `json:"s3_region"`
	S3BaseEndpoint       string `json:"s3_base_endpoint"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrGRPC:            c.EndpointAddrGRPC,
		EndpointAddrHTTP:            c.EndpointAddrHTTP,
		DatabaseDSN:                 c.DatabaseDSN,
		SecretKey:                   c.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: c.AccessTokenValidityDuration},
		XrayTemplatePath:            c.XrayTemplatePath,
		XrayOutputDir:               c.XrayOutputDir,
		XrayBasePort:                c.XrayBasePort,
		SyncWorkers:                 c.SyncWorkers,
		RenderTimeout:               timex.Duration{Duration: c.RenderTimeout},
		WriteTimeout:                timex.Duration{Duration: c.WriteTimeout},
		SyncSchedule:                c.SyncSchedule,
		SyncOnStart:                 c.SyncOnStart,
		ArchiveEnabled:              c.ArchiveEnabled,
		ArchiveRetentionDays:        c.ArchiveRetentionDays,
		ArchivePassphrase:           c.ArchivePassphrase,
		S3RootUser:                  c.S3RootUser,
		S3RootPassword:              c.S3RootPassword,
		S3Bucket:                    c.S3Bucket,
		S3Region:                    c.S3Region,
		S3BaseEndpoint:              c.S3BaseEndpoint,
		LogLevel:                    c.LogLevel,
		LogFile:                     c.LogFile,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.XrayTemplatePath = j.XrayTemplatePath
	c.XrayOutputDir = j.XrayOutputDir
	c.XrayBasePort = j.XrayBasePort
	c.SyncWorkers = j.SyncWorkers
	c.RenderTimeout = j.RenderTimeout.Duration
	c.WriteTimeout = j.WriteTimeout.Duration
	c.SyncSchedule = j.SyncSchedule
	c.SyncOnStart = j.SyncOnStart
	c.ArchiveEnabled = j.ArchiveEnabled
	c.ArchiveRetentionDays = j.ArchiveRetentionDays
	c.ArchivePassphrase = j.ArchivePassphrase
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.LogLevel = j.LogLevel
	c.LogFile = j.LogFile
}

// parseJson overlays the file named by -c/-config onto config. No flag means
// nothing to load.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

package config

import (
	"fmt"
	"strconv"
	"time"
)

// parseEnv overlays PANEL_* variables. Only variables that are set are applied.
func parseEnv(c *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}

	str := map[string]*string{
		"PANEL_GRPC_ADDR":          &c.EndpointAddrGRPC,
		"PANEL_HTTP_ADDR":          &c.EndpointAddrHTTP,
		"PANEL_DATABASE_DSN":       &c.DatabaseDSN,
		"PANEL_SECRET_KEY":         &c.SecretKey,
		"PANEL_XRAY_TEMPLATE":      &c.XrayTemplatePath,
		"PANEL_XRAY_OUTPUT_DIR":    &c.XrayOutputDir,
		"PANEL_SYNC_SCHEDULE":      &c.SyncSchedule,
		"PANEL_ARCHIVE_PASSPHRASE": &c.ArchivePassphrase,
		"PANEL_S3_ROOT_USER":       &c.S3RootUser,
		"PANEL_S3_ROOT_PASSWORD":   &c.S3RootPassword,
		"PANEL_S3_BUCKET":          &c.S3Bucket,
		"PANEL_S3_REGION":          &c.S3Region,
		"PANEL_S3_BASE_ENDPOINT":   &c.S3BaseEndpoint,
		"PANEL_LOG_LEVEL":          &c.LogLevel,
		"PANEL_LOG_FILE":           &c.LogFile,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PANEL_SYNC_WORKERS":           &c.SyncWorkers,
		"PANEL_XRAY_BASE_PORT":         &c.XrayBasePort,
		"PANEL_ARCHIVE_RETENTION_DAYS": &c.ArchiveRetentionDays,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"PANEL_TOKEN_TTL":      &c.AccessTokenValidityDuration,
		"PANEL_RENDER_TIMEOUT": &c.RenderTimeout,
		"PANEL_WRITE_TIMEOUT":  &c.WriteTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"PANEL_SYNC_ON_START":   &c.SyncOnStart,
		"PANEL_ARCHIVE_ENABLED": &c.ArchiveEnabled,
	}
	for key, dst := range bools {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	return nil
}

package config

import (
	"flag"
	"io"

	"github.com/boleyla/panel/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     gRPC bind address (e.g. ":50051")
//	-m string     HTTP health/metrics bind address
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret key
//	-t duration   access token validity
//	-T string     xray template path
//	-o string     xray output directory
//	-p int        first inbound port
//	-w int        sync workers
//	-S string     cron schedule for periodic sync
//	-l string     log level
//	-L string     log file
//	-k bool       archive published artifacts to S3
//	-K int        archive retention, days
//	-P string     passphrase sealing archived artifacts
//	-b string     S3 bucket name
//	-e string     S3 base endpoint
//
// Only these flags are looked at; anything else on the command line is left
// for other components.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-m", "-d", "-s", "-t", "-T", "-o", "-p", "-w", "-S", "-l", "-L", "-k", "-K", "-P", "-b", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run the gRPC API")
	fs.StringVar(&config.EndpointAddrHTTP, "m", config.EndpointAddrHTTP, "address and port for health and metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")

	fs.StringVar(&config.XrayTemplatePath, "T", config.XrayTemplatePath, "xray template path")
	fs.StringVar(&config.XrayOutputDir, "o", config.XrayOutputDir, "xray output directory")
	fs.IntVar(&config.XrayBasePort, "p", config.XrayBasePort, "first inbound port")
	fs.IntVar(&config.SyncWorkers, "w", config.SyncWorkers, "sync render workers")
	fs.StringVar(&config.SyncSchedule, "S", config.SyncSchedule, "cron schedule for periodic sync")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.LogFile, "L", config.LogFile, "log file")

	fs.BoolVar(&config.ArchiveEnabled, "k", config.ArchiveEnabled, "archive artifacts to S3")
	fs.IntVar(&config.ArchiveRetentionDays, "K", config.ArchiveRetentionDays, "archive retention (days)")
	fs.StringVar(&config.ArchivePassphrase, "P", config.ArchivePassphrase, "archive passphrase")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	return fs.Parse(args)
}

// Package archive keeps off-host copies of published artifacts in an
// S3-compatible bucket and prunes copies past their retention.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/boleyla/panel/internal/cryptox"
	"github.com/boleyla/panel/internal/logging"
	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
)

const (
	keyPrefix     = "artifacts/"
	sealedSuffix  = ".enc"
	pruneInterval = 24 * time.Hour
)

// Test seams.
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
)

// API is the part of the S3 client the uploader uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Options struct {
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	BaseEndpoint  string
	RetentionDays int
	// Passphrase, when set, seals every copy with cryptox before upload.
	Passphrase []byte

	// MaxAttempts bounds upload attempts; zero means 3.
	MaxAttempts int
	// InitialInterval is the first retry delay; zero means 500ms.
	InitialInterval time.Duration
}

type Uploader struct {
	api    API
	opts   Options
	clock  quartz.Clock
	logger logging.Logger

	mu        sync.Mutex
	lastPrune time.Time
}

// NewUploader builds an S3 client with static credentials. Path-style
// addressing is used so MinIO and similar servers work without DNS setup.
func NewUploader(ctx context.Context, opts Options, clock quartz.Clock, l logging.Logger) (*Uploader, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})
	return newUploader(client, opts, clock, l), nil
}

func newUploader(api API, opts Options, clock quartz.Clock, l logging.Logger) *Uploader {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	return &Uploader{
		api:    api,
		opts:   opts,
		clock:  clock,
		logger: l.With("module", "archive"),
	}
}

// Key is the object key of the artifact of run runID started at at.
func Key(runID string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s.json", keyPrefix, at.Year(), at.Month(), at.Day(), runID)
}

func (u *Uploader) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.opts.InitialInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(u.opts.MaxAttempts-1)), ctx)
}

// Archive uploads data and returns its key. Failed uploads are retried with
// exponential backoff. At most once a day a successful upload is followed by
// a prune; prune errors are only logged.
func (u *Uploader) Archive(ctx context.Context, runID string, at time.Time, data []byte) (string, error) {
	key := Key(runID, at)
	contentType := "application/json"
	if len(u.opts.Passphrase) > 0 {
		sealed, err := cryptox.Seal(data, u.opts.Passphrase)
		if err != nil {
			return "", fmt.Errorf("seal %s: %w", key, err)
		}
		data, key, contentType = sealed, key+sealedSuffix, "application/octet-stream"
	}

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		_, err := u.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.opts.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			u.logger.Debug(ctx, "upload attempt failed", "key", key, "attempt", attempt, "error", err)
		}
		return err
	}, u.retryPolicy(ctx))
	if err != nil {
		return "", fmt.Errorf("put %s after %d attempts: %w", key, attempt, err)
	}

	u.logger.Info(ctx, "artifact archived", "key", key, "size", humanize.Bytes(uint64(len(data))))

	if u.pruneDue() {
		if n, err := u.Prune(ctx); err != nil {
			u.logger.Warn(ctx, "prune failed", "deleted", n, "error", err)
		}
	}
	return key, nil
}

func (u *Uploader) pruneDue() bool {
	if u.opts.RetentionDays <= 0 {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	now := u.clock.Now()
	if !u.lastPrune.IsZero() && now.Sub(u.lastPrune) < pruneInterval {
		return false
	}
	u.lastPrune = now
	return true
}

// Prune deletes archived artifacts last modified more than RetentionDays ago
// and returns how many were deleted. Every object is attempted; the errors
// are combined.
func (u *Uploader) Prune(ctx context.Context) (int, error) {
	if u.opts.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := u.clock.Now().Add(-time.Duration(u.opts.RetentionDays) * 24 * time.Hour)

	var (
		deleted int
		errs    *multierror.Error
	)
	p := s3.NewListObjectsV2Paginator(u.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(u.opts.Bucket),
		Prefix: aws.String(keyPrefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("list: %w", err))
			break
		}
		for _, obj := range page.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			_, err := u.api.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(u.opts.Bucket),
				Key:    obj.Key,
			})
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("delete %s: %w", aws.ToString(obj.Key), err))
				continue
			}
			deleted++
		}
	}

	if deleted > 0 {
		u.logger.Info(ctx, "archive pruned", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, errs.ErrorOrNil()
}

// Package downloads issues short-lived download links for product artifacts
// stored in S3-compatible object storage.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ErrNoArtifact is returned when the product has no downloadable object.
var ErrNoArtifact = errors.New("no artifact for product")

// Config holds object storage configuration. Supports AWS S3, MinIO,
// Wasabi, and other S3-compatible services.
type Config struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	URLTTL          time.Duration
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("downloads: bucket is required")
	}
	if c.AccessKeyID == "" {
		return errors.New("downloads: access_key_id is required")
	}
	if c.SecretAccessKey == "" {
		return errors.New("downloads: secret_access_key is required")
	}
	return nil
}

// Service presigns GET URLs for stored artifacts.
type Service struct {
	cfg     Config
	presign *s3.PresignClient
	logger  zerolog.Logger
}

// NewService creates a download service.
func NewService(ctx context.Context, cfg Config, logger zerolog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("downloads: load aws config: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		endpoint := cfg.Endpoint
		if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
			endpoint = u.Host
		}
		endpointURL := fmt.Sprintf("%s://%s", scheme, endpoint)
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	cfg.URLTTL = ttl

	return &Service{
		cfg:     cfg,
		presign: s3.NewPresignClient(client),
		logger:  logger.With().Str("component", "downloads").Logger(),
	}, nil
}

// PresignDownload returns a time-limited GET URL for the given object key.
func (s *Service) PresignDownload(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", ErrNoArtifact
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(s.cfg.URLTTL))
	if err != nil {
		return "", fmt.Errorf("downloads: presign object %s: %w", objectKey, err)
	}

	s.logger.Debug().Str("object_key", objectKey).Msg("download url presigned")
	return req.URL, nil
}

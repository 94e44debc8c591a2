package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/fotofair/fotofair-api/internal/domain/finaudit"
)

// Config holds the S3 (or MinIO) settings for the audit archive.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// AuditArchive writes finished audit reports to an S3 bucket under
// finance-audit/<timestamp>.json. A nil archive is valid and inert.
type AuditArchive struct {
	client *s3.Client
	bucket string
}

// NewAuditArchive builds the archive, or returns nil when no bucket is
// configured.
func NewAuditArchive(cfg Config) (*AuditArchive, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
				SigningRegion:     cfg.Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for MinIO
	})

	return &AuditArchive{client: client, bucket: cfg.Bucket}, nil
}

// Archive uploads the report and returns the object key.
func (a *AuditArchive) Archive(ctx context.Context, report *finaudit.Report) (string, error) {
	if a == nil {
		return "", nil
	}

	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal audit report: %w", err)
	}

	key := fmt.Sprintf("finance-audit/%s.json", report.GeneratedAt.UTC().Format("2006-01-02T15-04-05Z"))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Info().Str("key", key).Int("bytes", len(body)).Msg("audit report archived")
	return key, nil
}

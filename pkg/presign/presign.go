// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

// Package presign mints upload descriptors locally against an S3-compatible
// store, for deployments that hold their own credentials instead of calling
// a backend init endpoint.
package presign

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/sundryfs/uplift/pkg/descriptor"
	"github.com/sundryfs/uplift/pkg/logger"
	"github.com/sundryfs/uplift/pkg/upload"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultExpiry is how long a minted URL stays valid.
const DefaultExpiry = 15 * time.Minute

// Config holds configuration for connecting to an S3-compatible store.
type Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	Prefix          string        `mapstructure:"prefix"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	PathStyle       bool          `mapstructure:"path_style"`
	Expiry          time.Duration `mapstructure:"expiry"`
}

func (c Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("presign: bucket is required")
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return errors.New("presign: credentials are required")
	}
	return nil
}

// Signer mints presigned PUT descriptors. It implements the same contract as
// the backend init client, so the orchestrator cannot tell them apart.
type Signer struct {
	cfg     Config
	presign *s3.PresignClient
}

var _ upload.Initializer = (*Signer)(nil)

// NewSigner builds a Signer from static credentials. No network calls are
// made here or during Init; signing is purely local.
func NewSigner(ctx context.Context, cfg Config) (*Signer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultExpiry
	}

	staticCreds := credentials.NewStaticCredentialsProvider(
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		"",
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(staticCreds),
	)
	if err != nil {
		return nil, fmt.Errorf("presign: load aws config: %w", err)
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.PathStyle
		},
	}
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := s3.NewFromConfig(awsCfg, opts...)
	return &Signer{
		cfg:     cfg,
		presign: s3.NewPresignClient(client),
	}, nil
}

// Init mints a PUT descriptor for the file under the configured bucket and
// prefix.
func (s *Signer) Init(ctx context.Context, file *descriptor.FileRef) (*descriptor.Descriptor, error) {
	key := file.Name
	if s.cfg.Prefix != "" {
		key = path.Join(s.cfg.Prefix, file.Name)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		ContentLength: aws.Int64(file.Size),
	}
	if file.ContentType != "" {
		input.ContentType = aws.String(file.ContentType)
	}

	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(s.cfg.Expiry))
	if err != nil {
		return nil, fmt.Errorf("presign: sign put for %q: %w", key, err)
	}

	headers := make(map[string]string, len(req.SignedHeader))
	for name, values := range req.SignedHeader {
		if name == "Host" || len(values) == 0 {
			continue
		}
		headers[name] = values[0]
	}

	logger.Ctx(ctx).Debug().
		Str("bucket", s.cfg.Bucket).
		Str("key", key).
		Dur("expiry", s.cfg.Expiry).
		Msg("presign: minted put descriptor")

	return &descriptor.Descriptor{
		Kind:      descriptor.KindPut,
		URL:       req.URL,
		Key:       key,
		Headers:   headers,
		ExpiresAt: time.Now().Add(s.cfg.Expiry),
	}, nil
}

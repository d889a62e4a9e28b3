// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/planb-backup/planb/internal/objsyncconf"
)

// NewS3Client builds an S3 client for sec, honoring a custom endpoint
// (e.g. a non-AWS S3-compatible store) and path-style addressing, which
// most S3-compatible object stores outside AWS itself require.
func NewS3Client(ctx context.Context, sec *objsyncconf.Section) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(sec.Region),
	}
	if sec.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sec.AccessKey, sec.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("objsync: load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if sec.Endpoint != "" {
			scheme := "https"
			if !sec.UseSSL {
				scheme = "http"
			}
			o.BaseEndpoint = aws.String(scheme + "://" + sec.Endpoint)
		}
	}), nil
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

// Package connection builds the AWS handles the launcher talks to. It only creates
// clients; every call made through them lives in storage and cluster.
package connection

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsv2config "github.com/aws/aws-sdk-go-v2/config"
	awsv2Creds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/emr"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/featureform/emrlauncher/config"
	"github.com/featureform/emrlauncher/fferr"
)

// Service names recorded on connection and execution errors.
const (
	AWSService = "AWS"
	S3Service  = "S3"
	EMRService = "EMR"
)

// loadDefaultConfig is swapped in tests.
var loadDefaultConfig = awsv2config.LoadDefaultConfig

// NewAWSConfig resolves region and credentials through the SDK default chain. Static
// credentials are only used when both the key id and secret are configured.
func NewAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	return loadDefaultConfig(ctx, loadOptions(cfg)...)
}

func loadOptions(cfg config.AWSConfig) []func(*awsv2config.LoadOptions) error {
	var opts []func(*awsv2config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsv2config.WithRegion(cfg.Region))
	}
	if cfg.UseStaticCredentials() {
		opts = append(opts, awsv2config.WithCredentialsProvider(awsv2Creds.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	return opts
}

type Connection struct {
	cfg aws.Config
}

func NewConnection(ctx context.Context, cfg config.AWSConfig) (*Connection, error) {
	awsCfg, err := NewAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fferr.NewConnectionError(AWSService, err)
	}
	return &Connection{cfg: awsCfg}, nil
}

// FromAWSConfig wraps an already loaded aws.Config.
func FromAWSConfig(cfg aws.Config) *Connection {
	return &Connection{cfg: cfg}
}

func (c *Connection) AWSConfig() aws.Config {
	return c.cfg
}

func (c *Connection) S3() *s3.Client {
	return s3.NewFromConfig(c.cfg)
}

func (c *Connection) EMR() *emr.Client {
	return emr.NewFromConfig(c.cfg)
}

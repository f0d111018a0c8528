// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package config

import (
	"time"

	"github.com/featureform/emrlauncher/fferr"
	"github.com/featureform/emrlauncher/filestore"
	"github.com/featureform/emrlauncher/helpers"
)

// Env names read by Get. The lower-case ones are the names the function was deployed with.
const (
	ExecEnvironmentEnv  = "exec_environment"
	ETLFilePathEnv      = "etl_file_path"
	ManifestFilePathEnv = "manifest_file_path"
	ManifestFileEnv     = "manifest_file"
	LogURIEnv           = "log_uri"

	RegionEnv              = "AWS_REGION"
	AccessKeyIDEnv         = "AWS_ACCESS_KEY_ID"
	SecretAccessKeyEnv     = "AWS_SECRET_ACCESS_KEY"
	ReleaseLabelEnv        = "EMR_RELEASE_LABEL"
	EC2KeyNameEnv          = "EMR_EC2_KEY_NAME"
	SubnetIDEnv            = "EMR_SUBNET_ID"
	JobFlowRoleEnv         = "EMR_JOB_FLOW_ROLE"
	ServiceRoleEnv         = "EMR_SERVICE_ROLE"
	ResizeWaitEnv          = "EMR_RESIZE_WAIT"
	ResizeDelayEnv         = "EMR_RESIZE_DELAY"
	ResizePollIntervalEnv  = "EMR_RESIZE_POLL_INTERVAL"
	ResizePollTimeoutEnv   = "EMR_RESIZE_POLL_TIMEOUT"
	PushgatewayURLEnv      = "METRICS_PUSHGATEWAY_URL"
	ProductionLoggingEnv   = "LOG_JSON"
	DefaultReleaseLabel    = "emr-5.9.0"
	DefaultEC2KeyName      = "dadl"
	DefaultSubnetID        = "subnet-cb098f93"
	DefaultJobFlowRole     = "EMR_EC2_DefaultRole"
	DefaultServiceRole     = "EMR_DefaultRole"
	DefaultResizeDelay     = 10 * time.Second
	DefaultPollInterval    = 15 * time.Second
	DefaultPollTimeout     = 10 * time.Minute
	DefaultDeployMode      = "cluster"
	DefaultActionOnFailure = "CONTINUE"
)

type ResizeWaitStrategy string

const (
	// ResizeWaitDelay sleeps a fixed amount after a resize request. The step may be
	// submitted before the new nodes are running.
	ResizeWaitDelay ResizeWaitStrategy = "delay"
	// ResizeWaitPoll polls the instance group until its running count reaches the target.
	ResizeWaitPoll ResizeWaitStrategy = "poll"
)

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// UseStaticCredentials is true only when both halves of a key pair are present; otherwise
// the SDK default credential chain is used.
func (c AWSConfig) UseStaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// ClusterConfig holds the deployment-specific constants of the one cluster shape we launch.
type ClusterConfig struct {
	ReleaseLabel string
	EC2KeyName   string
	SubnetID     string
	JobFlowRole  string
	ServiceRole  string
	LogURI       string
	ResizeWait   ResizeWaitStrategy
	ResizeDelay  time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type LauncherConfig struct {
	ExecEnvironment  string
	ETLFilePath      string
	ManifestFilePath string
	ManifestFile     string
	PushgatewayURL   string
	JSONLogging      bool
	AWS              AWSConfig
	Cluster          ClusterConfig
}

// Get reads the launcher configuration from the environment.
func Get() (*LauncherConfig, error) {
	required := map[string]string{}
	for _, env := range []string{ExecEnvironmentEnv, ETLFilePathEnv, ManifestFilePathEnv, ManifestFileEnv, LogURIEnv} {
		val, has := helpers.LookupEnv(env)
		if !has || val == "" {
			return nil, fferr.NewMissingConfigEnv(env)
		}
		required[env] = val
	}
	logURI, err := filestore.ParseS3Filepath(required[LogURIEnv])
	if err != nil {
		return nil, fferr.NewInvalidConfigf("Env %s must be an s3:// URI: %v", LogURIEnv, err)
	}
	if logURI.Scheme() != filestore.S3Prefix {
		return nil, fferr.NewInvalidConfigf("Env %s must be an s3:// URI, got scheme %s", LogURIEnv, logURI.Scheme())
	}

	wait := ResizeWaitStrategy(helpers.GetEnv(ResizeWaitEnv, string(ResizeWaitDelay)))
	if wait != ResizeWaitDelay && wait != ResizeWaitPoll {
		return nil, fferr.NewInvalidConfigEnv(ResizeWaitEnv, wait, []ResizeWaitStrategy{ResizeWaitDelay, ResizeWaitPoll})
	}

	durations := map[string]time.Duration{
		ResizeDelayEnv:        helpers.GetEnvDuration(ResizeDelayEnv, DefaultResizeDelay),
		ResizePollIntervalEnv: helpers.GetEnvDuration(ResizePollIntervalEnv, DefaultPollInterval),
		ResizePollTimeoutEnv:  helpers.GetEnvDuration(ResizePollTimeoutEnv, DefaultPollTimeout),
	}
	for env, d := range durations {
		if d <= 0 {
			return nil, fferr.NewInvalidConfigEnv(env, d, "a positive duration")
		}
	}

	return &LauncherConfig{
		ExecEnvironment:  required[ExecEnvironmentEnv],
		ETLFilePath:      required[ETLFilePathEnv],
		ManifestFilePath: required[ManifestFilePathEnv],
		ManifestFile:     required[ManifestFileEnv],
		PushgatewayURL:   helpers.GetEnv(PushgatewayURLEnv, ""),
		JSONLogging:      helpers.GetEnvBool(ProductionLoggingEnv, false),
		AWS:              GetAWSConfig(),
		Cluster: ClusterConfig{
			ReleaseLabel: helpers.GetEnv(ReleaseLabelEnv, DefaultReleaseLabel),
			EC2KeyName:   helpers.GetEnv(EC2KeyNameEnv, DefaultEC2KeyName),
			SubnetID:     helpers.GetEnv(SubnetIDEnv, DefaultSubnetID),
			JobFlowRole:  helpers.GetEnv(JobFlowRoleEnv, DefaultJobFlowRole),
			ServiceRole:  helpers.GetEnv(ServiceRoleEnv, DefaultServiceRole),
			LogURI:       required[LogURIEnv],
			ResizeWait:   wait,
			ResizeDelay:  durations[ResizeDelayEnv],
			PollInterval: durations[ResizePollIntervalEnv],
			PollTimeout:  durations[ResizePollTimeoutEnv],
		},
	}, nil
}

// GetAWSConfig reads only the AWS connection settings; none of them are required.
func GetAWSConfig() AWSConfig {
	return AWSConfig{
		Region:          helpers.GetEnv(RegionEnv, ""),
		AccessKeyID:     helpers.GetEnv(AccessKeyIDEnv, ""),
		SecretAccessKey: helpers.GetEnv(SecretAccessKeyEnv, ""),
	}
}

// DefaultClusterConfig is the cluster shape with every deployment constant at its default.
func DefaultClusterConfig(logURI string) ClusterConfig {
	return ClusterConfig{
		ReleaseLabel: DefaultReleaseLabel,
		EC2KeyName:   DefaultEC2KeyName,
		SubnetID:     DefaultSubnetID,
		JobFlowRole:  DefaultJobFlowRole,
		ServiceRole:  DefaultServiceRole,
		LogURI:       logURI,
		ResizeWait:   ResizeWaitDelay,
		ResizeDelay:  DefaultResizeDelay,
		PollInterval: DefaultPollInterval,
		PollTimeout:  DefaultPollTimeout,
	}
}

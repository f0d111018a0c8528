// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package launcher

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"
	"github.com/jonboulle/clockwork"

	"github.com/featureform/emrlauncher/cluster"
	"github.com/featureform/emrlauncher/config"
	"github.com/featureform/emrlauncher/connection"
	"github.com/featureform/emrlauncher/fferr"
	"github.com/featureform/emrlauncher/filestore"
	"github.com/featureform/emrlauncher/logging"
	"github.com/featureform/emrlauncher/manifest"
	"github.com/featureform/emrlauncher/metrics"
	"github.com/featureform/emrlauncher/storage"
)

const metricsName = "emrlauncher"

type Config struct {
	Environment      string
	ETLFilePath      string
	ManifestFilePath string
	ManifestFile     string
	Storage          *storage.Transfer
	Orchestrator     *cluster.Orchestrator
	Metrics          metrics.MetricsHandler
	Logger           logging.Logger
	Clock            clockwork.Clock
}

// Launcher turns a manifest upload into a rendered ETL script running on EMR.
type Launcher struct {
	environment      string
	etlFilePath      string
	manifestFilePath string
	manifestFile     string
	storage          *storage.Transfer
	parser           *manifest.Parser
	orchestrator     *cluster.Orchestrator
	metrics          metrics.MetricsHandler
	logger           logging.Logger
}

func New(cfg Config) (*Launcher, error) {
	if cfg.Storage == nil || cfg.Orchestrator == nil {
		return nil, fferr.NewInternalErrorf("launcher requires storage and a cluster orchestrator")
	}
	logger := cfg.Logger
	if logger.SugaredLogger == nil {
		logger = logging.NewLogger("launcher")
	}
	handler := cfg.Metrics
	if handler == nil {
		handler = &metrics.NoOpMetricsHandler{}
	}
	parser, err := manifest.NewParser(manifest.ParserConfig{
		Downloader:  cfg.Storage,
		Environment: cfg.Environment,
		WorkDir:     cfg.ETLFilePath,
		Logger:      logging.WrapZapLogger(logger.Named("manifest")),
		Clock:       cfg.Clock,
	})
	if err != nil {
		return nil, err
	}
	return &Launcher{
		environment:      cfg.Environment,
		etlFilePath:      cfg.ETLFilePath,
		manifestFilePath: cfg.ManifestFilePath,
		manifestFile:     cfg.ManifestFile,
		storage:          cfg.Storage,
		parser:           parser,
		orchestrator:     cfg.Orchestrator,
		metrics:          handler,
		logger:           logger,
	}, nil
}

// NewFromConfig connects to AWS and builds every dependency from the environment config.
func NewFromConfig(ctx context.Context, cfg *config.LauncherConfig, logger logging.Logger) (*Launcher, error) {
	conn, err := connection.NewConnection(ctx, cfg.AWS)
	if err != nil {
		logger.Errorw("Failed to connect to AWS", "err", err)
		return nil, err
	}
	orchestrator := cluster.NewOrchestrator(conn.EMR(), cfg.Cluster, logging.WrapZapLogger(logger.Named("cluster")), nil)
	return New(Config{
		Environment:      cfg.ExecEnvironment,
		ETLFilePath:      cfg.ETLFilePath,
		ManifestFilePath: cfg.ManifestFilePath,
		ManifestFile:     cfg.ManifestFile,
		Storage:          storage.NewS3Transfer(conn.S3(), logging.WrapZapLogger(logger.Named("storage"))),
		Orchestrator:     orchestrator,
		Metrics:          metrics.NewMetrics(metricsName, cfg.PushgatewayURL),
		Logger:           logger,
	})
}

func (l *Launcher) Orchestrator() *cluster.Orchestrator {
	return l.orchestrator
}

func (l *Launcher) Close() error {
	return l.storage.Close()
}

// Result describes where a rendered script was placed.
type Result struct {
	ClusterName   string
	GeneratedName string
	ScriptURI     string
	cluster.Result
}

// HandleS3Event launches the manifest named by the event's first record.
func (l *Launcher) HandleS3Event(ctx context.Context, event events.S3Event) (Result, error) {
	if len(event.Records) == 0 {
		l.logger.Errorw("S3 event has no records")
		return Result{}, fferr.NewInvalidArgumentErrorf("S3 event has no records")
	}
	record := event.Records[0].S3
	key, err := decodeKey(record.Object)
	if err != nil {
		l.logger.Errorw("Could not decode object key", "key", record.Object.Key, "err", err)
		return Result{}, err
	}
	l.logger.Debugw("Bucket", "bucket", record.Bucket.Name)
	return l.Launch(ctx, record.Bucket.Name, key)
}

// decodeKey undoes the form encoding S3 applies to keys in notifications.
func decodeKey(obj events.S3Object) (string, error) {
	if obj.URLDecodedKey != "" {
		return obj.URLDecodedKey, nil
	}
	key, err := url.QueryUnescape(obj.Key)
	if err != nil {
		wrapped := fferr.NewInvalidArgumentError(err)
		wrapped.AddDetail("key", obj.Key)
		return "", wrapped
	}
	return key, nil
}

func requestID(ctx context.Context) logging.RequestID {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return logging.RequestID(lc.AwsRequestID)
	}
	return logging.NewRequestID()
}

// Launch downloads the manifest at bucket/key, renders and uploads its ETL, then runs the
// ETL on an existing or new cluster.
func (l *Launcher) Launch(ctx context.Context, bucket, key string) (Result, error) {
	logger := l.logger.WithRequestID(requestID(ctx)).WithValues("manifest_bucket", bucket, "manifest_key", key)
	ctx = logger.AttachToContext(ctx)
	obs := l.metrics.BeginObservingLaunch(l.environment)
	defer func() {
		logger.LogIfErr("Failed to push metrics", l.metrics.Push())
	}()

	res, err := l.launch(ctx, logger, bucket, key)
	if err != nil {
		obs.SetMode(string(res.Mode))
		obs.SetError()
		return res, err
	}
	obs.SetMode(string(res.Mode))
	if res.Resized {
		obs.SetResized()
	}
	obs.Finish()
	return res, nil
}

func (l *Launcher) launch(ctx context.Context, logger logging.Logger, bucket, key string) (Result, error) {
	manifestPath := filepath.Join(l.manifestFilePath, l.manifestFile)
	if _, err := l.storage.Download(ctx, bucket, key, manifestPath); err != nil {
		logger.Errorw("Failed to download manifest", "err", err)
		return Result{}, err
	}

	logger.Infow("Generating new ETL file from ETL template with placeholder values filled in")
	m, name, err := l.parser.ParseManifestFile(ctx, l.manifestFilePath, l.manifestFile)
	if err != nil {
		srcBucket, srcKey := bucket, key
		if m != nil {
			srcBucket, srcKey = m.ETL.ScriptS3Bucket, m.ETL.ScriptS3Key
		}
		logger.Errorw(fmt.Sprintf("Failed while trying to generate a new ETL from s3://%s/%s", srcBucket, srcKey), "err", err)
		return Result{}, err
	}
	logger.Infow("Generated", "generated", name)

	scriptBucket := m.ETL.ScriptS3Bucket
	if _, err := l.storage.Upload(ctx, filepath.Join(l.etlFilePath, name), scriptBucket, filestore.GeneratedScriptsPrefix, name); err != nil {
		logger.Errorw("Failed to upload generated ETL", "err", err)
		return Result{GeneratedName: name}, err
	}

	res := Result{
		ClusterName:   fmt.Sprintf("%s_%s", l.environment, m.ETL.ScriptS3Key),
		GeneratedName: name,
		ScriptURI:     filestore.GeneratedScriptPath(scriptBucket, name).ToURI(),
	}
	placed, err := l.orchestrator.Run(ctx, cluster.Request{
		ClusterName: res.ClusterName,
		Job: cluster.Job{
			Name:            name,
			ScriptURI:       res.ScriptURI,
			DeployMode:      cluster.DeployModeCluster,
			ActionOnFailure: emrtypes.ActionOnFailureContinue,
		},
		UseExistingCluster: m.Resource.UseExistingCluster,
		TerminateCluster:   m.Resource.TerminateCluster,
		InstanceType:       m.Resource.InstanceType,
		InstanceCount:      m.Resource.InstanceCount,
	})
	res.Result = placed
	if err != nil {
		logger.Errorw("Failed while trying to launch EMR cluster", "err", err)
		return res, err
	}
	logger.Infow(fmt.Sprintf("Submitted s3://%s/%s to process_%s", m.ETL.Script, name, res.ClusterName),
		"cluster_id", placed.ClusterID, "mode", placed.Mode, "step_id", placed.StepID)
	return res, nil
}

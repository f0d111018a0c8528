// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/featureform/emrlauncher/config"
	"github.com/featureform/emrlauncher/launcher"
	"github.com/featureform/emrlauncher/logging"
)

func main() {
	logger := logging.NewProductionLogger("emrlauncher")
	defer logger.Sync()
	logger.Info("Parsing launcher config")
	cfg, err := config.Get()
	if err != nil {
		logger.Errorw("Invalid launcher config", "err", err)
		panic(err)
	}

	// Built once per container and reused across warm invocations.
	l, err := launcher.NewFromConfig(context.Background(), cfg, logger)
	if err != nil {
		logger.Errorw("Failed to create launcher", "err", err)
		panic(err)
	}
	defer func() { logger.LogIfErr("Failed to close launcher", l.Close()) }()

	lambda.Start(func(ctx context.Context, event events.S3Event) error {
		_, err := l.HandleS3Event(ctx, event)
		return err
	})
}

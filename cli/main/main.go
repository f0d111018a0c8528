// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/spf13/cobra"

	"github.com/featureform/emrlauncher/cluster"
	"github.com/featureform/emrlauncher/config"
	"github.com/featureform/emrlauncher/connection"
	help "github.com/featureform/emrlauncher/helpers"
	"github.com/featureform/emrlauncher/launcher"
	"github.com/featureform/emrlauncher/logging"
	"github.com/featureform/emrlauncher/manifest"
)

func newLogger() logging.Logger {
	if help.GetEnvBool(config.ProductionLoggingEnv, false) {
		return logging.NewProductionLogger("emrlauncher-cli")
	}
	return logging.NewLogger("emrlauncher-cli")
}

func newRootCommand() *cli.Command {
	var envFile string
	cmd := &cli.Command{
		Use:           "emrlauncher",
		Short:         "Render ETL templates from manifests and run them on EMR",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cli.Command, args []string) error {
			// a missing .env is fine, the environment may already be set
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("loading %s: %w", envFile, err)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file of KEY=VALUE pairs loaded into the environment")
	cmd.AddCommand(
		launchCommand(),
		renderCommand(),
		clustersCommand(),
		terminateCommand(),
	)
	return cmd
}

func launchCommand() *cli.Command {
	var bucket, key string
	cmd := &cli.Command{
		Use:     "launch",
		Short:   "Run the manifest at s3://<bucket>/<key> the same way the Lambda does",
		Example: "emrlauncher launch --bucket manifests --key dcm/manifest_dcm_api_pg.json",
		RunE: func(c *cli.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()
			cfg, err := config.Get()
			if err != nil {
				logger.Errorw("Invalid launcher config", "err", err)
				return err
			}
			l, err := launcher.NewFromConfig(c.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { logger.LogIfErr("Failed to close launcher", l.Close()) }()
			res, err := l.Launch(c.Context(), bucket, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "%s %s %s\n", res.Mode, res.ClusterID, res.ScriptURI)
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket holding the manifest")
	cmd.Flags().StringVar(&key, "key", "", "key of the manifest")
	cmd.MarkFlagRequired("bucket")
	cmd.MarkFlagRequired("key")
	return cmd
}

func renderCommand() *cli.Command {
	var manifestPath, templatePath, outPath string
	cmd := &cli.Command{
		Use:     "render",
		Short:   "Fill a local ETL template with a local manifest's placeholder values",
		Example: "emrlauncher render --manifest manifest.json --template dcm_api_pg.py --out /tmp/dcm_api_pg_local.py",
		RunE: func(c *cli.Command, args []string) error {
			m, err := manifest.ParseFile(manifestPath)
			if err != nil {
				return err
			}
			if err := manifest.RenderFile(templatePath, outPath, m.Replacements); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to the manifest JSON")
	cmd.Flags().StringVar(&templatePath, "template", "", "path to the ETL template")
	cmd.Flags().StringVar(&outPath, "out", "", "path of the rendered script")
	cmd.MarkFlagRequired("manifest")
	cmd.MarkFlagRequired("template")
	cmd.MarkFlagRequired("out")
	return cmd
}

func newOrchestrator(c *cli.Command, logger logging.Logger) (*cluster.Orchestrator, error) {
	conn, err := connection.NewConnection(c.Context(), config.GetAWSConfig())
	if err != nil {
		return nil, err
	}
	clusterCfg := config.DefaultClusterConfig(help.GetEnv(config.LogURIEnv, ""))
	return cluster.NewOrchestrator(conn.EMR(), clusterCfg, logger, nil), nil
}

func clustersCommand() *cli.Command {
	var master bool
	cmd := &cli.Command{
		Use:   "clusters",
		Short: "Print the first RUNNING or WAITING cluster",
		RunE: func(c *cli.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()
			o, err := newOrchestrator(c, logger)
			if err != nil {
				return err
			}
			id, found, err := o.FirstAvailableCluster(c.Context())
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(c.OutOrStdout(), "No valid clusters")
				return nil
			}
			if !master {
				fmt.Fprintln(c.OutOrStdout(), id)
				return nil
			}
			instanceID, err := o.MasterInstanceID(c.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "%s %s\n", id, instanceID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&master, "master", false, "also print the master node's EC2 instance id")
	return cmd
}

func terminateCommand() *cli.Command {
	cmd := &cli.Command{
		Use:     "terminate <cluster-id>...",
		Short:   "Terminate clusters, cancelling their unfinished steps",
		Args:    cli.MinimumNArgs(1),
		Example: "emrlauncher terminate j-2AXXXXXXGAPLF",
		RunE: func(c *cli.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()
			o, err := newOrchestrator(c, logger)
			if err != nil {
				return err
			}
			return o.TerminateClusters(c.Context(), args)
		},
	}
	return cmd
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package cluster

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/emr"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"

	"github.com/featureform/emrlauncher/config"
	"github.com/featureform/emrlauncher/connection"
	"github.com/featureform/emrlauncher/fferr"
)

type DeployMode string

const (
	DeployModeCluster DeployMode = "cluster"
	DeployModeClient  DeployMode = "client"
)

const (
	commandRunnerJar = "command-runner.jar"
	stepTimeFormat   = "20060102-15:04"
	// Launched clusters are named process_<cluster name> and tagged Processing=<cluster name>.
	clusterNamePrefix = "process_"
	processingTag     = "Processing"
	sparkApplication  = "spark"
	masterGroupName   = "Master nodes"
	coreGroupName     = "Slave nodes"
)

// Job is a single spark-submit step.
type Job struct {
	Name            string
	ScriptURI       string
	DeployMode      DeployMode
	ActionOnFailure emrtypes.ActionOnFailure
}

func (j Job) withDefaults() Job {
	if j.DeployMode == "" {
		j.DeployMode = DeployMode(config.DefaultDeployMode)
	}
	if j.ActionOnFailure == "" {
		j.ActionOnFailure = emrtypes.ActionOnFailure(config.DefaultActionOnFailure)
	}
	return j
}

func SparkSubmitArgs(mode DeployMode, scriptURI string) []string {
	return []string{"spark-submit", "--deploy-mode", string(mode), scriptURI}
}

// StepName suffixes name with the minute the step is created, e.g. etl-20171014-09:30.
func (o *Orchestrator) StepName(name string) string {
	return fmt.Sprintf("%s-%s", name, o.clock.Now().Format(stepTimeFormat))
}

func (o *Orchestrator) stepConfig(job Job) emrtypes.StepConfig {
	job = job.withDefaults()
	return emrtypes.StepConfig{
		Name:            aws.String(o.StepName(job.Name)),
		ActionOnFailure: job.ActionOnFailure,
		HadoopJarStep: &emrtypes.HadoopJarStepConfig{
			Jar:  aws.String(commandRunnerJar),
			Args: SparkSubmitArgs(job.DeployMode, job.ScriptURI),
		},
	}
}

// SubmitJob adds job as a step on a running cluster and returns the step id.
func (o *Orchestrator) SubmitJob(ctx context.Context, clusterID string, job Job) (string, error) {
	step := o.stepConfig(job)
	logger := o.logger.With("cluster_id", clusterID, "step_name", aws.ToString(step.Name), "script", job.ScriptURI)
	resp, err := o.client.AddJobFlowSteps(ctx, &emr.AddJobFlowStepsInput{
		JobFlowId: aws.String(clusterID),
		Steps:     []emrtypes.StepConfig{step},
	})
	if err != nil {
		logger.Errorw("Could not add step to cluster", "err", err)
		return "", wrapEMRErr(err, "could not add step", "cluster_id", clusterID, "step_name", aws.ToString(step.Name))
	}
	if len(resp.StepIds) == 0 {
		return "", fferr.NewExecutionError(connection.EMRService, fmt.Errorf("no step id returned for cluster %s", clusterID))
	}
	logger.Infow("Added step", "step_id", resp.StepIds[0])
	return resp.StepIds[0], nil
}

// LaunchRequest describes a new cluster that runs a single step.
type LaunchRequest struct {
	ClusterName      string
	Job              Job
	TerminateCluster bool
	InstanceType     string
	InstanceCount    int32
}

func (o *Orchestrator) runJobFlowInput(req LaunchRequest) *emr.RunJobFlowInput {
	return &emr.RunJobFlowInput{
		Name:         aws.String(clusterNamePrefix + req.ClusterName),
		LogUri:       aws.String(o.cfg.LogURI),
		ReleaseLabel: aws.String(o.cfg.ReleaseLabel),
		Instances: &emrtypes.JobFlowInstancesConfig{
			InstanceGroups: []emrtypes.InstanceGroupConfig{
				{
					Name:          aws.String(masterGroupName),
					Market:        emrtypes.MarketTypeOnDemand,
					InstanceRole:  emrtypes.InstanceRoleTypeMaster,
					InstanceType:  aws.String(req.InstanceType),
					InstanceCount: aws.Int32(1),
				},
				{
					Name:          aws.String(coreGroupName),
					Market:        emrtypes.MarketTypeOnDemand,
					InstanceRole:  emrtypes.InstanceRoleTypeCore,
					InstanceType:  aws.String(req.InstanceType),
					InstanceCount: aws.Int32(req.InstanceCount),
				},
			},
			Ec2KeyName:                  aws.String(o.cfg.EC2KeyName),
			KeepJobFlowAliveWhenNoSteps: aws.Bool(!req.TerminateCluster),
			TerminationProtected:        aws.Bool(false),
			Ec2SubnetId:                 aws.String(o.cfg.SubnetID),
		},
		Applications:      []emrtypes.Application{{Name: aws.String(sparkApplication)}},
		Steps:             []emrtypes.StepConfig{o.stepConfig(req.Job)},
		VisibleToAllUsers: aws.Bool(true),
		JobFlowRole:       aws.String(o.cfg.JobFlowRole),
		ServiceRole:       aws.String(o.cfg.ServiceRole),
		Tags: []emrtypes.Tag{
			{Key: aws.String(processingTag), Value: aws.String(req.ClusterName)},
		},
	}
}

// LaunchAndSubmit starts a new cluster with the job as its first step and returns the cluster id.
func (o *Orchestrator) LaunchAndSubmit(ctx context.Context, req LaunchRequest) (string, error) {
	input := o.runJobFlowInput(req)
	logger := o.logger.With("cluster_name", aws.ToString(input.Name), "instance_type", req.InstanceType, "instance_count", req.InstanceCount)
	resp, err := o.client.RunJobFlow(ctx, input)
	if err != nil {
		logger.Errorw("Could not launch cluster", "err", err)
		return "", wrapEMRErr(err, "could not launch cluster", "cluster_name", aws.ToString(input.Name))
	}
	clusterID := aws.ToString(resp.JobFlowId)
	logger.Infow("Launched cluster", "cluster_id", clusterID)
	return clusterID, nil
}

type Mode string

const (
	ModeReuse  Mode = "reuse"
	ModeLaunch Mode = "launch"
)

// Request is one placement decision: reuse an available cluster or launch a new one.
type Request struct {
	ClusterName        string
	Job                Job
	UseExistingCluster bool
	TerminateCluster   bool
	InstanceType       string
	InstanceCount      int32
}

type Result struct {
	Mode      Mode
	ClusterID string
	// StepID is only known when the job is added to an existing cluster.
	StepID  string
	Resized bool
}

// Run places the job. When reuse is requested and a cluster is available, the CORE group
// is grown to InstanceCount if needed before the step is added. Otherwise a new cluster
// is launched with the job as its step.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if req.UseExistingCluster {
		clusterID, found, err := o.FirstAvailableCluster(ctx)
		if err != nil {
			return Result{}, err
		}
		if found {
			resized, err := o.EnsureCoreCapacity(ctx, clusterID, req.InstanceCount)
			if err != nil {
				return Result{Mode: ModeReuse, ClusterID: clusterID, Resized: resized}, err
			}
			stepID, err := o.SubmitJob(ctx, clusterID, req.Job)
			if err != nil {
				return Result{Mode: ModeReuse, ClusterID: clusterID, Resized: resized}, err
			}
			return Result{Mode: ModeReuse, ClusterID: clusterID, StepID: stepID, Resized: resized}, nil
		}
	}
	clusterID, err := o.LaunchAndSubmit(ctx, LaunchRequest{
		ClusterName:      req.ClusterName,
		Job:              req.Job,
		TerminateCluster: req.TerminateCluster,
		InstanceType:     req.InstanceType,
		InstanceCount:    req.InstanceCount,
	})
	if err != nil {
		return Result{Mode: ModeLaunch}, err
	}
	return Result{Mode: ModeLaunch, ClusterID: clusterID}, nil
}

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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jonboulle/clockwork"

	"github.com/featureform/emrlauncher/config"
	"github.com/featureform/emrlauncher/connection"
	"github.com/featureform/emrlauncher/fferr"
	"github.com/featureform/emrlauncher/logging"
)

// API is the part of *emr.Client the orchestrator calls.
type API interface {
	ListClusters(ctx context.Context, params *emr.ListClustersInput, optFns ...func(*emr.Options)) (*emr.ListClustersOutput, error)
	ListInstanceGroups(ctx context.Context, params *emr.ListInstanceGroupsInput, optFns ...func(*emr.Options)) (*emr.ListInstanceGroupsOutput, error)
	ListInstances(ctx context.Context, params *emr.ListInstancesInput, optFns ...func(*emr.Options)) (*emr.ListInstancesOutput, error)
	ModifyInstanceGroups(ctx context.Context, params *emr.ModifyInstanceGroupsInput, optFns ...func(*emr.Options)) (*emr.ModifyInstanceGroupsOutput, error)
	AddJobFlowSteps(ctx context.Context, params *emr.AddJobFlowStepsInput, optFns ...func(*emr.Options)) (*emr.AddJobFlowStepsOutput, error)
	RunJobFlow(ctx context.Context, params *emr.RunJobFlowInput, optFns ...func(*emr.Options)) (*emr.RunJobFlowOutput, error)
	TerminateJobFlows(ctx context.Context, params *emr.TerminateJobFlowsInput, optFns ...func(*emr.Options)) (*emr.TerminateJobFlowsOutput, error)
}

var _ API = &emr.Client{}

// Clusters in these states accept new steps.
var availableStates = mapset.NewSet[emrtypes.ClusterState](emrtypes.ClusterStateRunning, emrtypes.ClusterStateWaiting)

type Orchestrator struct {
	client API
	cfg    config.ClusterConfig
	logger logging.Logger
	clock  clockwork.Clock
}

func NewOrchestrator(client API, cfg config.ClusterConfig, logger logging.Logger, clock clockwork.Clock) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orchestrator{
		client: client,
		cfg:    cfg,
		logger: logger,
		clock:  clock,
	}
}

func wrapEMRErr(err error, msg string, keysAndValues ...string) *fferr.ExecutionError {
	wrapped := fferr.NewExecutionError(connection.EMRService, fmt.Errorf("%s: %w", msg, err))
	wrapped.AddDetails(keysAndValues...)
	return wrapped
}

// FirstAvailableCluster returns the id of the first RUNNING or WAITING cluster in the
// order the API lists them. found is false when there is none.
func (o *Orchestrator) FirstAvailableCluster(ctx context.Context) (id string, found bool, err error) {
	paginator := emr.NewListClustersPaginator(o.client, &emr.ListClustersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			o.logger.Errorw("Failed to list clusters", "err", err)
			return "", false, wrapEMRErr(err, "could not list clusters")
		}
		for _, c := range page.Clusters {
			if c.Status == nil || c.Id == nil {
				continue
			}
			if availableStates.Contains(c.Status.State) {
				o.logger.Infow("Cluster", "cluster_id", *c.Id, "state", c.Status.State)
				return *c.Id, true, nil
			}
		}
	}
	o.logger.Infow("No valid clusters")
	return "", false, nil
}

func (o *Orchestrator) listInstanceGroups(ctx context.Context, clusterID string) ([]emrtypes.InstanceGroup, error) {
	logger := o.logger.With("cluster_id", clusterID)
	paginator := emr.NewListInstanceGroupsPaginator(o.client, &emr.ListInstanceGroupsInput{
		ClusterId: aws.String(clusterID),
	})
	var groups []emrtypes.InstanceGroup
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			logger.Errorw("Failed to list instance groups", "err", err)
			return nil, wrapEMRErr(err, "could not list instance groups", "cluster_id", clusterID)
		}
		for _, g := range page.InstanceGroups {
			var state emrtypes.InstanceGroupState
			if g.Status != nil {
				state = g.Status.State
			}
			logger.Infow("Instance group",
				"group_id", aws.ToString(g.Id),
				"group_type", g.InstanceGroupType,
				"running", aws.ToInt32(g.RunningInstanceCount),
				"requested", aws.ToInt32(g.RequestedInstanceCount),
				"state", state,
			)
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// InstanceGroups maps each instance group role (MASTER, CORE, TASK) to its group id.
func (o *Orchestrator) InstanceGroups(ctx context.Context, clusterID string) (map[emrtypes.InstanceGroupType]string, error) {
	groups, err := o.listInstanceGroups(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	byType := make(map[emrtypes.InstanceGroupType]string, len(groups))
	for _, g := range groups {
		byType[g.InstanceGroupType] = aws.ToString(g.Id)
	}
	return byType, nil
}

// InstanceGroupCounts maps each instance group id to its running instance count.
func (o *Orchestrator) InstanceGroupCounts(ctx context.Context, clusterID string) (map[string]int32, error) {
	groups, err := o.listInstanceGroups(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int32, len(groups))
	for _, g := range groups {
		counts[aws.ToString(g.Id)] = aws.ToInt32(g.RunningInstanceCount)
	}
	return counts, nil
}

// MasterInstanceID returns the EC2 instance id of the cluster's master node.
func (o *Orchestrator) MasterInstanceID(ctx context.Context, clusterID string) (string, error) {
	resp, err := o.client.ListInstances(ctx, &emr.ListInstancesInput{
		ClusterId:          aws.String(clusterID),
		InstanceGroupTypes: []emrtypes.InstanceGroupType{emrtypes.InstanceGroupTypeMaster},
	})
	if err != nil {
		o.logger.Errorw("Failed to list master instances", "cluster_id", clusterID, "err", err)
		return "", wrapEMRErr(err, "could not list master instances", "cluster_id", clusterID)
	}
	if len(resp.Instances) == 0 {
		return "", fferr.NewExecutionError(connection.EMRService, fmt.Errorf("cluster %s has no master instance", clusterID))
	}
	return aws.ToString(resp.Instances[0].Ec2InstanceId), nil
}

// SetInstanceCount asks EMR to resize one instance group to count nodes.
func (o *Orchestrator) SetInstanceCount(ctx context.Context, clusterID, groupID string, count int32) error {
	_, err := o.client.ModifyInstanceGroups(ctx, &emr.ModifyInstanceGroupsInput{
		ClusterId: aws.String(clusterID),
		InstanceGroups: []emrtypes.InstanceGroupModifyConfig{
			{
				InstanceGroupId: aws.String(groupID),
				InstanceCount:   aws.Int32(count),
			},
		},
	})
	if err != nil {
		o.logger.Errorw("Failed to modify instance group", "cluster_id", clusterID, "group_id", groupID, "count", count, "err", err)
		return wrapEMRErr(err, "could not modify instance group", "cluster_id", clusterID, "group_id", groupID, "instance_count", fmt.Sprint(count))
	}
	o.logger.Infow("Requested instance group resize", "cluster_id", clusterID, "group_id", groupID, "count", count)
	return nil
}

// TerminateClusters shuts the clusters down. Steps that have not completed are cancelled.
func (o *Orchestrator) TerminateClusters(ctx context.Context, clusterIDs []string) error {
	if _, err := o.client.TerminateJobFlows(ctx, &emr.TerminateJobFlowsInput{JobFlowIds: clusterIDs}); err != nil {
		o.logger.Errorw("Failed to terminate clusters", "cluster_ids", clusterIDs, "err", err)
		return wrapEMRErr(err, "could not terminate clusters", "cluster_ids", fmt.Sprint(clusterIDs))
	}
	o.logger.Infow("Terminated clusters", "cluster_ids", clusterIDs)
	return nil
}

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
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/emr"
	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"
)

// fakeEMR records every mutating call and serves canned cluster state.
type fakeEMR struct {
	mtx       sync.Mutex
	clusters  []emrtypes.ClusterSummary
	groups    []emrtypes.InstanceGroup
	instances []emrtypes.Instance
	// groupCounts overrides the running count reported for a group on successive list calls.
	groupCounts map[string][]int32
	listErr     error
	stepErr     error
	runErr      error

	modifies   []*emr.ModifyInstanceGroupsInput
	steps      []*emr.AddJobFlowStepsInput
	runs       []*emr.RunJobFlowInput
	terminates []*emr.TerminateJobFlowsInput
	groupLists int
}

func clusterSummary(id string, state emrtypes.ClusterState) emrtypes.ClusterSummary {
	return emrtypes.ClusterSummary{
		Id:     aws.String(id),
		Name:   aws.String("process_" + id),
		Status: &emrtypes.ClusterStatus{State: state},
	}
}

func instanceGroup(id string, groupType emrtypes.InstanceGroupType, running int32) emrtypes.InstanceGroup {
	return emrtypes.InstanceGroup{
		Id:                     aws.String(id),
		InstanceGroupType:      groupType,
		RunningInstanceCount:   aws.Int32(running),
		RequestedInstanceCount: aws.Int32(running),
		Status:                 &emrtypes.InstanceGroupStatus{State: emrtypes.InstanceGroupStateRunning},
	}
}

func (f *fakeEMR) ListClusters(ctx context.Context, params *emr.ListClustersInput, optFns ...func(*emr.Options)) (*emr.ListClustersOutput, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &emr.ListClustersOutput{Clusters: f.clusters}, nil
}

func (f *fakeEMR) ListInstanceGroups(ctx context.Context, params *emr.ListInstanceGroupsInput, optFns ...func(*emr.Options)) (*emr.ListInstanceGroupsOutput, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.groupLists++
	groups := make([]emrtypes.InstanceGroup, len(f.groups))
	copy(groups, f.groups)
	for i, g := range groups {
		counts := f.groupCounts[aws.ToString(g.Id)]
		if len(counts) == 0 {
			continue
		}
		groups[i].RunningInstanceCount = aws.Int32(counts[0])
		if len(counts) > 1 {
			f.groupCounts[aws.ToString(g.Id)] = counts[1:]
		}
	}
	return &emr.ListInstanceGroupsOutput{InstanceGroups: groups}, nil
}

func (f *fakeEMR) ListInstances(ctx context.Context, params *emr.ListInstancesInput, optFns ...func(*emr.Options)) (*emr.ListInstancesOutput, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &emr.ListInstancesOutput{Instances: f.instances}, nil
}

func (f *fakeEMR) ModifyInstanceGroups(ctx context.Context, params *emr.ModifyInstanceGroupsInput, optFns ...func(*emr.Options)) (*emr.ModifyInstanceGroupsOutput, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.modifies = append(f.modifies, params)
	return &emr.ModifyInstanceGroupsOutput{}, nil
}

func (f *fakeEMR) AddJobFlowSteps(ctx context.Context, params *emr.AddJobFlowStepsInput, optFns ...func(*emr.Options)) (*emr.AddJobFlowStepsOutput, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.stepErr != nil {
		return nil, f.stepErr
	}
	f.steps = append(f.steps, params)
	return &emr.AddJobFlowStepsOutput{StepIds: []string{fmt.Sprintf("s-%d", len(f.steps))}}, nil
}

func (f *fakeEMR) RunJobFlow(ctx context.Context, params *emr.RunJobFlowInput, optFns ...func(*emr.Options)) (*emr.RunJobFlowOutput, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.runErr != nil {
		return nil, f.runErr
	}
	f.runs = append(f.runs, params)
	return &emr.RunJobFlowOutput{JobFlowId: aws.String(fmt.Sprintf("j-NEW%d", len(f.runs)))}, nil
}

func (f *fakeEMR) TerminateJobFlows(ctx context.Context, params *emr.TerminateJobFlowsInput, optFns ...func(*emr.Options)) (*emr.TerminateJobFlowsOutput, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.terminates = append(f.terminates, params)
	return &emr.TerminateJobFlowsOutput{}, nil
}

func (f *fakeEMR) stepCount() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return len(f.steps)
}

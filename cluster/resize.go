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
	"time"

	emrtypes "github.com/aws/aws-sdk-go-v2/service/emr/types"

	"github.com/featureform/emrlauncher/config"
	"github.com/featureform/emrlauncher/connection"
	"github.com/featureform/emrlauncher/fferr"
)

// EnsureCoreCapacity grows the CORE group to requested nodes if fewer are running.
// It never shrinks a group. resized reports whether a resize was requested.
func (o *Orchestrator) EnsureCoreCapacity(ctx context.Context, clusterID string, requested int32) (resized bool, err error) {
	logger := o.logger.With("cluster_id", clusterID, "requested", requested)
	groups, err := o.InstanceGroups(ctx, clusterID)
	if err != nil {
		return false, err
	}
	groupID, has := groups[emrtypes.InstanceGroupTypeCore]
	if !has {
		logger.Errorw("Cluster has no CORE instance group")
		wrapped := fferr.NewExecutionError(connection.EMRService, fmt.Errorf("cluster %s has no CORE instance group", clusterID))
		wrapped.AddDetail("cluster_id", clusterID)
		return false, wrapped
	}
	counts, err := o.InstanceGroupCounts(ctx, clusterID)
	if err != nil {
		return false, err
	}
	current := counts[groupID]
	logger = logger.With("group_id", groupID, "running", current)
	if requested <= current {
		logger.Infow("CORE group already large enough")
		return false, nil
	}
	if err := o.SetInstanceCount(ctx, clusterID, groupID, requested); err != nil {
		return false, err
	}
	if err := o.waitForResize(ctx, clusterID, groupID, requested); err != nil {
		return true, err
	}
	return true, nil
}

func (o *Orchestrator) waitForResize(ctx context.Context, clusterID, groupID string, target int32) error {
	switch o.cfg.ResizeWait {
	case config.ResizeWaitPoll:
		return o.pollForResize(ctx, clusterID, groupID, target)
	default:
		// Only lets the resize start; the step may run before the nodes join.
		o.logger.Infow("Waiting for resize to start", "cluster_id", clusterID, "delay", o.cfg.ResizeDelay)
		return o.sleep(ctx, o.cfg.ResizeDelay)
	}
}

// pollForResize returns once the group runs target nodes. Hitting PollTimeout is logged,
// not returned: the step is submitted either way.
func (o *Orchestrator) pollForResize(ctx context.Context, clusterID, groupID string, target int32) error {
	logger := o.logger.With("cluster_id", clusterID, "group_id", groupID, "target", target)
	deadline := o.clock.Now().Add(o.cfg.PollTimeout)
	for {
		counts, err := o.InstanceGroupCounts(ctx, clusterID)
		if err != nil {
			return err
		}
		if counts[groupID] >= target {
			logger.Infow("Instance group reached target size")
			return nil
		}
		if !o.clock.Now().Before(deadline) {
			logger.Warnw("Timed out waiting for instance group to resize", "running", counts[groupID], "timeout", o.cfg.PollTimeout)
			return nil
		}
		logger.Debugw("Instance group still resizing", "running", counts[groupID], "interval", o.cfg.PollInterval)
		if err := o.sleep(ctx, o.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-o.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

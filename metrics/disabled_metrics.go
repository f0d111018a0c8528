// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package metrics

type NoOpMetricsHandler struct{}

func (nop *NoOpMetricsHandler) BeginObservingLaunch(environment string) LaunchObserver {
	return &NoOpLaunchObserver{}
}

func (nop *NoOpMetricsHandler) Push() error { return nil }

type NoOpLaunchObserver struct{}

func (nop *NoOpLaunchObserver) SetMode(mode string) {}
func (nop *NoOpLaunchObserver) SetResized()         {}
func (nop *NoOpLaunchObserver) SetError()           {}
func (nop *NoOpLaunchObserver) Finish()             {}

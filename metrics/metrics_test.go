// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featureform/emrlauncher/fferr"
)

func TestLaunchObserver(t *testing.T) {
	handler := NewMetrics("emrlauncher", "")

	obs := handler.BeginObservingLaunch("nonprod")
	obs.SetMode("reuse")
	obs.SetResized()
	obs.Finish()

	obs = handler.BeginObservingLaunch("nonprod")
	obs.SetMode("launch")
	obs.SetError()

	tests := []struct {
		mode     string
		status   Observation
		expected int
	}{
		{"reuse", SUCCESS, 1},
		{"reuse", ERROR, 0},
		{"launch", ERROR, 1},
		{"launch", SUCCESS, 0},
	}
	for _, tt := range tests {
		count, err := handler.GetObservedCount("nonprod", tt.mode, tt.status)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, count, "%s/%s", tt.mode, tt.status)
	}

	resizes, err := handler.GetObservedResizes("nonprod", "reuse")
	require.NoError(t, err)
	assert.Equal(t, 1, resizes)
	resizes, err = handler.GetObservedResizes("nonprod", "launch")
	require.NoError(t, err)
	assert.Equal(t, 0, resizes)

	families, err := handler.Registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{"emrlauncher_launches_total", "emrlauncher_resizes_total", "emrlauncher_launch_duration_seconds"}, names)
}

func TestResizedLaunchCountsOnce(t *testing.T) {
	handler := NewMetrics("emrlauncher", "")
	obs := handler.BeginObservingLaunch("prod")
	obs.SetMode("reuse")
	obs.SetResized()
	obs.Finish()

	families, err := handler.Registry.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, f := range families {
		if f.GetName() != "emrlauncher_launches_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, total)
}

func TestSeparateHandlersDoNotConflict(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("emrlauncher", "")
		NewMetrics("emrlauncher", "")
	})
}

func TestPush(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	handler := NewMetrics("emrlauncher", server.URL)
	handler.BeginObservingLaunch("prod").Finish()
	require.NoError(t, handler.Push())
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/emrlauncher", path)
}

func TestPushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	handler := NewMetrics("emrlauncher", server.URL)
	handler.BeginObservingLaunch("prod").Finish()
	assert.IsType(t, &fferr.ConnectionError{}, handler.Push())
}

func TestPushDisabled(t *testing.T) {
	assert.NoError(t, NewMetrics("emrlauncher", "").Push())
	var nop MetricsHandler = &NoOpMetricsHandler{}
	obs := nop.BeginObservingLaunch("prod")
	obs.SetMode("reuse")
	obs.Finish()
	assert.NoError(t, nop.Push())
}

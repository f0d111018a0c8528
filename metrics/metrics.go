// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Copyright 2024 FeatureForm Inc.
//

package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"

	"github.com/featureform/emrlauncher/fferr"
)

type Observation string

const (
	ERROR   Observation = "error"
	SUCCESS Observation = "success"
)

const pushgatewayService = "Pushgateway"

// generic interfaces exposed to the launcher
type MetricsHandler interface {
	BeginObservingLaunch(environment string) LaunchObserver
	Push() error
}

type LaunchObserver interface {
	// SetMode records whether the job reused a cluster or launched one.
	SetMode(mode string)
	SetResized()
	SetError()
	Finish()
}

type PromMetricsHandler struct {
	Registry *prometheus.Registry
	Hist     *prometheus.HistogramVec
	Count    *prometheus.CounterVec
	Resizes  *prometheus.CounterVec
	Name     string
	PushURL  string
}

type PromLaunchObserver struct {
	Timer       *prometheus.Timer
	Count       *prometheus.CounterVec
	Resizes     *prometheus.CounterVec
	Name        string
	Environment string
	Mode        string
	Status      string
}

// NewMetrics registers the launch collectors on their own registry. A Lambda invocation
// is too short-lived to be scraped, so the registry is pushed to PushURL instead.
func NewMetrics(name, pushURL string) PromMetricsHandler {
	var launchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_launches_total", name),
			Help: "Counter for ETL launches, labeled by environment, cluster mode and status",
		},
		[]string{"instance", "environment", "mode", "status"},
	)

	var resizeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_resizes_total", name),
			Help: "Counter for CORE instance group resizes requested by launches, labeled by environment and cluster mode",
		},
		[]string{"instance", "environment", "mode"},
	)

	var launchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_launch_duration_seconds", name),
			Help:    "Latency for ETL launches, labeled by environment, cluster mode and status",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"instance", "environment", "mode", "status"},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(launchCounter)
	registry.MustRegister(resizeCounter)
	registry.MustRegister(launchLatency)
	return PromMetricsHandler{
		Registry: registry,
		Hist:     launchLatency,
		Count:    launchCounter,
		Resizes:  resizeCounter,
		Name:     name,
		PushURL:  pushURL,
	}
}

func (p PromMetricsHandler) BeginObservingLaunch(environment string) LaunchObserver {
	obs := &PromLaunchObserver{
		Count:       p.Count,
		Resizes:     p.Resizes,
		Name:        p.Name,
		Environment: environment,
		Status:      "running",
	}
	obs.Timer = prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		p.Hist.WithLabelValues(p.Name, environment, obs.Mode, obs.Status).Observe(v)
	}))
	return obs
}

// Push sends every collected metric to the Pushgateway. It is a no-op without a PushURL.
func (p PromMetricsHandler) Push() error {
	if p.PushURL == "" {
		return nil
	}
	if err := push.New(p.PushURL, p.Name).Gatherer(p.Registry).Push(); err != nil {
		wrapped := fferr.NewConnectionError(pushgatewayService, err)
		wrapped.AddDetail("url", p.PushURL)
		return wrapped
	}
	return nil
}

func (p PromMetricsHandler) GetObservedCount(environment, mode string, status Observation) (int, error) {
	var m = &dto.Metric{}
	if err := p.Count.WithLabelValues(p.Name, environment, mode, string(status)).Write(m); err != nil {
		return 0, err
	}
	return int(m.Counter.GetValue()), nil
}

func (p PromMetricsHandler) GetObservedResizes(environment, mode string) (int, error) {
	var m = &dto.Metric{}
	if err := p.Resizes.WithLabelValues(p.Name, environment, mode).Write(m); err != nil {
		return 0, err
	}
	return int(m.Counter.GetValue()), nil
}

func (p *PromLaunchObserver) SetMode(mode string) {
	p.Mode = mode
}

func (p *PromLaunchObserver) SetResized() {
	p.Resizes.WithLabelValues(p.Name, p.Environment, p.Mode).Inc()
}

func (p *PromLaunchObserver) SetError() {
	p.Status = string(ERROR)
	p.Timer.ObserveDuration()
	p.Count.WithLabelValues(p.Name, p.Environment, p.Mode, p.Status).Inc()
}

func (p *PromLaunchObserver) Finish() {
	p.Status = string(SUCCESS)
	p.Timer.ObserveDuration()
	p.Count.WithLabelValues(p.Name, p.Environment, p.Mode, p.Status).Inc()
}

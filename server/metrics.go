// Copyright ©2015 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of a Server.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Chunks   prometheus.Histogram
}

// NewMetrics creates and registers the server metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "baiserve_requests_total",
		Help: "Total HTTP requests by route and status code",
	}, []string{"route", "code"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "baiserve_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	chunks := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "baiserve_query_chunks",
		Help:    "Number of chunks returned per region query",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	reg.MustRegister(requests, duration, chunks)

	return &Metrics{
		Requests: requests,
		Duration: duration,
		Chunks:   chunks,
	}
}

// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

package bridge

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// llmBuckets suits LLM inference latencies, from 100ms to 120s.
var llmBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// requestsTotal counts HTTP requests by route and status.
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ollamabridge_requests_total",
			Help: "Total requests",
		},
		[]string{"route", "status"},
	)

	// requestDuration records request duration in seconds by route.
	// Streaming requests last as long as the relay.
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ollamabridge_request_duration_seconds",
			Help:    "Request duration",
			Buckets: llmBuckets,
		},
		[]string{"route"},
	)

	// activeStreams tracks the number of live SSE relays.
	activeStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ollamabridge_streams_active",
			Help: "Active SSE relays",
		},
	)

	// relayedChunks counts upstream chunks forwarded as events.
	relayedChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ollamabridge_relayed_chunks_total",
			Help: "Upstream chunks forwarded as SSE events",
		},
	)
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		requestDuration,
		activeStreams,
		relayedChunks,
	)
}

// metricsMiddleware records the Prometheus metrics for every request.
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		route := c.Path()
		if route == "" {
			route = c.Request().URL.Path
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(c.Response().Status)).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		return err
	}
}

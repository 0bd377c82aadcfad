package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "rewrap_fetches_started_total", Help: "Number of resource fetches started"})
	fetchFailed  = promauto.NewCounter(prometheus.CounterOpts{Name: "rewrap_fetches_failed_total", Help: "Number of resource fetches that failed"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "rewrap_fetch_duration_seconds", Help: "Fetch duration seconds", Buckets: prometheus.DefBuckets})

	detected = promauto.NewCounterVec(prometheus.CounterOpts{Name: "rewrap_detections_total", Help: "Detected container formats"}, []string{"format"})

	liveHandles = promauto.NewGauge(prometheus.GaugeOpts{Name: "rewrap_handles", Help: "Handles minted and not yet revoked"})
	heldBytes   = promauto.NewGauge(prometheus.GaugeOpts{Name: "rewrap_held_bytes", Help: "Bytes held by live handles"})
)

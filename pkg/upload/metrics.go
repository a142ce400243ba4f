// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"github.com/sundryfs/uplift/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// UploadsTotal tracks settled uploads by status
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uplift",
		Subsystem: "upload",
		Name:      "uploads_total",
		Help:      "Total number of settled uploads",
	}, []string{"status"}) // status: "completed", "failed"

	// AttemptsTotal tracks transfer attempts including retries
	AttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "uplift",
		Subsystem: "upload",
		Name:      "attempts_total",
		Help:      "Total number of transfer attempts",
	})

	// ReinitsTotal tracks descriptor re-initializations after expiry
	ReinitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "uplift",
		Subsystem: "upload",
		Name:      "reinits_total",
		Help:      "Total number of descriptor re-initializations",
	})

	// BytesSentTotal tracks bytes successfully uploaded
	BytesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "uplift",
		Subsystem: "upload",
		Name:      "bytes_sent_total",
		Help:      "Total bytes successfully uploaded",
	})

	// InFlight tracks currently running orchestrated uploads
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "uplift",
		Subsystem: "upload",
		Name:      "in_flight",
		Help:      "Number of uploads currently in flight",
	})

	// UploadDuration tracks end-to-end upload time
	UploadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "uplift",
		Subsystem: "upload",
		Name:      "duration_seconds",
		Help:      "End-to-end upload duration including retries",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})
)

func init() {
	debug.Registry().MustRegister(
		UploadsTotal,
		AttemptsTotal,
		ReinitsTotal,
		BytesSentTotal,
		InFlight,
		UploadDuration,
	)
}

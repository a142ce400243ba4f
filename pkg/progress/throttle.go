// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between non-terminal progress
// emissions.
const DefaultInterval = 120 * time.Millisecond

// Throttler gates high-frequency progress events to at most one per
// interval. The terminal event always passes, so the 100% signal is never
// dropped. One Throttler serves one upload attempt.
type Throttler struct {
	limiter *rate.Limiter
}

// NewThrottler creates a throttler with the given minimum emission interval.
// A non-positive interval falls back to DefaultInterval.
func NewThrottler(interval time.Duration) *Throttler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttler{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// ShouldEmit reports whether a progress event for sent/total bytes should be
// delivered now.
func (t *Throttler) ShouldEmit(sent, total int64) bool {
	if sent >= total {
		return true
	}
	return t.limiter.Allow()
}

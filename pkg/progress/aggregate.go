// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package progress

import "sync"

// Aggregator folds per-file progress into one overall metric for a batch.
// Files that have not reported yet contribute their full size as pending and
// zero as sent. Safe for concurrent updates from multiple uploads.
type Aggregator struct {
	mu    sync.Mutex
	sent  []int64
	total int64
	fn    Func
}

// NewAggregator sizes the aggregator for files with the given byte sizes.
// fn is invoked with the recomputed overall progress on every update; it is
// called with the aggregator lock held and must not call back in.
func NewAggregator(sizes []int64, fn Func) *Aggregator {
	var total int64
	for _, s := range sizes {
		total += s
	}
	return &Aggregator{
		sent:  make([]int64, len(sizes)),
		total: total,
		fn:    fn,
	}
}

// Update records the latest bytes-sent figure for file index i and reports
// the new overall progress.
func (a *Aggregator) Update(i int, bytesSent int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if i < 0 || i >= len(a.sent) {
		return
	}
	// Progress within one file never goes backwards.
	if bytesSent < a.sent[i] {
		return
	}
	a.sent[i] = bytesSent

	if a.fn == nil {
		return
	}
	var sum int64
	for _, s := range a.sent {
		sum += s
	}
	a.fn(New(sum, a.total))
}

// Overall returns the current aggregate progress.
func (a *Aggregator) Overall() Progress {
	a.mu.Lock()
	defer a.mu.Unlock()

	var sum int64
	for _, s := range a.sent {
		sum += s
	}
	return New(sum, a.total)
}

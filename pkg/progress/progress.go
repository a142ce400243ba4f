// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

// Package progress carries byte-level transfer progress, rate-limits how
// often it is reported, and aggregates it across a batch.
package progress

import "math"

// Progress is a point-in-time view of one transfer.
type Progress struct {
	BytesSent  int64 `json:"bytesSent"`
	TotalBytes int64 `json:"totalBytes"`
	Percent    int   `json:"percent"`
}

// Func receives progress updates.
type Func func(Progress)

// New computes the derived percent. A zero total yields zero percent.
func New(sent, total int64) Progress {
	p := Progress{BytesSent: sent, TotalBytes: total}
	if total > 0 {
		p.Percent = int(math.Round(float64(sent) / float64(total) * 100))
	}
	return p
}

// Done reports whether this is the terminal event for the transfer.
func (p Progress) Done() bool {
	return p.BytesSent >= p.TotalBytes
}

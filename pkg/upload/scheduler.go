// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"sync"

	"github.com/sundryfs/uplift/pkg/descriptor"
	"github.com/sundryfs/uplift/pkg/logger"
	"github.com/sundryfs/uplift/pkg/progress"
	"github.com/sundryfs/uplift/pkg/transport"
	"github.com/sundryfs/uplift/pkg/uperr"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency bounds how many uploads of a batch run at once.
const DefaultConcurrency = 3

// Outcome is the settlement of one file in a batch: exactly one of Result
// and Err is set.
type Outcome struct {
	Result *transport.Result
	Err    error
}

// BatchOptions tunes an UploadMany call.
type BatchOptions struct {
	// Concurrency is the admission bound. Zero means DefaultConcurrency.
	Concurrency int

	// OnFileProgress receives per-file updates keyed by input position.
	OnFileProgress func(index int, p progress.Progress)

	// OnOverallProgress receives the recomputed batch-wide progress on
	// every per-file tick.
	OnOverallProgress progress.Func
}

// UploadMany uploads every file with at most Concurrency transfers in
// flight. Files start in input order as slots free up. One file's failure
// never aborts its siblings; the returned slice is positionally ordered and
// always complete. Cancelling ctx aborts running uploads and keeps queued
// ones from starting.
func (u *Uploader) UploadMany(ctx context.Context, files []*descriptor.FileRef, opts BatchOptions) []Outcome {
	results := make([]Outcome, len(files))
	if len(files) == 0 {
		return results
	}

	bound := opts.Concurrency
	if bound <= 0 {
		bound = DefaultConcurrency
	}

	sizes := make([]int64, len(files))
	for i, f := range files {
		sizes[i] = f.Size
	}
	agg := progress.NewAggregator(sizes, opts.OnOverallProgress)

	logger.Ctx(ctx).Debug().
		Int("files", len(files)).
		Int("concurrency", bound).
		Msg("upload: batch starting")

	sem := semaphore.NewWeighted(int64(bound))
	var wg sync.WaitGroup

	for i, f := range files {
		// Acquiring here, not in the goroutine, admits files strictly
		// in input order.
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Outcome{Err: uperr.Aborted(uperr.PhaseInit, err)}
			continue
		}

		wg.Add(1)
		go func(i int, f *descriptor.FileRef) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := u.Upload(ctx, f, UploadOptions{
				OnProgress: func(p progress.Progress) {
					if opts.OnFileProgress != nil {
						opts.OnFileProgress(i, p)
					}
					agg.Update(i, p.BytesSent)
				},
			})
			results[i] = Outcome{Result: res, Err: err}
		}(i, f)
	}

	wg.Wait()
	return results
}

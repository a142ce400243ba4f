// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package upload_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sundryfs/uplift/pkg/descriptor"
	"github.com/sundryfs/uplift/pkg/progress"
	"github.com/sundryfs/uplift/pkg/transport"
	"github.com/sundryfs/uplift/pkg/uperr"
	"github.com/sundryfs/uplift/pkg/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchFiles(n int, size int64) []*descriptor.FileRef {
	files := make([]*descriptor.FileRef, n)
	for i := range files {
		files[i] = &descriptor.FileRef{
			Name: fmt.Sprintf("part-%d.bin", i),
			Size: size,
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(io.LimitReader(neverEnding('b'), size)), nil
			},
		}
	}
	return files
}

func TestUploadMany_OrderedSettlement(t *testing.T) {
	t.Parallel()

	// Fail files 1 and 3 by name, succeed the rest.
	failing := map[string]bool{"part-1.bin": true, "part-3.bin": true}
	u, err := upload.NewUploader(upload.UploaderConfig{
		Initializer: &fakeInit{},
		Transport: transportFunc(func(ctx context.Context, d *descriptor.Descriptor, f *descriptor.FileRef, opts transport.Options) (*transport.Result, error) {
			if failing[f.Name] {
				return nil, uperr.FromResponse(uperr.PhaseUpload, http.StatusBadRequest, "rejected")
			}
			return &transport.Result{Key: f.Name, Kind: d.Kind}, nil
		}),
		Policy: fastPolicy(0),
	})
	require.NoError(t, err)

	results := u.UploadMany(context.Background(), batchFiles(4, 64), upload.BatchOptions{})
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "part-0.bin", results[0].Result.Key)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Result)
	assert.NoError(t, results[2].Err)
	assert.Error(t, results[3].Err)

	var ue *uperr.Error
	require.ErrorAs(t, results[1].Err, &ue)
	assert.Equal(t, uperr.KindBadRequest, ue.Kind)
}

// transportFunc adapts a function to transport.Transport.
type transportFunc func(context.Context, *descriptor.Descriptor, *descriptor.FileRef, transport.Options) (*transport.Result, error)

func (f transportFunc) Upload(ctx context.Context, d *descriptor.Descriptor, file *descriptor.FileRef, opts transport.Options) (*transport.Result, error) {
	return f(ctx, d, file, opts)
}

func TestUploadMany_ConcurrencyBound(t *testing.T) {
	t.Parallel()

	const bound = 2
	var inFlight, peak atomic.Int64

	u, err := upload.NewUploader(upload.UploaderConfig{
		Initializer: &fakeInit{},
		Transport: transportFunc(func(ctx context.Context, d *descriptor.Descriptor, f *descriptor.FileRef, opts transport.Options) (*transport.Result, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return &transport.Result{Key: f.Name}, nil
		}),
		Policy: fastPolicy(0),
	})
	require.NoError(t, err)

	results := u.UploadMany(context.Background(), batchFiles(6, 64), upload.BatchOptions{Concurrency: bound})
	for i, r := range results {
		assert.NoError(t, r.Err, "file %d", i)
	}
	assert.LessOrEqual(t, peak.Load(), int64(bound))
	assert.Positive(t, peak.Load())
}

func TestUploadMany_OverallAggregation(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var last progress.Progress
	perFile := map[int]progress.Progress{}

	u, err := upload.NewUploader(upload.UploaderConfig{
		Initializer: &fakeInit{},
		Transport: transportFunc(func(ctx context.Context, d *descriptor.Descriptor, f *descriptor.FileRef, opts transport.Options) (*transport.Result, error) {
			if opts.OnProgress != nil {
				opts.OnProgress(progress.New(f.Size/2, f.Size))
				opts.OnProgress(progress.New(f.Size, f.Size))
			}
			return &transport.Result{Key: f.Name}, nil
		}),
		Policy: fastPolicy(0),
	})
	require.NoError(t, err)

	results := u.UploadMany(context.Background(), batchFiles(3, 300), upload.BatchOptions{
		OnFileProgress: func(i int, p progress.Progress) {
			mu.Lock()
			perFile[i] = p
			mu.Unlock()
		},
		OnOverallProgress: func(p progress.Progress) {
			mu.Lock()
			last = p
			mu.Unlock()
		},
	})
	for i, r := range results {
		require.NoError(t, r.Err, "file %d", i)
	}

	assert.Equal(t, int64(900), last.TotalBytes)
	assert.Equal(t, int64(900), last.BytesSent)
	assert.Equal(t, 100, last.Percent)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 100, perFile[i].Percent, "file %d", i)
	}
}

func TestUploadMany_CancelKeepsQueuedFromStarting(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 8)
	release := make(chan struct{})

	u, err := upload.NewUploader(upload.UploaderConfig{
		Initializer: &fakeInit{},
		Transport: transportFunc(func(ctx context.Context, d *descriptor.Descriptor, f *descriptor.FileRef, opts transport.Options) (*transport.Result, error) {
			started <- struct{}{}
			<-release
			if err := ctx.Err(); err != nil {
				return nil, uperr.Classify(uperr.PhaseUpload, err)
			}
			return &transport.Result{Key: f.Name}, nil
		}),
		Policy: fastPolicy(0),
	})
	require.NoError(t, err)

	done := make(chan []upload.Outcome, 1)
	go func() {
		done <- u.UploadMany(ctx, batchFiles(5, 64), upload.BatchOptions{Concurrency: 2})
	}()

	<-started
	<-started
	cancel()
	close(release)

	results := <-done
	require.Len(t, results, 5)

	// The two admitted files ran; every queued file settled without a start.
	for i := 2; i < 5; i++ {
		var ue *uperr.Error
		require.ErrorAs(t, results[i].Err, &ue, "file %d", i)
		assert.Equal(t, uperr.KindAborted, ue.Kind, "file %d", i)
	}
	assert.Empty(t, started, "no further transports after cancellation")
}

func TestUploadMany_Empty(t *testing.T) {
	t.Parallel()

	u := newUploader(t, &fakeInit{}, &fakeTransport{}, fastPolicy(0))
	results := u.UploadMany(context.Background(), nil, upload.BatchOptions{})
	assert.Empty(t, results)
}

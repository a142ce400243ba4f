// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport performs a single transfer attempt against the object
// store. Two interchangeable implementations exist: Streaming reports
// byte-level progress mid-flight, Plain buffers the body and reports only on
// completion. The orchestrator is agnostic to which one it drives.
package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sundryfs/uplift/pkg/descriptor"
	"github.com/sundryfs/uplift/pkg/progress"
	"github.com/sundryfs/uplift/pkg/uperr"
)

// maxErrorBody bounds how much of an error response is kept for diagnostics.
const maxErrorBody = 2 << 10

// Options tunes one transfer attempt.
type Options struct {
	// OnProgress receives byte-level updates. May be nil.
	OnProgress progress.Func

	// ProgressInterval is the minimum spacing between non-terminal
	// progress events. Zero means progress.DefaultInterval.
	ProgressInterval time.Duration
}

// Result is the settled outcome of a successful transfer.
type Result struct {
	Key      string          `json:"key"`
	Location string          `json:"location,omitempty"`
	ETag     string          `json:"etag,omitempty"`
	Kind     descriptor.Kind `json:"kind"`
}

// Transport sends one descriptor+file pair to the store.
type Transport interface {
	Upload(ctx context.Context, d *descriptor.Descriptor, file *descriptor.FileRef, opts Options) (*Result, error)
}

// do issues the request and settles it into a Result or a classified error.
func do(client *http.Client, req *http.Request, d *descriptor.Descriptor) (*Result, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, uperr.Classify(uperr.PhaseUpload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, uperr.FromResponse(uperr.PhaseUpload, resp.StatusCode, string(body))
	}

	return &Result{
		Key:      d.Key,
		Location: resp.Header.Get("Location"),
		ETag:     strings.Trim(resp.Header.Get("ETag"), `"`),
		Kind:     d.Kind,
	}, nil
}

// emitTerminal delivers the final 100% event, bypassing any throttling.
func emitTerminal(opts Options, size int64) {
	if opts.OnProgress != nil {
		opts.OnProgress(progress.New(size, size))
	}
}

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	// Deadlines are the caller's concern: the orchestrator cancels via
	// context, and store-side limits bound the transfer.
	return &http.Client{}
}

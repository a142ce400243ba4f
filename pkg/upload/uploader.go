// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

// Package upload orchestrates the two-phase presigned upload protocol: mint
// a descriptor, transfer the bytes, and retry with backoff (re-initializing
// on descriptor expiry) until the attempt budget runs out.
package upload

import (
	"context"
	"errors"
	"time"

	"github.com/sundryfs/uplift/pkg/descriptor"
	"github.com/sundryfs/uplift/pkg/logger"
	"github.com/sundryfs/uplift/pkg/progress"
	"github.com/sundryfs/uplift/pkg/transport"
	"github.com/sundryfs/uplift/pkg/uperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UploaderConfig configures an Uploader.
type UploaderConfig struct {
	// Initializer mints descriptors. Required.
	Initializer Initializer

	// Transport performs single transfer attempts. Defaults to streaming.
	Transport transport.Transport

	// Policy bounds the retry loop. Zero value means DefaultRetryPolicy.
	Policy RetryPolicy

	// ProgressInterval gates non-terminal progress events. Zero means
	// progress.DefaultInterval.
	ProgressInterval time.Duration
}

// Uploader drives orchestrated uploads. Safe for concurrent use.
type Uploader struct {
	init     Initializer
	tr       transport.Transport
	policy   RetryPolicy
	interval time.Duration
}

// NewUploader validates the config and applies defaults.
func NewUploader(cfg UploaderConfig) (*Uploader, error) {
	if cfg.Initializer == nil {
		return nil, errors.New("upload: missing initializer")
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.NewStreaming(nil)
	}
	if cfg.Policy == (RetryPolicy{}) {
		cfg.Policy = DefaultRetryPolicy()
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	return &Uploader{
		init:     cfg.Initializer,
		tr:       cfg.Transport,
		policy:   cfg.Policy,
		interval: cfg.ProgressInterval,
	}, nil
}

// UploadOptions tunes one orchestrated upload.
type UploadOptions struct {
	// OnProgress receives byte-level progress for this file. May be nil.
	OnProgress progress.Func
}

// Upload runs the full retry/reinit state machine for one file and blocks
// until it settles. The returned error, if any, is always a *uperr.Error.
func (u *Uploader) Upload(ctx context.Context, file *descriptor.FileRef, opts UploadOptions) (*transport.Result, error) {
	if err := file.Validate(); err != nil {
		return nil, &uperr.Error{Phase: uperr.PhaseInit, Kind: uperr.KindBadRequest, Cause: err}
	}

	log := logger.Ctx(ctx).With().
		Str("upload_id", uuid.NewString()).
		Str("file", file.Name).
		Int64("size", file.Size).
		Logger()

	InFlight.Inc()
	defer InFlight.Dec()
	start := time.Now()

	var (
		desc    *descriptor.Descriptor
		lastErr *uperr.Error
	)
	attempts := u.policy.Attempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		// Observe the cancellation token at every suspension boundary.
		if err := ctx.Err(); err != nil {
			return nil, u.fail(&log, uperr.Aborted(phaseFor(desc), err))
		}

		if desc == nil || (lastErr != nil && lastErr.NeedsReinit() && u.policy.ReinitOnAuthError) {
			reinit := desc != nil
			d, err := u.init.Init(ctx, file)
			if err != nil {
				lastErr = uperr.Classify(uperr.PhaseInit, err)
				if u.terminal(ctx, attempt, lastErr) {
					return nil, u.fail(&log, lastErr)
				}
				if err := u.suspend(ctx, &log, attempt, lastErr); err != nil {
					return nil, u.fail(&log, uperr.Aborted(uperr.PhaseInit, err))
				}
				continue
			}
			if reinit {
				ReinitsTotal.Inc()
				log.Debug().Str("key", d.Key).Msg("upload: descriptor re-initialized")
			}
			desc = d
		}

		AttemptsTotal.Inc()
		res, err := u.tr.Upload(ctx, desc, file, transport.Options{
			OnProgress:       opts.OnProgress,
			ProgressInterval: u.interval,
		})
		if err == nil {
			UploadsTotal.WithLabelValues("completed").Inc()
			BytesSentTotal.Add(float64(file.Size))
			UploadDuration.Observe(time.Since(start).Seconds())
			log.Debug().
				Int("attempt", attempt).
				Str("key", res.Key).
				Msg("upload: completed")
			return res, nil
		}

		lastErr = uperr.Classify(uperr.PhaseUpload, err)
		if u.terminal(ctx, attempt, lastErr) {
			return nil, u.fail(&log, lastErr)
		}
		if err := u.suspend(ctx, &log, attempt, lastErr); err != nil {
			return nil, u.fail(&log, uperr.Aborted(uperr.PhaseUpload, err))
		}
	}

	return nil, u.fail(&log, lastErr)
}

// terminal reports whether the failed attempt ends the orchestrated call.
func (u *Uploader) terminal(ctx context.Context, attempt int, err *uperr.Error) bool {
	if attempt >= u.policy.Attempts() {
		return true
	}
	if !err.Retryable() {
		return true
	}
	return ctx.Err() != nil
}

// suspend sleeps out the backoff delay, honoring cancellation.
func (u *Uploader) suspend(ctx context.Context, log *zerolog.Logger, attempt int, cause *uperr.Error) error {
	delay := u.policy.Delay(attempt)
	log.Warn().
		Int("attempt", attempt).
		Dur("delay", delay).
		Str("kind", string(cause.Kind)).
		Str("phase", string(cause.Phase)).
		Msg("upload: attempt failed, retrying")

	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *Uploader) fail(log *zerolog.Logger, err *uperr.Error) *uperr.Error {
	UploadsTotal.WithLabelValues("failed").Inc()
	log.Warn().
		Str("kind", string(err.Kind)).
		Str("phase", string(err.Phase)).
		Int("status", err.Status).
		Msg("upload: failed")
	return err
}

func phaseFor(desc *descriptor.Descriptor) uperr.Phase {
	if desc != nil {
		return uperr.PhaseUpload
	}
	return uperr.PhaseInit
}

// Operation is a handle for an in-flight upload started with Start.
type Operation struct {
	cancel context.CancelFunc
	done   chan struct{}
	res    *transport.Result
	err    error
}

// Start launches Upload in the background and returns a handle composing
// the caller's context with a locally-owned cancel: either one aborts the
// operation.
func (u *Uploader) Start(ctx context.Context, file *descriptor.FileRef, opts UploadOptions) *Operation {
	ctx, cancel := context.WithCancel(ctx)
	op := &Operation{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(op.done)
		defer cancel()
		op.res, op.err = u.Upload(ctx, file, opts)
	}()
	return op
}

// Cancel aborts the operation. Idempotent; a no-op after settlement.
func (o *Operation) Cancel() {
	o.cancel()
}

// Done is closed once the operation settles.
func (o *Operation) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until settlement and returns the outcome.
func (o *Operation) Wait() (*transport.Result, error) {
	<-o.done
	return o.res, o.err
}

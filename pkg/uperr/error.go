// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

// Package uperr classifies upload failures into a fixed taxonomy so the
// orchestrator can decide whether an attempt is retryable and whether a
// fresh descriptor is needed.
package uperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
)

// Phase identifies which half of the two-phase protocol failed.
type Phase string

const (
	PhaseInit   Phase = "init"
	PhaseUpload Phase = "upload"
)

// Kind is the failure classification.
type Kind string

const (
	KindNetwork    Kind = "NETWORK"
	KindTimeout    Kind = "TIMEOUT"
	KindExpired    Kind = "EXPIRED"
	KindAborted    Kind = "ABORTED"
	KindBadRequest Kind = "BAD_REQUEST"
	KindServer     Kind = "SERVER"
)

// Error is a classified upload failure. It carries enough structure for a
// caller to drive its own recovery or UI logic.
type Error struct {
	Phase  Phase
	Kind   Kind
	Status int    // HTTP status, 0 when the failure never reached a response
	Body   string // response body excerpt, empty when not applicable
	Cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s %s: status %d", e.Phase, e.Kind, e.Status)
	case e.Cause != nil:
		return fmt.Sprintf("%s %s: %v", e.Phase, e.Kind, e.Cause)
	default:
		return fmt.Sprintf("%s %s", e.Phase, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the orchestrator may try again. EXPIRED is
// retryable too: whether the next attempt gets a fresh descriptor or reuses
// the stale one is the retry policy's call, not the taxonomy's.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindServer, KindExpired:
		return true
	default:
		return false
	}
}

// NeedsReinit reports whether the next attempt must mint a fresh descriptor.
func (e *Error) NeedsReinit() bool {
	return e.Kind == KindExpired
}

// Classify normalizes a raw transport error into a classified Error.
// Cancellation takes precedence over every other classification.
func Classify(phase Phase, err error) *Error {
	var ue *Error
	if errors.As(err, &ue) {
		return ue
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Phase: phase, Kind: KindAborted, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return &Error{Phase: phase, Kind: KindTimeout, Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Phase: phase, Kind: KindTimeout, Cause: err}
	}

	// Unclassified failures count as connectivity problems with the raw
	// cause attached for diagnostics.
	return &Error{Phase: phase, Kind: KindNetwork, Cause: err}
}

// FromResponse classifies a non-2xx HTTP response.
func FromResponse(phase Phase, status int, body string) *Error {
	return &Error{Phase: phase, Kind: kindForStatus(status), Status: status, Body: body}
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusForbidden:
		return KindExpired
	case status >= 400 && status < 500:
		return KindBadRequest
	case status >= 500:
		return KindServer
	default:
		return KindNetwork
	}
}

// Aborted builds the classified error for a cancellation observed at a
// suspension point, before any request was issued.
func Aborted(phase Phase, cause error) *Error {
	return &Error{Phase: phase, Kind: KindAborted, Cause: cause}
}

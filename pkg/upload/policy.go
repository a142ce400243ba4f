// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"errors"
	"fmt"
	"time"
)

// Backoff selects how retry delays grow between attempts.
type Backoff string

const (
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// Default retry configuration values
const (
	DefaultRetries  = 0
	DefaultMinDelay = 500 * time.Millisecond
	DefaultMaxDelay = 4 * time.Second
)

// RetryPolicy bounds the orchestrator's attempt loop. Immutable for the
// lifetime of one upload call.
type RetryPolicy struct {
	// Retries is the number of re-attempts after the first; total
	// attempts = Retries+1.
	Retries int `mapstructure:"retries"`

	// Backoff is the delay growth family.
	Backoff Backoff `mapstructure:"backoff"`

	// MinDelay and MaxDelay bound the computed delay.
	MinDelay time.Duration `mapstructure:"min_delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`

	// ReinitOnAuthError makes an EXPIRED failure retryable by minting a
	// fresh descriptor before the next attempt. When false the stale
	// descriptor is reused until the budget runs out; callers who disable
	// this accept repeated failures against an expired descriptor.
	ReinitOnAuthError bool `mapstructure:"reinit_on_auth_error"`
}

// DefaultRetryPolicy returns the documented defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:           DefaultRetries,
		Backoff:           BackoffExponential,
		MinDelay:          DefaultMinDelay,
		MaxDelay:          DefaultMaxDelay,
		ReinitOnAuthError: true,
	}
}

// Validate checks the policy is internally consistent.
func (p RetryPolicy) Validate() error {
	if p.Retries < 0 {
		return fmt.Errorf("retry: negative retries %d", p.Retries)
	}
	if p.MinDelay < 0 || p.MaxDelay < 0 || p.MinDelay > p.MaxDelay {
		return fmt.Errorf("retry: invalid delay bounds [%s, %s]", p.MinDelay, p.MaxDelay)
	}
	switch p.Backoff {
	case BackoffLinear, BackoffExponential:
		return nil
	default:
		return errors.New("retry: unknown backoff " + string(p.Backoff))
	}
}

// Attempts is the total attempt budget.
func (p RetryPolicy) Attempts() int {
	return p.Retries + 1
}

// Delay computes the suspension before the attempt following failed attempt
// number `attempt` (1-based). Linear grows as min*n, exponential as
// min*2^(n-1); both clamp at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var d time.Duration
	switch p.Backoff {
	case BackoffLinear:
		d = p.MinDelay * time.Duration(attempt)
	default:
		if attempt-1 >= 62 {
			return p.MaxDelay
		}
		d = p.MinDelay << (attempt - 1)
	}
	if d > p.MaxDelay || d < 0 {
		d = p.MaxDelay
	}
	return d
}

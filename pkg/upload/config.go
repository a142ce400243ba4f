// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sundryfs/uplift/pkg/transport"
)

// TransportKind selects a transport implementation by name.
type TransportKind string

const (
	TransportStreaming TransportKind = "streaming"
	TransportPlain     TransportKind = "plain"
)

// Config is the file/env-loadable configuration surface consumed by the CLI.
type Config struct {
	// Init configures the backend init endpoint.
	Init InitConfig `mapstructure:"init"`

	// Retry bounds the orchestrator's attempt loop.
	Retry RetryPolicy `mapstructure:"retry"`

	// Transport selects the transfer implementation.
	Transport TransportKind `mapstructure:"transport"`

	// ProgressInterval gates non-terminal progress events.
	ProgressInterval time.Duration `mapstructure:"progress_interval"`

	// Concurrency is the batch admission bound.
	Concurrency int `mapstructure:"concurrency"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Retry:            DefaultRetryPolicy(),
		Transport:        TransportStreaming,
		ProgressInterval: 120 * time.Millisecond,
		Concurrency:      DefaultConcurrency,
	}
}

// NewTransport builds the configured transport. A nil client gets a default
// one with no internal timeout.
func (c Config) NewTransport(client *http.Client) (transport.Transport, error) {
	switch c.Transport {
	case TransportStreaming, "":
		return transport.NewStreaming(client), nil
	case TransportPlain:
		return transport.NewPlain(client), nil
	default:
		return nil, fmt.Errorf("config: unknown transport %q", c.Transport)
	}
}

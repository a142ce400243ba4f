// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sundryfs/uplift/pkg/descriptor"
	"github.com/sundryfs/uplift/pkg/uperr"
)

// Initializer mints a fresh upload descriptor. Each call is independent and
// may return a descriptor with its own expiry.
type Initializer interface {
	Init(ctx context.Context, file *descriptor.FileRef) (*descriptor.Descriptor, error)
}

// Compile-time interface verification
var _ Initializer = (*InitClient)(nil)

// InitRequest is the default payload sent to the init endpoint.
type InitRequest struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// InitConfig configures the backend init endpoint call.
type InitConfig struct {
	// URL of the init endpoint. Required.
	URL string `mapstructure:"url"`

	// Method defaults to POST. GET skips the payload.
	Method string `mapstructure:"method"`

	// Headers are attached to every init request.
	Headers map[string]string `mapstructure:"headers"`

	// HeadersFunc computes additional headers per call (e.g. a fresh auth
	// token). Computed headers win over static ones.
	HeadersFunc func() map[string]string `mapstructure:"-"`

	// Payload builds the request body from file metadata. Nil uses
	// InitRequest.
	Payload func(*descriptor.FileRef) any `mapstructure:"-"`

	// MapResponse normalizes the endpoint's JSON body into a descriptor.
	// Nil uses DefaultMapResponse.
	MapResponse func(json.RawMessage) (*descriptor.Descriptor, error) `mapstructure:"-"`

	// Client defaults to a client with no internal timeout.
	Client *http.Client `mapstructure:"-"`
}

// InitClient calls an application backend to mint upload descriptors.
type InitClient struct {
	cfg    InitConfig
	client *http.Client
}

// NewInitClient validates the config and applies defaults.
func NewInitClient(cfg InitConfig) (*InitClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("init: missing endpoint URL")
	}
	switch cfg.Method {
	case "":
		cfg.Method = http.MethodPost
	case http.MethodPost, http.MethodGet:
	default:
		return nil, fmt.Errorf("init: unsupported method %s", cfg.Method)
	}
	if cfg.MapResponse == nil {
		cfg.MapResponse = DefaultMapResponse
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &InitClient{cfg: cfg, client: client}, nil
}

// Init issues one request to the init endpoint and normalizes the response.
// All failures come back as classified init-phase errors.
func (c *InitClient) Init(ctx context.Context, file *descriptor.FileRef) (*descriptor.Descriptor, error) {
	var body io.Reader
	if c.cfg.Method != http.MethodGet {
		payload := any(InitRequest{Name: file.Name, Size: file.Size, ContentType: file.ContentType})
		if c.cfg.Payload != nil {
			payload = c.cfg.Payload(file)
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &uperr.Error{Phase: uperr.PhaseInit, Kind: uperr.KindBadRequest, Cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, c.cfg.Method, c.cfg.URL, body)
	if err != nil {
		return nil, &uperr.Error{Phase: uperr.PhaseInit, Kind: uperr.KindBadRequest, Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	if c.cfg.HeadersFunc != nil {
		for k, v := range c.cfg.HeadersFunc() {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, uperr.Classify(uperr.PhaseInit, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, uperr.Classify(uperr.PhaseInit, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, uperr.FromResponse(uperr.PhaseInit, resp.StatusCode, string(raw))
	}

	d, err := c.cfg.MapResponse(raw)
	if err != nil {
		return nil, &uperr.Error{Phase: uperr.PhaseInit, Kind: uperr.KindBadRequest,
			Cause: fmt.Errorf("map response: %w", err)}
	}
	if err := d.Validate(); err != nil {
		return nil, &uperr.Error{Phase: uperr.PhaseInit, Kind: uperr.KindBadRequest, Cause: err}
	}
	return d, nil
}

// DefaultMapResponse decodes the canonical descriptor wire shape.
func DefaultMapResponse(raw json.RawMessage) (*descriptor.Descriptor, error) {
	var d descriptor.Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

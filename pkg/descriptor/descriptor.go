// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

// Package descriptor defines the backend-issued upload authorization and the
// file reference that flows through the transfer pipeline.
package descriptor

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Kind discriminates the two descriptor variants. Consumers must switch on
// it exhaustively rather than probing for field presence.
type Kind string

const (
	// KindPut is a single-request binary upload against a presigned URL.
	KindPut Kind = "put"

	// KindPost is a multipart form upload against a POST policy. Policy
	// fields must be serialized before the file part.
	KindPost Kind = "post"
)

// DefaultFileField is the multipart field name for the file part unless the
// descriptor overrides it.
const DefaultFileField = "file"

var (
	ErrMissingURL  = errors.New("descriptor: missing target URL")
	ErrMissingKey  = errors.New("descriptor: missing object key")
	ErrUnknownKind = errors.New("descriptor: unknown kind")
)

// Descriptor is the time-limited authorization for one direct client-to-store
// transfer. Exactly one variant is active, selected by Kind.
type Descriptor struct {
	Kind Kind   `json:"kind"`
	URL  string `json:"url"`
	Key  string `json:"key"`

	// Headers are attached verbatim to the PUT request. PUT variant only.
	Headers map[string]string `json:"headers,omitempty"`

	// Fields are the POST policy fields. The transport serializes every
	// field before the file part; the store rejects any other ordering.
	Fields map[string]string `json:"fields,omitempty"`

	// FileField overrides the multipart field name for the file part.
	// POST variant only. Empty means DefaultFileField.
	FileField string `json:"fileField,omitempty"`

	// ExpiresAt is when the authorization lapses. Zero means unknown.
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Validate checks that the descriptor is structurally complete for its
// declared variant.
func (d *Descriptor) Validate() error {
	if d.URL == "" {
		return ErrMissingURL
	}
	if d.Key == "" {
		return ErrMissingKey
	}
	switch d.Kind {
	case KindPut, KindPost:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, d.Kind)
	}
}

// FileFieldName returns the multipart field name for the file part.
func (d *Descriptor) FileFieldName() string {
	if d.FileField != "" {
		return d.FileField
	}
	return DefaultFileField
}

// Expired reports whether the descriptor is known to have lapsed at t.
func (d *Descriptor) Expired(t time.Time) bool {
	return !d.ExpiresAt.IsZero() && t.After(d.ExpiresAt)
}

// FileRef is an opaque byte source with known metadata. Open must return a
// fresh reader positioned at the start, so a retried attempt can replay the
// body.
type FileRef struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Validate checks the reference is usable by a transport.
func (f *FileRef) Validate() error {
	if f.Name == "" {
		return errors.New("file: missing name")
	}
	if f.Size < 0 {
		return fmt.Errorf("file %s: negative size %d", f.Name, f.Size)
	}
	if f.Open == nil {
		return fmt.Errorf("file %s: missing Open func", f.Name)
	}
	return nil
}

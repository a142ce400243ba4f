// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/sundryfs/uplift/pkg/descriptor"
	"github.com/sundryfs/uplift/pkg/progress"
	"github.com/sundryfs/uplift/pkg/uperr"
)

// Compile-time interface verification
var _ Transport = (*Streaming)(nil)

// Streaming uploads straight from the file reader, reporting byte-level
// progress while the body is in flight. Cancelling the context abandons the
// request and the transfer fails with ABORTED.
type Streaming struct {
	client *http.Client
}

// NewStreaming creates a streaming transport. A nil client gets a default
// one with no internal timeout.
func NewStreaming(client *http.Client) *Streaming {
	return &Streaming{client: defaultClient(client)}
}

func (s *Streaming) Upload(ctx context.Context, d *descriptor.Descriptor, file *descriptor.FileRef, opts Options) (*Result, error) {
	if err := d.Validate(); err != nil {
		return nil, &uperr.Error{Phase: uperr.PhaseUpload, Kind: uperr.KindBadRequest, Cause: err}
	}
	src, err := file.Open()
	if err != nil {
		return nil, uperr.Classify(uperr.PhaseUpload, err)
	}
	defer src.Close()

	counted := &countingReader{
		r:     src,
		total: file.Size,
		th:    progress.NewThrottler(opts.ProgressInterval),
		fn:    opts.OnProgress,
	}

	var req *http.Request
	switch d.Kind {
	case descriptor.KindPut:
		req, err = s.putRequest(ctx, d, file, counted)
	case descriptor.KindPost:
		req, err = s.postRequest(ctx, d, file, counted)
	default:
		return nil, &uperr.Error{Phase: uperr.PhaseUpload, Kind: uperr.KindBadRequest, Cause: descriptor.ErrUnknownKind}
	}
	if err != nil {
		return nil, uperr.Classify(uperr.PhaseUpload, err)
	}

	res, err := do(s.client, req, d)
	if err != nil {
		return nil, err
	}
	emitTerminal(opts, file.Size)
	return res, nil
}

func (s *Streaming) putRequest(ctx context.Context, d *descriptor.Descriptor, file *descriptor.FileRef, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, d.URL, body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = file.Size
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" && file.ContentType != "" {
		req.Header.Set("Content-Type", file.ContentType)
	}
	return req, nil
}

// postRequest pipes the multipart body so the file is never buffered whole.
func (s *Streaming) postRequest(ctx context.Context, d *descriptor.Descriptor, file *descriptor.FileRef, body io.Reader) (*http.Request, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(mw, d, file, body))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

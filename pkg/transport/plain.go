// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/sundryfs/uplift/pkg/descriptor"
	"github.com/sundryfs/uplift/pkg/uperr"
)

// Compile-time interface verification
var _ Transport = (*Plain)(nil)

// Plain buffers the whole request body before sending. It has no mid-flight
// progress visibility; the progress callback fires only with the terminal
// event after the store acknowledges the transfer. Cancellation is still
// honored through the request context.
type Plain struct {
	client *http.Client
}

// NewPlain creates a buffering transport. A nil client gets a default one
// with no internal timeout.
func NewPlain(client *http.Client) *Plain {
	return &Plain{client: defaultClient(client)}
}

func (p *Plain) Upload(ctx context.Context, d *descriptor.Descriptor, file *descriptor.FileRef, opts Options) (*Result, error) {
	if err := d.Validate(); err != nil {
		return nil, &uperr.Error{Phase: uperr.PhaseUpload, Kind: uperr.KindBadRequest, Cause: err}
	}
	src, err := file.Open()
	if err != nil {
		return nil, uperr.Classify(uperr.PhaseUpload, err)
	}
	defer src.Close()

	var req *http.Request
	switch d.Kind {
	case descriptor.KindPut:
		req, err = p.putRequest(ctx, d, file, src)
	case descriptor.KindPost:
		req, err = p.postRequest(ctx, d, file, src)
	default:
		return nil, &uperr.Error{Phase: uperr.PhaseUpload, Kind: uperr.KindBadRequest, Cause: descriptor.ErrUnknownKind}
	}
	if err != nil {
		return nil, uperr.Classify(uperr.PhaseUpload, err)
	}

	res, err := do(p.client, req, d)
	if err != nil {
		return nil, err
	}
	emitTerminal(opts, file.Size)
	return res, nil
}

func (p *Plain) putRequest(ctx context.Context, d *descriptor.Descriptor, file *descriptor.FileRef, src io.Reader) (*http.Request, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, d.URL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(data))
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" && file.ContentType != "" {
		req.Header.Set("Content-Type", file.ContentType)
	}
	return req, nil
}

func (p *Plain) postRequest(ctx context.Context, d *descriptor.Descriptor, file *descriptor.FileRef, src io.Reader) (*http.Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeForm(mw, d, file, src); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(buf.Len())
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

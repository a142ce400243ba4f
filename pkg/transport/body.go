// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"

	"github.com/sundryfs/uplift/pkg/descriptor"
	"github.com/sundryfs/uplift/pkg/progress"
)

// writeForm serializes a POST policy upload into w. Every policy field is
// written before the file part; the store rejects any other ordering.
func writeForm(w *multipart.Writer, d *descriptor.Descriptor, file *descriptor.FileRef, body io.Reader) error {
	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := w.WriteField(k, d.Fields[k]); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, d.FileFieldName(), file.Name))
	if file.ContentType != "" {
		h.Set("Content-Type", file.ContentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("copy file part: %w", err)
	}
	return w.Close()
}

// countingReader tracks bytes read from the underlying file and reports
// throttled non-terminal progress. The terminal event is the transport's
// responsibility, emitted once the store acknowledges the transfer.
type countingReader struct {
	r     io.Reader
	total int64
	sent  int64
	th    *progress.Throttler
	fn    progress.Func
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.fn != nil && c.sent < c.total && c.th.ShouldEmit(c.sent, c.total) {
			c.fn(progress.New(c.sent, c.total))
		}
	}
	return n, err
}

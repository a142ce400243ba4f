// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package transport_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sundryfs/uplift/pkg/descriptor"
	"github.com/sundryfs/uplift/pkg/progress"
	"github.com/sundryfs/uplift/pkg/transport"
	"github.com/sundryfs/uplift/pkg/uperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileRef(name, contentType string, data []byte) *descriptor.FileRef {
	return &descriptor.FileRef{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func transports(t *testing.T) map[string]transport.Transport {
	t.Helper()
	return map[string]transport.Transport{
		"streaming": transport.NewStreaming(nil),
		"plain":     transport.NewPlain(nil),
	}
}

func TestUpload_Put_Success(t *testing.T) {
	t.Parallel()

	data := []byte("hello object store")

	for name, tr := range transports(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, "private", r.Header.Get("X-Amz-Acl"))
				assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))

				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Equal(t, data, body)

				w.Header().Set("ETag", `"abc123"`)
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			d := &descriptor.Descriptor{
				Kind:    descriptor.KindPut,
				URL:     srv.URL + "/bucket/uploads/hello.txt?sig=x",
				Key:     "uploads/hello.txt",
				Headers: map[string]string{"X-Amz-Acl": "private"},
			}

			res, err := tr.Upload(context.Background(), d, fileRef("hello.txt", "text/plain", data), transport.Options{})
			require.NoError(t, err)
			assert.Equal(t, "uploads/hello.txt", res.Key)
			assert.Equal(t, "abc123", res.ETag)
			assert.Equal(t, descriptor.KindPut, res.Kind)
		})
	}
}

func TestUpload_Post_FieldsPrecedeFile(t *testing.T) {
	t.Parallel()

	data := []byte("form body bytes")

	for name, tr := range transports(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var order []string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)

				_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
				require.NoError(t, err)
				mr := multipart.NewReader(r.Body, params["boundary"])
				for {
					part, err := mr.NextPart()
					if errors.Is(err, io.EOF) {
						break
					}
					require.NoError(t, err)
					order = append(order, part.FormName())
					if part.FileName() != "" {
						body, err := io.ReadAll(part)
						require.NoError(t, err)
						assert.Equal(t, data, body)
					}
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer srv.Close()

			d := &descriptor.Descriptor{
				Kind: descriptor.KindPost,
				URL:  srv.URL,
				Key:  "uploads/form.bin",
				Fields: map[string]string{
					"key":             "uploads/form.bin",
					"policy":          "base64policy",
					"x-amz-signature": "sig",
				},
				FileField: "upload",
			}

			res, err := tr.Upload(context.Background(), d, fileRef("form.bin", "application/octet-stream", data), transport.Options{})
			require.NoError(t, err)
			assert.Equal(t, descriptor.KindPost, res.Kind)

			// Every policy field arrives before the file part.
			require.NotEmpty(t, order)
			assert.Equal(t, "upload", order[len(order)-1])
			assert.ElementsMatch(t, []string{"key", "policy", "x-amz-signature"}, order[:len(order)-1])
		})
	}
}

func TestUpload_StatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		kind   uperr.Kind
	}{
		{http.StatusForbidden, uperr.KindExpired},
		{http.StatusBadRequest, uperr.KindBadRequest},
		{http.StatusInternalServerError, uperr.KindServer},
	}

	for name, tr := range transports(t) {
		for _, tc := range cases {
			t.Run(name+"/"+string(tc.kind), func(t *testing.T) {
				t.Parallel()

				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					http.Error(w, "nope", tc.status)
				}))
				defer srv.Close()

				d := &descriptor.Descriptor{Kind: descriptor.KindPut, URL: srv.URL, Key: "k"}
				_, err := tr.Upload(context.Background(), d, fileRef("f", "", []byte("x")), transport.Options{})

				var ue *uperr.Error
				require.ErrorAs(t, err, &ue)
				assert.Equal(t, tc.kind, ue.Kind)
				assert.Equal(t, tc.status, ue.Status)
				assert.Equal(t, uperr.PhaseUpload, ue.Phase)
			})
		}
	}
}

func TestUpload_CancelMidTransfer(t *testing.T) {
	t.Parallel()

	for name, tr := range transports(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				<-release
			}))
			defer srv.Close()
			defer close(release)

			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				time.Sleep(30 * time.Millisecond)
				cancel()
			}()

			d := &descriptor.Descriptor{Kind: descriptor.KindPut, URL: srv.URL, Key: "k"}
			_, err := tr.Upload(ctx, d, fileRef("f", "", []byte("x")), transport.Options{})

			var ue *uperr.Error
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, uperr.KindAborted, ue.Kind)
		})
	}
}

func TestUpload_ConnectionRefused(t *testing.T) {
	t.Parallel()

	d := &descriptor.Descriptor{Kind: descriptor.KindPut, URL: "http://127.0.0.1:1/nope", Key: "k"}
	_, err := transport.NewStreaming(nil).Upload(context.Background(), d, fileRef("f", "", []byte("x")), transport.Options{})

	var ue *uperr.Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, uperr.KindNetwork, ue.Kind)
}

func TestUpload_InvalidDescriptor(t *testing.T) {
	t.Parallel()

	for name, tr := range transports(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			d := &descriptor.Descriptor{Kind: "chunked", URL: "http://x", Key: "k"}
			_, err := tr.Upload(context.Background(), d, fileRef("f", "", []byte("x")), transport.Options{})

			var ue *uperr.Error
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, uperr.KindBadRequest, ue.Kind)
		})
	}
}

func TestUpload_Streaming_Progress(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("a"), 1<<20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var events []progress.Progress
	opts := transport.Options{
		ProgressInterval: time.Nanosecond,
		OnProgress: func(p progress.Progress) {
			events = append(events, p)
		},
	}

	d := &descriptor.Descriptor{Kind: descriptor.KindPut, URL: srv.URL, Key: "k"}
	_, err := transport.NewStreaming(nil).Upload(context.Background(), d, fileRef("big.bin", "", data), opts)
	require.NoError(t, err)

	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].BytesSent, events[i-1].BytesSent, "progress must not regress")
	}
	final := events[len(events)-1]
	assert.Equal(t, int64(len(data)), final.BytesSent)
	assert.Equal(t, 100, final.Percent)
}

func TestUpload_Plain_NoMidflightProgress(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var events []progress.Progress
	opts := transport.Options{
		ProgressInterval: time.Nanosecond,
		OnProgress: func(p progress.Progress) {
			events = append(events, p)
		},
	}

	data := bytes.Repeat([]byte("b"), 1<<18)
	d := &descriptor.Descriptor{Kind: descriptor.KindPut, URL: srv.URL, Key: "k"}
	_, err := transport.NewPlain(nil).Upload(context.Background(), d, fileRef("f", "", data), opts)
	require.NoError(t, err)

	// Only the terminal event fires.
	require.Len(t, events, 1)
	assert.Equal(t, 100, events[0].Percent)
}

func TestUpload_Put_RawBodyNotMultipart(t *testing.T) {
	t.Parallel()

	data := []byte("raw bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, data, body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := &descriptor.Descriptor{Kind: descriptor.KindPut, URL: srv.URL, Key: "k"}
	_, err := transport.NewPlain(nil).Upload(context.Background(), d, fileRef("f", "text/plain", data), transport.Options{})
	require.NoError(t, err)
}

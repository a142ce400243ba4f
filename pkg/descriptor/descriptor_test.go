// Copyright 2025 Uplift Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/sundryfs/uplift/pkg/descriptor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor_Validate(t *testing.T) {
	t.Parallel()

	valid := &descriptor.Descriptor{
		Kind: descriptor.KindPut,
		URL:  "https://bucket.example.com/key?sig=abc",
		Key:  "uploads/photo.jpg",
	}
	require.NoError(t, valid.Validate())

	post := &descriptor.Descriptor{
		Kind:   descriptor.KindPost,
		URL:    "https://bucket.example.com",
		Key:    "uploads/photo.jpg",
		Fields: map[string]string{"policy": "abc", "x-amz-signature": "def"},
	}
	require.NoError(t, post.Validate())
}

func TestDescriptor_Validate_Missing(t *testing.T) {
	t.Parallel()

	noURL := &descriptor.Descriptor{Kind: descriptor.KindPut, Key: "k"}
	assert.ErrorIs(t, noURL.Validate(), descriptor.ErrMissingURL)

	noKey := &descriptor.Descriptor{Kind: descriptor.KindPut, URL: "https://x"}
	assert.ErrorIs(t, noKey.Validate(), descriptor.ErrMissingKey)

	badKind := &descriptor.Descriptor{Kind: "multipart", URL: "https://x", Key: "k"}
	assert.ErrorIs(t, badKind.Validate(), descriptor.ErrUnknownKind)

	empty := &descriptor.Descriptor{URL: "https://x", Key: "k"}
	assert.ErrorIs(t, empty.Validate(), descriptor.ErrUnknownKind)
}

func TestDescriptor_FileFieldName(t *testing.T) {
	t.Parallel()

	d := &descriptor.Descriptor{Kind: descriptor.KindPost}
	assert.Equal(t, "file", d.FileFieldName())

	d.FileField = "attachment"
	assert.Equal(t, "attachment", d.FileFieldName())
}

func TestDescriptor_Expired(t *testing.T) {
	t.Parallel()

	now := time.Now()

	unset := &descriptor.Descriptor{}
	assert.False(t, unset.Expired(now))

	fresh := &descriptor.Descriptor{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, fresh.Expired(now))

	stale := &descriptor.Descriptor{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, stale.Expired(now))
}

func TestFileRef_Validate(t *testing.T) {
	t.Parallel()

	ok := &descriptor.FileRef{
		Name:        "photo.jpg",
		Size:        4,
		ContentType: "image/jpeg",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte("data"))), nil
		},
	}
	require.NoError(t, ok.Validate())

	assert.Error(t, (&descriptor.FileRef{Size: 1, Open: ok.Open}).Validate())
	assert.Error(t, (&descriptor.FileRef{Name: "x", Size: -1, Open: ok.Open}).Validate())
	assert.Error(t, (&descriptor.FileRef{Name: "x", Size: 1}).Validate())
}

package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func TestImageService_Upload(t *testing.T) {
	dir := t.TempDir()
	service := NewImageService(dir, "/uploads/", 1024)

	t.Run("stores png under a random name", func(t *testing.T) {
		uploaded, err := service.Upload(pngHeader)
		require.NoError(t, err)
		assert.Equal(t, "image/png", uploaded.MIMEType)
		assert.Equal(t, int64(len(pngHeader)), uploaded.Size)
		assert.Equal(t, "/uploads/"+uploaded.Filename, uploaded.URL)
		assert.Equal(t, ".png", filepath.Ext(uploaded.Filename))

		stored, err := os.ReadFile(filepath.Join(dir, uploaded.Filename))
		require.NoError(t, err)
		assert.Equal(t, pngHeader, stored)
	})

	t.Run("rejects non-image content", func(t *testing.T) {
		_, err := service.Upload([]byte("#!/bin/sh\nrm -rf /\n"))
		assert.ErrorIs(t, err, ErrUnsupportedImageType)
	})

	t.Run("rejects oversized payload", func(t *testing.T) {
		big := make([]byte, 2048)
		copy(big, pngHeader)
		_, err := service.Upload(big)
		assert.ErrorIs(t, err, ErrImageTooLarge)
	})

	t.Run("rejects empty payload", func(t *testing.T) {
		_, err := service.Upload(nil)
		assert.ErrorIs(t, err, ErrEmptyImage)
	})

	t.Run("filename extension is not trusted", func(t *testing.T) {
		// content sniffing decides the type, so plain text never passes
		// even when a caller claims it is an image.
		_, err := service.Upload([]byte("GIF-not-really"))
		assert.ErrorIs(t, err, ErrUnsupportedImageType)
	})
}

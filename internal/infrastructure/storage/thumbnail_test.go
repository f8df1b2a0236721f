package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestThumbnailProcessor_Normalize(t *testing.T) {
	p := NewThumbnailProcessor(64)

	out, err := p.Normalize(encodeJPEG(t, 256, 128))
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestThumbnailProcessor_SmallImageKeepsSize(t *testing.T) {
	p := NewThumbnailProcessor(0)
	assert.Equal(t, 512, p.MaxSide)

	out, err := p.Normalize(encodeJPEG(t, 40, 30))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
}

func TestThumbnailProcessor_Rejects(t *testing.T) {
	p := NewThumbnailProcessor(64)

	_, err := p.Normalize([]byte("not an image"))
	assert.Error(t, err)

	p.MaxSize = 10
	_, err = p.Normalize(encodeJPEG(t, 8, 8))
	assert.Error(t, err)
}

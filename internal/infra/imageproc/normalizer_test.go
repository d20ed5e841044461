package imageproc

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coloring-page-service/internal/domain"
)

func jpegOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 10 {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func TestNormalizer_Detect(t *testing.T) {
	n := NewNormalizer(0)

	mt, err := n.Detect(jpegOf(t, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mt)

	_, err = n.Detect([]byte("just some text, definitely not a picture"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedImage)

	_, err = n.Detect(nil)
	assert.ErrorIs(t, err, domain.ErrNoImage)
}

func TestNormalizer_DownscalesWideImages(t *testing.T) {
	n := NewNormalizer(1024)

	out, err := n.Normalize(context.Background(), jpegOf(t, 2000, 1500))
	require.NoError(t, err)

	assert.Equal(t, "image/png", out.MimeType)
	assert.Equal(t, 1024, out.Width)
	assert.Equal(t, 768, out.Height)

	cfg, err := png.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Width)
}

func TestNormalizer_NeverEnlarges(t *testing.T) {
	n := NewNormalizer(1024)

	out, err := n.Normalize(context.Background(), jpegOf(t, 300, 200))
	require.NoError(t, err)
	assert.Equal(t, 300, out.Width)
	assert.Equal(t, 200, out.Height)
}

func TestNormalizer_RejectsGarbage(t *testing.T) {
	n := NewNormalizer(1024)

	_, err := n.Normalize(context.Background(), []byte("%PDF-1.4 not an image"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedImage)

	// right magic bytes, broken body
	broken := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x00}, 64)...)
	_, err = n.Normalize(context.Background(), broken)
	assert.ErrorIs(t, err, domain.ErrUnsupportedImage)
}

func TestNormalizer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNormalizer(1024).Normalize(ctx, jpegOf(t, 20, 20))
	assert.ErrorIs(t, err, context.Canceled)
}

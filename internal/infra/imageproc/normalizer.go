// Package imageproc validates uploads and prepares them for the generation provider.
package imageproc

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp" // registers the webp decoder with image.Decode

	"coloring-page-service/internal/domain"
	"coloring-page-service/internal/domain/ports/adapter"
)

var _ adapter.ImageNormalizer = (*Normalizer)(nil)

const DefaultMaxWidth = 1024

// decodable formats; anything else is rejected before a job is created
var supported = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/bmp",
	"image/tiff",
	"image/webp",
}

// Normalizer resizes uploads to at most maxWidth pixels wide (never enlarging) and
// re-encodes them as PNG.
type Normalizer struct {
	maxWidth int
}

func NewNormalizer(maxWidth int) *Normalizer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Normalizer{maxWidth: maxWidth}
}

func (n *Normalizer) Detect(data []byte) (string, error) {
	if len(data) == 0 {
		return "", domain.ErrNoImage
	}
	mt := mimetype.Detect(data)
	for _, s := range supported {
		if mt.Is(s) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: detected %s", domain.ErrUnsupportedImage, mt.String())
}

func (n *Normalizer) Normalize(ctx context.Context, data []byte) (*adapter.NormalizedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := n.Detect(data); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrUnsupportedImage, err)
	}
	if img.Bounds().Dx() > n.maxWidth {
		img = imaging.Resize(img, n.maxWidth, 0, imaging.Lanczos)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	b := img.Bounds()
	return &adapter.NormalizedImage{
		Data:     buf.Bytes(),
		MimeType: "image/png",
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

package ai

import (
	"bytes"
	"context"
	"fmt"
	"image/color"

	"github.com/disintegration/imaging"

	"coloring-page-service/internal/domain"
	"coloring-page-service/internal/domain/ports/adapter"
)

var _ adapter.ImageGenerator = (*SketchAdapter)(nil)

// SketchAdapter is an offline generator for local development. It traces edges of the
// input photo and ignores the prompt.
type SketchAdapter struct {
	threshold uint8
}

func NewSketchAdapter() *SketchAdapter {
	return &SketchAdapter{threshold: 200}
}

func (s *SketchAdapter) Name() string { return "sketch" }

var laplacian = [9]float64{
	-1, -1, -1,
	-1, 8, -1,
	-1, -1, -1,
}

func (s *SketchAdapter) GenerateImage(ctx context.Context, req adapter.GenerateImageRequest) (*adapter.GeneratedImage, error) {
	if len(req.Image) == 0 {
		return nil, domain.ErrNoImage
	}
	src, err := imaging.Decode(bytes.NewReader(req.Image))
	if err != nil {
		return nil, fmt.Errorf("sketch: decode: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := imaging.Grayscale(src)
	img = imaging.Blur(img, 1.0)
	img = imaging.Convolve3x3(img, laplacian, &imaging.ConvolveOptions{Abs: true})
	img = imaging.Invert(img)
	img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		if c.R < s.threshold {
			return color.NRGBA{A: 255}
		}
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	})

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("sketch: encode: %w", err)
	}
	return &adapter.GeneratedImage{Data: buf.Bytes(), MimeType: "image/png"}, nil
}

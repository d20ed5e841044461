package adapter

import (
	"context"
	"encoding/base64"
)

// GenerateImageRequest is a single "photo + instructions" call.
type GenerateImageRequest struct {
	Model    string
	Prompt   string
	Image    []byte
	MimeType string
	Size     string // e.g. "1024x1024"; provider specific
	Quality  string
}

// GeneratedImage holds either inline image bytes or a hosted URL.
type GeneratedImage struct {
	Data     []byte
	MimeType string
	URL      string
}

// Reference returns the value stored as coloringPageUrl: a data URI when the provider
// returned inline bytes, the hosted URL otherwise, or "" when the result is empty.
func (g *GeneratedImage) Reference() string {
	if g == nil {
		return ""
	}
	if len(g.Data) > 0 {
		mt := g.MimeType
		if mt == "" {
			mt = "image/png"
		}
		return DataURI(mt, g.Data)
	}
	return g.URL
}

// DataURI encodes b as a base64 data URI.
func DataURI(mimeType string, b []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(b)
}

// ImageGenerator is the port for the external image-to-line-art capability.
type ImageGenerator interface {
	Name() string
	GenerateImage(ctx context.Context, req GenerateImageRequest) (*GeneratedImage, error)
}

// NormalizedImage is an upload after resize/re-encode.
type NormalizedImage struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// ImageNormalizer validates uploads and prepares them for the generator.
type ImageNormalizer interface {
	// Detect sniffs the upload and returns its mime type, or domain.ErrUnsupportedImage.
	Detect(data []byte) (string, error)
	Normalize(ctx context.Context, data []byte) (*NormalizedImage, error)
}

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"coloring-page-service/internal/domain"
	"coloring-page-service/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ImageGenerator = (*OpenAIAdapter)(nil)

// OpenAIAdapter turns a photo into line art with the Images edit endpoint.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

// NewOpenAIAdapter builds a client with retries disabled; a failed call fails the job.
func NewOpenAIAdapter(apiKey, organization, baseURL, model string, extra ...option.RequestOption) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = string(openai.ImageModelGPTImage1)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if organization != "" {
		opts = append(opts, option.WithOrganization(organization))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)

	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (o *OpenAIAdapter) Name() string { return "openai" }

func (o *OpenAIAdapter) GenerateImage(ctx context.Context, req adapter.GenerateImageRequest) (*adapter.GeneratedImage, error) {
	if len(req.Image) == 0 {
		return nil, domain.ErrNoImage
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	params := openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(req.Image), "photo"+extFor(mimeType), mimeType),
		},
		Prompt: req.Prompt,
		Model:  openai.ImageModel(modelOrDefault(req.Model, o.model)),
	}
	if req.Size != "" {
		params.Size = openai.ImageEditParamsSize(req.Size)
	}
	if req.Quality != "" {
		params.Quality = openai.ImageEditParamsQuality(req.Quality)
	}

	resp, err := o.client.Images.Edit(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai images edit: %w", err)
	}

	for _, d := range resp.Data {
		if d.B64JSON != "" {
			b, err := base64.StdEncoding.DecodeString(d.B64JSON)
			if err != nil {
				return nil, fmt.Errorf("openai: decode b64_json: %w", err)
			}
			return &adapter.GeneratedImage{Data: b, MimeType: "image/png"}, nil
		}
		if d.URL != "" {
			return &adapter.GeneratedImage{URL: d.URL}, nil
		}
	}
	return nil, domain.ErrEmptyGeneration
}

func extFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"coloring-page-service/internal/domain"
	"coloring-page-service/internal/domain/ports/adapter"
)

var _ adapter.ImageGenerator = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiAdapter creates a Gemini adapter using the official SDK.
// An empty baseURL keeps the SDK default endpoint.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash-preview-image-generation"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) GenerateImage(ctx context.Context, req adapter.GenerateImageRequest) (*adapter.GeneratedImage, error) {
	if len(req.Image) == 0 {
		return nil, domain.ErrNoImage
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: req.Prompt},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: req.Image}},
		},
	}}
	resp, err := g.client.Models.GenerateContent(ctx, modelOrDefault(req.Model, g.defaultModel), contents,
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	return extractGeminiImage(resp)
}

// extractGeminiImage returns the first inline image (or file reference) in the response.
func extractGeminiImage(resp *genai.GenerateContentResponse) (*adapter.GeneratedImage, error) {
	if resp == nil {
		return nil, domain.ErrEmptyGeneration
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p == nil {
				continue
			}
			if p.InlineData != nil && len(p.InlineData.Data) > 0 &&
				strings.HasPrefix(p.InlineData.MIMEType, "image/") {
				return &adapter.GeneratedImage{Data: p.InlineData.Data, MimeType: p.InlineData.MIMEType}, nil
			}
			if p.FileData != nil && p.FileData.FileURI != "" {
				return &adapter.GeneratedImage{URL: p.FileData.FileURI, MimeType: p.FileData.MIMEType}, nil
			}
		}
	}
	return nil, domain.ErrEmptyGeneration
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}

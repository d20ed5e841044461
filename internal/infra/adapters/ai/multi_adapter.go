// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"sort"
	"strings"

	"coloring-page-service/internal/domain"
	"coloring-page-service/internal/domain/ports/adapter"
)

var _ adapter.ImageGenerator = (*MultiImageAdapter)(nil)

// MultiImageAdapter routes each call to a provider adapter chosen from the request model.
type MultiImageAdapter struct {
	defaultProvider string // e.g., "openai" or "gemini"
	byProvider      map[string]adapter.ImageGenerator
	modelToProvider map[string]string // model -> provider
}

// NewMultiImageAdapter does not inject any default model; it only knows a default provider.
// Each provider adapter is responsible for its own default model.
func NewMultiImageAdapter(
	defaultProvider string,
	byProvider map[string]adapter.ImageGenerator,
	modelToProvider map[string]string,
) *MultiImageAdapter {
	return &MultiImageAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
}

func (m *MultiImageAdapter) Name() string { return "multi" }

func (m *MultiImageAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"), strings.HasPrefix(l, "imagen"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "dall-e"):
		return "openai"
	case strings.HasPrefix(l, "sketch"):
		return "sketch"
	default:
		return m.defaultProvider
	}
}

func (m *MultiImageAdapter) pick(model string) adapter.ImageGenerator {
	prov := m.resolveProvider(model)
	if a := m.byProvider[prov]; a != nil {
		return a
	}
	if a := m.byProvider[m.defaultProvider]; a != nil {
		return a
	}
	// last resort: first available, in a stable order
	names := make([]string, 0, len(m.byProvider))
	for name := range m.byProvider {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if a := m.byProvider[name]; a != nil {
			return a
		}
	}
	return nil
}

// Provider reports which provider a model would be routed to.
func (m *MultiImageAdapter) Provider(model string) string {
	if a := m.pick(model); a != nil {
		return a.Name()
	}
	return ""
}

func (m *MultiImageAdapter) GenerateImage(ctx context.Context, req adapter.GenerateImageRequest) (*adapter.GeneratedImage, error) {
	a := m.pick(req.Model)
	if a == nil {
		return nil, domain.ErrNoProvider
	}
	return a.GenerateImage(ctx, req)
}

package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderStatic uses hash-based embeddings. It is the only backend
	// with a real implementation in this tree; the child process embeds
	// with it directly (see cmd/docwell-embedder).
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates the static 768-dimension embedder, the only backend
// this build carries; the provider and model arguments are ignored and no
// DOCWELL_EMBEDDER variable is read here.
//
// Query embedding caching is enabled by default (saves 50-200ms per repeated query).
// Set DOCWELL_EMBED_CACHE=false to disable caching.
func NewEmbedder(_ context.Context, _ ProviderType, _ string) (Embedder, error) {
	var embedder Embedder = NewStaticEmbedder768()

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}

	return embedder, nil
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("DOCWELL_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// NewDefaultEmbedder creates a static embedder (768 dimensions).
func NewDefaultEmbedder(ctx context.Context) (Embedder, error) {
	return NewEmbedder(ctx, ProviderStatic, "")
}

// ParseProvider converts a string to ProviderType. Docwell currently ships
// a single backend, so any input resolves to it.
func ParseProvider(_ string) ProviderType {
	return ProviderStatic
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{string(ProviderStatic)}
}

// IsValidProvider checks if a provider name is valid
func IsValidProvider(s string) bool {
	return strings.ToLower(s) == string(ProviderStatic)
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	return EmbedderInfo{
		Provider:   ProviderStatic,
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}
}

// MustNewEmbedder creates an embedder and panics on failure
// Use only in tests or initialization code where failure is fatal
func MustNewEmbedder(ctx context.Context, provider ProviderType, model string) Embedder {
	embedder, err := NewEmbedder(ctx, provider, model)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}

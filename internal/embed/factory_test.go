package embed

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder_StaticProvider(t *testing.T) {
	ctx := context.Background()
	embedder, err := NewEmbedder(ctx, ProviderStatic, "")
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	assert.Equal(t, "static768", embedder.ModelName())
	assert.True(t, embedder.Available(ctx))
}

func TestNewEmbedder_IgnoresProviderAndModel(t *testing.T) {
	// Docwell ships one backend; any provider/model argument resolves to it.
	ctx := context.Background()
	embedder, err := NewEmbedder(ctx, ProviderType("anything"), "some-model")
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	assert.Equal(t, "static768", embedder.ModelName())
}

func TestNewEmbedder_RespectsEmbedCacheEnvVar(t *testing.T) {
	orig := os.Getenv("DOCWELL_EMBED_CACHE")
	defer os.Setenv("DOCWELL_EMBED_CACHE", orig)

	os.Setenv("DOCWELL_EMBED_CACHE", "false")

	ctx := context.Background()
	embedder, err := NewEmbedder(ctx, ProviderStatic, "")
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	_, isCached := embedder.(*CachedEmbedder)
	assert.False(t, isCached, "caching should be disabled when DOCWELL_EMBED_CACHE=false")
}

func TestParseProvider_AlwaysStatic(t *testing.T) {
	assert.Equal(t, ProviderStatic, ParseProvider("mlx"))
	assert.Equal(t, ProviderStatic, ParseProvider("ollama"))
	assert.Equal(t, ProviderStatic, ParseProvider("static"))
	assert.Equal(t, ProviderStatic, ParseProvider(""))
}

func TestValidProviders(t *testing.T) {
	assert.Equal(t, []string{"static"}, ValidProviders())
}

func TestIsValidProvider(t *testing.T) {
	assert.True(t, IsValidProvider("static"))
	assert.True(t, IsValidProvider("STATIC"))
	assert.False(t, IsValidProvider("ollama"))
}

func TestGetInfo(t *testing.T) {
	ctx := context.Background()
	embedder, err := NewEmbedder(ctx, ProviderStatic, "")
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	info := GetInfo(ctx, embedder)
	assert.Equal(t, ProviderStatic, info.Provider)
	assert.Equal(t, "static768", info.Model)
	assert.True(t, info.Available)
}

func TestMustNewEmbedder(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		embedder := MustNewEmbedder(ctx, ProviderStatic, "")
		defer func() { _ = embedder.Close() }()
	})
}

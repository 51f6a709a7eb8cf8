package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	withEnv(t, "EMBEDDING_DIMENSION", "768")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 768, cfg.Embedding.Dimension)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 2, cfg.Scheduler.Workers["upload"])
	require.Equal(t, 3, cfg.Scheduler.Workers["text_extraction"])
	require.True(t, cfg.Features.ImageContext)
	require.False(t, cfg.Features.VideoTranscription)
}

func TestLoad_RejectsNonPositiveDimension(t *testing.T) {
	withEnv(t, "EMBEDDING_DIMENSION", "0")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_PerStageWorkerOverride(t *testing.T) {
	withEnv(t, "EMBEDDING_DIMENSION", "1536")
	withEnv(t, "WORKERS_IMAGE_PROCESSING", "5")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Scheduler.Workers["image_processing"])
}

func TestLoad_RetryPolicyOverride(t *testing.T) {
	withEnv(t, "EMBEDDING_DIMENSION", "1536")
	withEnv(t, "RETRY_EMBEDDER_MAX_RETRIES", "7")
	withEnv(t, "RETRY_EMBEDDER_BASE_DELAY_SECONDS", "2.5")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Retry.Policies["embedder"].MaxRetries)
	require.Equal(t, 2.5, cfg.Retry.Policies["embedder"].BaseDelaySeconds)
	// Unrelated services keep the package default.
	require.Equal(t, DefaultRetryPolicy.MaxRetries, cfg.Retry.Policies["scrape"].MaxRetries)
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "foo", firstNonEmpty("", "foo", "bar"))
	require.Equal(t, "", firstNonEmpty())
}

func TestBoolFromEnv(t *testing.T) {
	withEnv(t, "DOCPIPELINE_TEST_BOOL", "yes")
	require.True(t, boolFromEnv("DOCPIPELINE_TEST_BOOL", false))
	withEnv(t, "DOCPIPELINE_TEST_BOOL", "")
	require.False(t, boolFromEnv("DOCPIPELINE_TEST_BOOL", false))
}

package common

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_TIMEOUT",
		"EXTRACT_MAX_RETRIES", "EXTRACT_CONFIDENCE_EXIT", "REBUT_SCRAP_MERGE_LIMIT",
		"BATCH_WORKERS", "DB_PATH",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2, cfg.Extract.MaxRetries)
	assert.Equal(t, 80.0, cfg.Extract.ConfidenceExit)
	assert.Equal(t, 50.0, cfg.Extract.ScrapMergeLimit)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, "formscan.db", cfg.DB.Path)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("GEMINI_TIMEOUT", "30s")
	t.Setenv("EXTRACT_MAX_RETRIES", "5")
	t.Setenv("REBUT_SCRAP_MERGE_LIMIT", "25")
	t.Setenv("BATCH_WORKERS", "8")

	cfg := LoadConfig()

	assert.Equal(t, "k", cfg.LLM.APIKey)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5, cfg.Extract.MaxRetries)
	assert.Equal(t, 25.0, cfg.Extract.ScrapMergeLimit)
	assert.Equal(t, 8, cfg.Batch.Workers)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("EXTRACT_MAX_RETRIES", "beaucoup")
	t.Setenv("GEMINI_TIMEOUT", "bientôt")

	cfg := LoadConfig()

	assert.Equal(t, 2, cfg.Extract.MaxRetries)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
}

func TestValidate(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		cfg := &Config{}
		err := cfg.Validate()
		require.Error(t, err)
		var appErr *AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "CONFIG_ERROR", appErr.Code)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
	t.Run("negative retries", func(t *testing.T) {
		cfg := &Config{LLM: LLMConfig{APIKey: "k"}, Extract: ExtractConfig{MaxRetries: -1}}
		assert.Error(t, cfg.Validate())
	})
	t.Run("valid", func(t *testing.T) {
		cfg := &Config{LLM: LLMConfig{APIKey: "k"}}
		assert.NoError(t, cfg.Validate())
	})
}

func TestAppError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewAppError("DB_INSERT_FAILED", "failed to save extraction", cause)

	assert.Equal(t, "DB_INSERT_FAILED: failed to save extraction: disk full", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewAppError("CONFIG_ERROR", "missing key", nil)
	assert.Equal(t, "CONFIG_ERROR: missing key", bare.Error())
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "ignored"))

	cause := errors.New("boom")
	err := WrapError(cause, "load page")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "load page: boom", err.Error())
}

package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("DOCQA_TEST_KEY", "")
	_, err := New(Config{APIKeyEnv: "DOCQA_TEST_KEY"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestNewModelDimensions(t *testing.T) {
	t.Setenv("DOCQA_TEST_KEY", "sk-test")

	tests := []struct {
		model string
		dim   int
	}{
		{"", 1536},
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
	}
	for _, tt := range tests {
		e, err := New(Config{APIKeyEnv: "DOCQA_TEST_KEY", Model: tt.model})
		require.NoError(t, err, "model %q", tt.model)
		assert.Equal(t, tt.dim, e.Dimension(), "model %q", tt.model)
	}
}

func TestNewUnknownModelNeedsExplicitDimension(t *testing.T) {
	t.Setenv("DOCQA_TEST_KEY", "sk-test")

	_, err := New(Config{APIKeyEnv: "DOCQA_TEST_KEY", Model: "custom-model"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	e, err := New(Config{APIKeyEnv: "DOCQA_TEST_KEY", Model: "custom-model", Dimension: 384})
	require.NoError(t, err)
	assert.Equal(t, 384, e.Dimension())
}

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	l2normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	l2normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

// Package openai implements the embedding collaborator on the OpenAI
// embeddings API.
package openai

import (
	"context"
	"fmt"
	"math"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"docqa/internal/domain"
)

// Config configures the embeddings client.
type Config struct {
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string
	Model     string
	// Dimension overrides the model's default vector dimensionality.
	Dimension int
}

// Embedder is a batched OpenAI embeddings client. Vectors are L2-normalized
// so inner-product search over them is cosine similarity.
type Embedder struct {
	client *openai.Client
	model  string
	dim    int
}

// New creates the embedder. The dimensionality is fixed here and validated
// against every vector the provider returns.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrInvalidConfig, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	dim := cfg.Dimension
	if dim == 0 {
		dim = defaultDimension(cfg.Model)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: unknown dimension for model %q, set it explicitly", domain.ErrInvalidConfig, cfg.Model)
	}
	return &Embedder{client: openai.NewClient(key), model: cfg.Model, dim: dim}, nil
}

// Dimension returns the fixed vector dimensionality.
func (e *Embedder) Dimension() int { return e.dim }

// Embed requests embeddings for the whole batch in one call.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", domain.ErrEmbedding, len(resp.Data), len(texts))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != e.dim {
			return nil, fmt.Errorf("%w: provider returned dimension %d, expected %d",
				domain.ErrDimensionMismatch, len(d.Embedding), e.dim)
		}
		v := make([]float32, len(d.Embedding))
		copy(v, d.Embedding)
		l2normalize(v)
		out[i] = v
	}
	return out, nil
}

func defaultDimension(model string) int {
	switch model {
	case string(openai.SmallEmbedding3), string(openai.AdaEmbeddingV2):
		return 1536
	case string(openai.LargeEmbedding3):
		return 3072
	}
	return 0
}

func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}

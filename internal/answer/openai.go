// Package answer implements the answer-generation collaborator on the OpenAI
// chat completions API.
package answer

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"docqa/internal/domain"
)

const systemPrompt = "You are a helpful assistant that answers questions based on documents."

// Config configures the chat completions client.
type Config struct {
	APIKeyEnv string
	Model     string
}

// Generator asks a chat model to answer a question grounded on retrieved
// chunks. Failures are surfaced, not retried.
type Generator struct {
	client *openai.Client
	model  string
}

// New creates the generator.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrInvalidConfig, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}
	return &Generator{client: openai.NewClient(key), model: cfg.Model}, nil
}

// Generate builds a context prompt from the chunks and returns the model's
// answer.
func (g *Generator) Generate(ctx context.Context, question string, contextChunks []string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(question, contextChunks)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", domain.ErrGeneration)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(question string, contextChunks []string) string {
	var b strings.Builder
	b.WriteString("Answer the question below based on the provided context.\n\nContext:\n")
	b.WriteString(strings.Join(contextChunks, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

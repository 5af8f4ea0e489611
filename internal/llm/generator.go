package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"ragchat/config"
)

// Generator calls an OpenAI-compatible chat completion endpoint. A fresh
// client is built per call because the credential changes on every attempt.
type Generator struct {
	baseURL     string
	model       string
	temperature float32
	maxTokens   int
}

func NewGenerator(cfg config.LLMConfig) *Generator {
	return &Generator{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (g *Generator) Generate(ctx context.Context, prompt, credential string) (string, error) {
	clientCfg := openai.DefaultConfig(credential)
	if g.baseURL != "" {
		clientCfg.BaseURL = g.baseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

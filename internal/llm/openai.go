package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultLocalURL is where the local provider expects an OpenAI-compatible
// server (llama.cpp, LM Studio, Ollama) when model.base_url is empty.
const DefaultLocalURL = "http://localhost:8080/v1"

// ErrEmptyResponse is returned when a model answers with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

type openAIGenerator struct {
	name   string
	client *openai.Client
	cfg    Config
	logger *slog.Logger
}

func newOpenAI(_ context.Context, cfg Config, logger *slog.Logger) (Generator, error) {
	key := cfg.APIKey
	if key == "" {
		key = firstEnv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("openai requires an API key: set model.api_key or OPENAI_API_KEY")
	}
	if cfg.Model == "" || strings.HasPrefix(cfg.Model, "gemini") {
		cfg.Model = openai.GPT4oMini
	}
	return newChatGenerator("openai", key, cfg, logger), nil
}

func newLocal(_ context.Context, cfg Config, logger *slog.Logger) (Generator, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLocalURL
	}
	if cfg.Model == "" || strings.HasPrefix(cfg.Model, "gemini") {
		cfg.Model = "local"
	}
	// Local servers ignore the key but the client always sends one.
	key := cfg.APIKey
	if key == "" {
		key = "local"
	}
	return newChatGenerator("local", key, cfg, logger), nil
}

func newChatGenerator(name, key string, cfg Config, logger *slog.Logger) *openAIGenerator {
	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &openAIGenerator{
		name:   name,
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		logger: logger,
	}
}

func (g *openAIGenerator) Name() string { return g.name }

func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.complete(ctx, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})
}

func (g *openAIGenerator) GenerateWithImage(ctx context.Context, prompt string, image []byte, mime string) (string, error) {
	url := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
	return g.complete(ctx, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetailAuto},
			},
		},
	})
}

func (g *openAIGenerator) complete(ctx context.Context, msg openai.ChatCompletionMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		Messages:    []openai.ChatCompletionMessage{msg},
	}

	g.logger.Debug("calling model", slog.String("model", g.cfg.Model))
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", g.name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

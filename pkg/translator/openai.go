package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/config"
)

// OpenAIService translates text through an OpenAI-compatible chat endpoint
type OpenAIService struct {
	client *openai.Client
	config config.TranslationConfig
}

// NewOpenAIService creates a translation service from config. A custom
// endpoint allows any OpenAI-compatible backend.
func NewOpenAIService(cfg config.TranslationConfig) *OpenAIService {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	return &OpenAIService{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Translate sends one text for translation and returns the model output
func (s *OpenAIService) Translate(ctx context.Context, text string) (string, error) {
	systemMsg := fmt.Sprintf("You are a professional translator. Translate the given %s news headline to %s. "+
		"Respond with the translation only, no explanations or quotes.",
		s.config.SourceLang, s.config.TargetLang)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMsg},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("translation response has no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

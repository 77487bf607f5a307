package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MegaGrindStone/ad-insights/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides an implementation of the LLM interface for interacting with OpenAI's vision models.
// With a custom base URL it also serves OpenAI-compatible gateways such as OpenRouter.
type OpenAI struct {
	model string

	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI instance with the specified API key, base URL, model name and
// parameters. An empty base URL targets the OpenAI API.
func NewOpenAI(apiKey, baseURL, model string, params LLMParameters, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return OpenAI{
		model:  model,
		params: params,
		client: goopenai.NewClientWithConfig(cfg),
		logger: logger.With(slog.String("module", "openai")),
	}
}

func openAIMessages(conv models.Conversation) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(conv))
	for _, msg := range conv {
		if len(msg.Images()) == 0 {
			msgs = append(msgs, goopenai.ChatCompletionMessage{
				Role:    string(msg.Role),
				Content: msg.Text(),
			})
			continue
		}

		parts := make([]goopenai.ChatMessagePart, 0, len(msg.Contents))
		for _, ct := range msg.Contents {
			switch ct.Type {
			case models.ContentTypeText:
				if ct.Text == "" {
					continue
				}
				parts = append(parts, goopenai.ChatMessagePart{
					Type: goopenai.ChatMessagePartTypeText,
					Text: ct.Text,
				})
			case models.ContentTypeImage:
				parts = append(parts, goopenai.ChatMessagePart{
					Type: goopenai.ChatMessagePartTypeImageURL,
					ImageURL: &goopenai.ChatMessageImageURL{
						URL:    ct.Image.DataURL(),
						Detail: goopenai.ImageURLDetailAuto,
					},
				})
			}
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:         string(msg.Role),
			MultiContent: parts,
		})
	}
	return msgs
}

// Chat sends the conversation to the OpenAI chat completion API and returns the first choice.
func (o OpenAI) Chat(ctx context.Context, conv models.Conversation) (models.Message, error) {
	req := o.chatRequest(openAIMessages(conv))

	if o.logger.Enabled(ctx, slog.LevelDebug) {
		o.logger.Debug("Request",
			slog.String("model", req.Model),
			slog.Int("messages", len(req.Messages)),
			slog.String("conversation", conv.Render()))
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return models.Message{}, fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return models.Message{}, errors.New("no choices found")
	}

	if usage, err := json.Marshal(resp.Usage); err == nil {
		o.logger.Debug("Usage", slog.String("usage", string(usage)))
	}

	return models.TextMessage(models.RoleAssistant, resp.Choices[0].Message.Content), nil
}

func (o OpenAI) chatRequest(messages []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   o.params.MaxTokensOrDefault(),
		Temperature: o.params.TemperatureOrDefault(),
	}

	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.Stop != nil {
		req.Stop = o.params.Stop
	}
	if o.params.PresencePenalty != nil {
		req.PresencePenalty = *o.params.PresencePenalty
	}
	if o.params.Seed != nil {
		req.Seed = o.params.Seed
	}
	if o.params.FrequencyPenalty != nil {
		req.FrequencyPenalty = *o.params.FrequencyPenalty
	}

	return req
}

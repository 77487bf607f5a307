package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/MegaGrindStone/ad-insights/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the LLM interface for interacting with vision models served
// by an Ollama server (llava, llama3.2-vision, ...).
type Ollama struct {
	host  string
	model string

	params LLMParameters

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. The host
// parameter should be a valid URL pointing to an Ollama server.
func NewOllama(host, model string, params LLMParameters, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("error parsing ollama host %q: %w", host, err)
	}

	return Ollama{
		host:   host,
		model:  model,
		params: params,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With(slog.String("module", "ollama")),
	}, nil
}

func ollamaMessages(conv models.Conversation) []api.Message {
	msgs := make([]api.Message, len(conv))
	for i, msg := range conv {
		msgs[i] = api.Message{
			Role:    string(msg.Role),
			Content: msg.Text(),
		}
		for _, img := range msg.Images() {
			msgs[i].Images = append(msgs[i].Images, api.ImageData(img.Data))
		}
	}
	return msgs
}

func (o Ollama) options() map[string]any {
	opts := map[string]any{
		"num_predict": o.params.MaxTokensOrDefault(),
		"temperature": o.params.TemperatureOrDefault(),
	}
	if o.params.TopP != nil {
		opts["top_p"] = *o.params.TopP
	}
	if o.params.Stop != nil {
		opts["stop"] = o.params.Stop
	}
	if o.params.Seed != nil {
		opts["seed"] = *o.params.Seed
	}
	if o.params.PresencePenalty != nil {
		opts["presence_penalty"] = *o.params.PresencePenalty
	}
	if o.params.FrequencyPenalty != nil {
		opts["frequency_penalty"] = *o.params.FrequencyPenalty
	}
	return opts
}

// Chat sends the conversation to the Ollama chat API without streaming and returns the response.
func (o Ollama) Chat(ctx context.Context, conv models.Conversation) (models.Message, error) {
	f := false
	req := api.ChatRequest{
		Model:    o.model,
		Messages: ollamaMessages(conv),
		Stream:   &f,
		Options:  o.options(),
	}

	o.logger.Debug("Request",
		slog.String("host", o.host),
		slog.String("model", o.model),
		slog.Int("messages", len(req.Messages)))

	var content string
	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		content += res.Message.Content
		return nil
	}); err != nil {
		return models.Message{}, fmt.Errorf("error sending request: %w", err)
	}

	return models.TextMessage(models.RoleAssistant, content), nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/MegaGrindStone/ad-insights/internal/models"
)

// Azure provides an implementation of the LLM interface for vision models deployed on Azure OpenAI.
type Azure struct {
	deployment string

	params LLMParameters

	client *azopenai.Client

	logger *slog.Logger
}

// NewAzure creates a new Azure instance for the deployment at endpoint, authenticated with apiKey.
func NewAzure(endpoint, apiKey, deployment string, params LLMParameters, logger *slog.Logger) (Azure, error) {
	client, err := azopenai.NewClientWithKeyCredential(endpoint, azcore.NewKeyCredential(apiKey), nil)
	if err != nil {
		return Azure{}, fmt.Errorf("error creating azure client: %w", err)
	}

	return Azure{
		deployment: deployment,
		params:     params,
		client:     client,
		logger:     logger.With(slog.String("module", "azure")),
	}, nil
}

func azureMessages(conv models.Conversation) []azopenai.ChatRequestMessageClassification {
	msgs := make([]azopenai.ChatRequestMessageClassification, 0, len(conv))
	for _, msg := range conv {
		switch msg.Role {
		case models.RoleSystem:
			msgs = append(msgs, &azopenai.ChatRequestSystemMessage{Content: to.Ptr(msg.Text())})
		case models.RoleAssistant:
			msgs = append(msgs, &azopenai.ChatRequestAssistantMessage{Content: to.Ptr(msg.Text())})
		case models.RoleUser:
			if len(msg.Images()) == 0 {
				msgs = append(msgs, &azopenai.ChatRequestUserMessage{
					Content: azopenai.NewChatRequestUserMessageContent(msg.Text()),
				})
				continue
			}

			parts := make([]azopenai.ChatCompletionRequestMessageContentPartClassification, 0, len(msg.Contents))
			for _, ct := range msg.Contents {
				switch ct.Type {
				case models.ContentTypeText:
					if ct.Text == "" {
						continue
					}
					parts = append(parts, &azopenai.ChatCompletionRequestMessageContentPartText{
						Text: to.Ptr(ct.Text),
					})
				case models.ContentTypeImage:
					parts = append(parts, &azopenai.ChatCompletionRequestMessageContentPartImage{
						ImageURL: &azopenai.ChatCompletionRequestMessageContentPartImageURL{
							URL: to.Ptr(ct.Image.DataURL()),
						},
					})
				}
			}
			msgs = append(msgs, &azopenai.ChatRequestUserMessage{
				Content: azopenai.NewChatRequestUserMessageContent(parts),
			})
		}
	}
	return msgs
}

// Chat sends the conversation to the Azure OpenAI chat completions API and returns the first choice.
func (a Azure) Chat(ctx context.Context, conv models.Conversation) (models.Message, error) {
	opts := azopenai.ChatCompletionsOptions{
		DeploymentName: to.Ptr(a.deployment),
		Messages:       azureMessages(conv),
		MaxTokens:      to.Ptr(int32(a.params.MaxTokensOrDefault())),
		Temperature:    to.Ptr(a.params.TemperatureOrDefault()),
		TopP:           a.params.TopP,
		Stop:           a.params.Stop,

		PresencePenalty:  a.params.PresencePenalty,
		FrequencyPenalty: a.params.FrequencyPenalty,
	}

	a.logger.Debug("Request",
		slog.String("deployment", a.deployment),
		slog.Int("messages", len(opts.Messages)))

	resp, err := a.client.GetChatCompletions(ctx, opts, nil)
	if err != nil {
		return models.Message{}, fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		a.logger.Warn("Empty response", slog.String("deployment", a.deployment))
	}
	for _, choice := range resp.Choices {
		if choice.Message != nil && choice.Message.Content != nil {
			return models.TextMessage(models.RoleAssistant, *choice.Message.Content), nil
		}
	}

	return models.Message{}, errors.New("no choices found")
}

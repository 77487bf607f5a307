package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MegaGrindStone/ad-insights/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockClient is the part of the Bedrock runtime client used by Bedrock.
type BedrockClient interface {
	InvokeModel(
		ctx context.Context,
		params *bedrockruntime.InvokeModelInput,
		optFns ...func(*bedrockruntime.Options),
	) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock provides an implementation of the LLM interface for Claude vision models hosted on AWS
// Bedrock. Requests use the Anthropic Messages body expected by Bedrock.
type Bedrock struct {
	model string

	params LLMParameters

	client BedrockClient

	logger *slog.Logger
}

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// NewBedrock creates a new Bedrock instance for model in region. Credentials are resolved with the
// default AWS chain (environment, shared config, instance role).
func NewBedrock(ctx context.Context, region, model string, params LLMParameters, logger *slog.Logger) (Bedrock, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return Bedrock{}, fmt.Errorf("error loading aws config: %w", err)
	}

	return NewBedrockWithClient(bedrockruntime.NewFromConfig(cfg), model, params, logger), nil
}

// NewBedrockWithClient creates a new Bedrock instance using client.
func NewBedrockWithClient(client BedrockClient, model string, params LLMParameters, logger *slog.Logger) Bedrock {
	return Bedrock{
		model:  model,
		params: params,
		client: client,
		logger: logger.With(slog.String("module", "bedrock")),
	}
}

// Chat invokes the model with the conversation and returns its text response.
func (b Bedrock) Chat(ctx context.Context, conv models.Conversation) (models.Message, error) {
	reqBody := anthropicRequest(conv, b.params)
	reqBody.AnthropicVersion = bedrockAnthropicVersion

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return models.Message{}, fmt.Errorf("error marshaling request: %w", err)
	}

	b.logger.Debug("Request",
		slog.String("model", b.model),
		slog.Int("messages", len(reqBody.Messages)))

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        jsonBody,
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("error sending request: %w", err)
	}

	var res anthropicResponse
	if err := json.Unmarshal(out.Body, &res); err != nil {
		return models.Message{}, fmt.Errorf("error unmarshaling response: %w", err)
	}

	return models.TextMessage(models.RoleAssistant, res.text()), nil
}

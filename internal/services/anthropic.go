package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/ad-insights/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Anthropic provides an interface to the Anthropic API for vision-capable Claude models. It
// implements the LLM interface and streams the response, returning it once complete.
type Anthropic struct {
	apiKey   string
	endpoint string
	model    string

	params LLMParameters

	client *http.Client

	logger *slog.Logger
}

type anthropicChatRequest struct {
	Model       string             `json:"model,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature"`
	TopP        *float32           `json:"top_p,omitempty"`
	Stop        []string           `json:"stop_sequences,omitempty"`
	Stream      bool               `json:"stream,omitempty"`

	// AnthropicVersion is only sent to Bedrock, which takes the version in the body.
	AnthropicVersion string `json:"anthropic_version,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicStreamResponse struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	anthropicAPIEndpoint = "https://api.anthropic.com/v1"
)

// NewAnthropic creates a new Anthropic instance with the specified API key, model name and
// parameters. An empty endpoint targets the public Anthropic API.
func NewAnthropic(apiKey, endpoint, model string, params LLMParameters, logger *slog.Logger) Anthropic {
	if endpoint == "" {
		endpoint = anthropicAPIEndpoint
	}
	return Anthropic{
		apiKey:   apiKey,
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		params:   params,
		client:   &http.Client{},
		logger:   logger.With(slog.String("module", "anthropic")),
	}
}

// anthropicClosingPrompt closes a conversation that ends with model answers, such as the summary
// turn which ends with the previous analyses.
const anthropicClosingPrompt = "Answer the request above using the previous analyses."

// anthropicMessages splits the system instructions from the conversation and converts the rest.
// Consecutive messages of the same role are merged, since the Messages API expects alternating
// roles, and the result always ends with a user message.
func anthropicMessages(conv models.Conversation) (string, []anthropicMessage) {
	var system []string
	var msgs []anthropicMessage
	for _, msg := range conv {
		if msg.Role == models.RoleSystem {
			system = append(system, msg.Text())
			continue
		}

		blocks := make([]anthropicContentBlock, 0, len(msg.Contents))
		for _, ct := range msg.Contents {
			switch ct.Type {
			case models.ContentTypeText:
				if ct.Text == "" {
					continue
				}
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: ct.Text})
			case models.ContentTypeImage:
				blocks = append(blocks, anthropicContentBlock{
					Type: "image",
					Source: &anthropicImageSource{
						Type:      "base64",
						MediaType: ct.Image.MIMEType,
						Data:      ct.Image.Base64(),
					},
				})
			}
		}
		if len(blocks) == 0 {
			continue
		}

		if n := len(msgs); n > 0 && msgs[n-1].Role == string(msg.Role) {
			msgs[n-1].Content = append(msgs[n-1].Content, blocks...)
			continue
		}
		msgs = append(msgs, anthropicMessage{Role: string(msg.Role), Content: blocks})
	}

	// A trailing assistant message is read as a prefill to continue, so the request is closed with
	// a user turn asking for the answer.
	if n := len(msgs); n > 0 && msgs[n-1].Role == string(models.RoleAssistant) {
		msgs = append(msgs, anthropicMessage{
			Role:    string(models.RoleUser),
			Content: []anthropicContentBlock{{Type: "text", Text: anthropicClosingPrompt}},
		})
	}
	return strings.Join(system, "\n"), msgs
}

func anthropicRequest(conv models.Conversation, params LLMParameters) anthropicChatRequest {
	system, msgs := anthropicMessages(conv)
	return anthropicChatRequest{
		Messages:    msgs,
		System:      system,
		MaxTokens:   params.MaxTokensOrDefault(),
		Temperature: params.TemperatureOrDefault(),
		TopP:        params.TopP,
		Stop:        params.Stop,
	}
}

// Chat streams the response of the Anthropic Messages API for the conversation and returns it once
// the stream ends. The context can be used to cancel an ongoing request.
func (a Anthropic) Chat(ctx context.Context, conv models.Conversation) (models.Message, error) {
	reqBody := anthropicRequest(conv, a.params)
	reqBody.Model = a.model
	reqBody.Stream = true

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return models.Message{}, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/messages", bytes.NewBuffer(jsonBody))
	if err != nil {
		return models.Message{}, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	a.logger.Debug("Request",
		slog.String("model", a.model),
		slog.Int("messages", len(reqBody.Messages)))

	resp, err := a.client.Do(req)
	if err != nil {
		return models.Message{}, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var e anthropicError
		if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
			return models.Message{}, fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message)
		}
		return models.Message{}, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var sb strings.Builder
	for ev, err := range sse.Read(resp.Body, nil) {
		if err != nil {
			return models.Message{}, fmt.Errorf("error reading response: %w", err)
		}
		switch ev.Type {
		case "error":
			var e anthropicError
			if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
				return models.Message{}, fmt.Errorf("error unmarshaling error: %w", err)
			}
			return models.Message{}, fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message)
		case "message_stop":
			return models.TextMessage(models.RoleAssistant, sb.String()), nil
		case "content_block_delta":
			var res anthropicStreamResponse
			if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
				return models.Message{}, fmt.Errorf("error unmarshaling response: %w", err)
			}
			sb.WriteString(res.Delta.Text)
		default:
			continue
		}
	}

	return models.Message{}, errors.New("error reading response: stream ended before message_stop")
}

func (r anthropicResponse) text() string {
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

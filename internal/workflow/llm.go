package workflow

import (
	"context"
	"fmt"

	"github.com/MegaGrindStone/ad-insights/internal/models"
)

// LLM represents a vision-capable chat model. Chat submits a conversation and returns the model's
// response as an assistant message. Implementations must not modify the conversation they receive.
type LLM interface {
	Chat(ctx context.Context, conv models.Conversation) (models.Message, error)
}

// probeMessage is the trivial prompt sent when checking that a model is reachable.
const probeMessage = "0"

// NewLLM checks that llm answers a trivial prompt and returns it. It is meant to be called once at
// startup so that a misconfigured model fails fast instead of failing the first request.
func NewLLM(ctx context.Context, llm LLM) (LLM, error) {
	conv := models.Conversation{models.TextMessage(models.RoleUser, probeMessage)}
	if _, err := llm.Chat(ctx, conv); err != nil {
		return nil, fmt.Errorf("error creating llm: %w", err)
	}
	return llm, nil
}

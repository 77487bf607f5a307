package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/MegaGrindStone/ad-insights/internal/models"
)

// ErrTurnFailed wraps every failure of a model turn.
var ErrTurnFailed = errors.New("error processing the prompt")

// Execute runs a single turn: it submits conv to llm once and returns the response. There is no
// retry; any failure is wrapped with ErrTurnFailed.
func Execute(ctx context.Context, llm LLM, conv models.Conversation) (models.Message, error) {
	res, err := llm.Chat(ctx, conv)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %w", ErrTurnFailed, err)
	}
	return res, nil
}

// ExecuteAppend runs a single turn like Execute and also returns a new conversation made of conv
// followed by the response. conv itself is left untouched.
func ExecuteAppend(ctx context.Context, llm LLM, conv models.Conversation) (models.Message, models.Conversation, error) {
	res, err := Execute(ctx, llm, conv)
	if err != nil {
		return models.Message{}, nil, err
	}
	return res, conv.Append(res), nil
}

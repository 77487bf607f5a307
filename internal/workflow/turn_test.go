package workflow_test

import (
	"context"
	"testing"

	"github.com/MegaGrindStone/ad-insights/internal/models"
	"github.com/MegaGrindStone/ad-insights/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	conv := models.Conversation{models.TextMessage(models.RoleUser, "hello")}

	res, err := workflow.Execute(context.Background(), newMockLLM(), conv)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAssistant, res.Role)
	assert.Equal(t, "hello|1", res.Text())
}

func TestExecuteError(t *testing.T) {
	llm := newMockLLM()
	llm.failOn = "hello"
	conv := models.Conversation{models.TextMessage(models.RoleUser, "hello")}

	_, err := workflow.Execute(context.Background(), llm, conv)
	require.ErrorIs(t, err, workflow.ErrTurnFailed)
	assert.ErrorContains(t, err, "model unavailable")
}

func TestExecuteAppend(t *testing.T) {
	conv := make(models.Conversation, 1, 8)
	conv[0] = models.TextMessage(models.RoleUser, "hello")

	res, extended, err := workflow.ExecuteAppend(context.Background(), newMockLLM(), conv)
	require.NoError(t, err)

	assert.Len(t, conv, 1, "input conversation must not grow")
	require.Len(t, extended, 2)
	assert.Equal(t, res, extended[1])

	llm := newMockLLM()
	llm.failOn = "hello"
	_, extended, err = workflow.ExecuteAppend(context.Background(), llm, conv)
	assert.ErrorIs(t, err, workflow.ErrTurnFailed)
	assert.Nil(t, extended)
}

func TestNewLLM(t *testing.T) {
	llm := newMockLLM()

	got, err := workflow.NewLLM(context.Background(), llm)
	require.NoError(t, err)
	assert.Same(t, llm, got)

	probe, ok := llm.call("0")
	require.True(t, ok)
	assert.Len(t, probe, 1)
}

func TestNewLLMProbeFailure(t *testing.T) {
	llm := newMockLLM()
	llm.failOn = "0"

	got, err := workflow.NewLLM(context.Background(), llm)
	assert.ErrorContains(t, err, "error creating llm: model unavailable")
	assert.Nil(t, got)
}

package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("hello")
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "hello", msg.Text())
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestMessage_FunctionCalls(t *testing.T) {
	msg := NewAssistantMessage(
		TextPart{Text: "calling a tool"},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "ping"}},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c2", Name: "pong"}},
	)

	calls := msg.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "c1", calls[0].ID)
	assert.Equal(t, "pong", calls[1].Name)
	assert.False(t, msg.IsFinalReply())
}

func TestMessage_IsFinalReply(t *testing.T) {
	assert.True(t, NewAssistantMessage(TextPart{Text: "done"}).IsFinalReply())
	assert.False(t, NewUserMessage("hi").IsFinalReply())
}

func TestNewToolResultMessage(t *testing.T) {
	msg := NewToolResultMessage("c1", "ping", "pong", nil)
	assert.Equal(t, RoleTool, msg.Role)

	responses := msg.FunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "c1", responses[0].ID)
	assert.Equal(t, "pong", responses[0].Response)
	assert.Empty(t, responses[0].Error)

	failed := NewToolResultMessage("c2", "ping", nil, errors.New("boom"))
	assert.Equal(t, "boom", failed.FunctionResponses()[0].Error)
}

func TestNewContextMessage(t *testing.T) {
	payload := map[string]any{"patient_context": map[string]any{"name": "John Carter"}}
	msg := NewContextMessage(payload)
	assert.Equal(t, RoleSystem, msg.Role)

	data, ok := msg.Parts[0].(DataPart)
	require.True(t, ok)
	assert.Equal(t, payload, data.Data)
	assert.Empty(t, msg.Text())
}

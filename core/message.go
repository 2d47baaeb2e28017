// Package core defines the message model shared by the session store, the
// dispatch loop and the completion-service adapters: role-tagged messages
// composed of ordered content parts (text, structured data, function calls
// and function responses).
package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation roles. Tool results use RoleTool and must immediately follow
// the assistant message whose function calls they answer.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a session transcript. After emission it should be
// treated as immutable.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
}

// NewID generates a unique identifier for messages and sessions.
func NewID() string { return uuid.NewString() }

func newMessage(role string, parts ...Part) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Parts:     parts,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message {
	return newMessage(RoleUser, TextPart{Text: text})
}

// NewAssistantMessage creates an assistant message from arbitrary parts
// (text and/or function calls) as returned by the completion service.
func NewAssistantMessage(parts ...Part) Message {
	return newMessage(RoleAssistant, parts...)
}

// NewContextMessage creates a system-role message carrying a structured
// payload, e.g. a patient record injected at session start.
func NewContextMessage(payload map[string]any) Message {
	return newMessage(RoleSystem, DataPart{Data: payload})
}

// NewToolResultMessage records the outcome of a single tool invocation. The
// id back-references the FunctionCall being answered. A non-nil err is
// carried in the response's Error field so the completion service can
// self-correct; it never aborts the turn.
func NewToolResultMessage(id, name string, result any, err error) Message {
	fr := FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	return newMessage(RoleTool, FunctionResponsePart{FunctionResponse: fr})
}

// Text concatenates all text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// FunctionCalls returns the function call parts in their original order.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns the function response parts in their original order.
func (m Message) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range m.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// IsFinalReply reports whether this assistant message completes a turn, i.e.
// it requests no further tool calls.
func (m Message) IsFinalReply() bool {
	return m.Role == RoleAssistant && len(m.FunctionCalls()) == 0
}

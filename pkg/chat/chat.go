package chat

import (
	"errors"
	"strings"
)

// GenerateRequest is a script generation request made by the user
// to the stage-forge api.
type GenerateRequest struct {
	UserInput string `json:"user_input"`
	Async     bool   `json:"async,omitempty"` // queue the run for a worker instead of waiting
}

const (
	ChatRoleUser   = "user"
	ChatRoleAgent  = "assistant"
	ChatRoleSystem = "system"
)

// DefaultSystemPrompt frames every pipeline stage.
const DefaultSystemPrompt = "You are a professional Lua game script generation assistant."

// ChatMessage represents a single chat message sent to the LLM.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Conversation builds the message list for a single-turn stage call.
func Conversation(systemPrompt, prompt string) []ChatMessage {
	msgs := make([]ChatMessage, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, ChatMessage{Role: ChatRoleSystem, Content: systemPrompt})
	}
	return append(msgs, ChatMessage{Role: ChatRoleUser, Content: prompt})
}

func (gr *GenerateRequest) Validate() error {
	if strings.TrimSpace(gr.UserInput) == "" {
		return errors.New("user_input is required")
	}
	return nil
}

// Package generator is the boundary to the code-writing model. It owns
// the conversation state, the adapters for the chat APIs and the
// extraction of code units from model responses.
package generator

import (
	"context"
	"errors"
	"os"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation entry in chat form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var ErrEmptyCompletion = errors.New("empty completion from model")

// Generator produces the next response for a conversation. Failures are
// turn-scoped; the orchestrator records them and asks again next turn.
type Generator interface {
	Name() string
	Generate(ctx context.Context, messages []Message) (string, error)
	Close() error
}

// New selects an adapter for a model identifier: gemini-* goes straight
// to the Gemini API, everything else through OpenRouter.
func New(ctx context.Context, model string) (Generator, error) {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gemini") {
		return NewGeminiClient(ctx, os.Getenv("GEMINI_API_KEY"), model)
	}
	return NewOpenRouterClient("", model)
}

// Conversation accumulates the exchange between harness and model.
type Conversation struct {
	messages []Message
}

func NewConversation(systemPrompt string) *Conversation {
	c := &Conversation{}
	if strings.TrimSpace(systemPrompt) != "" {
		c.messages = append(c.messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return c
}

func (c *Conversation) Append(role, content string) {
	c.messages = append(c.messages, Message{Role: role, Content: content})
}

// Messages returns a snapshot of the conversation so far.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int { return len(c.messages) }

package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider produces a single, non-streamed completion.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (Completion, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Completion struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// System and User are shorthands for building prompts.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }

const maxErrorBody = 4 << 10

func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%s: unexpected status %s: %s", provider, resp.Status, strings.TrimSpace(string(body)))
}

// splitSystem separates system messages from the conversation for APIs that
// take the system prompt as a distinct field.
func splitSystem(messages []Message) (system string, rest []Message) {
	var parts []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(parts, "\n\n"), rest
}

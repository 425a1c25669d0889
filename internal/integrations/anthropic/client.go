// Package anthropic adapts the Anthropic Messages API to schema-constrained
// completion by forcing a single tool call whose input schema is the payload
// schema.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"life-coach-agent/internal/domain"
	"life-coach-agent/internal/schema"
)

const defaultMaxTokens = 4096

// messagesAPI is the part of *anthropic.Client used here.
type messagesAPI interface {
	CreateMessages(ctx context.Context, request anthropic.MessagesRequest) (anthropic.MessagesResponse, error)
}

// StatusError carries the upstream HTTP status of a failed request.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("anthropic: status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

type Client struct {
	api       messagesAPI
	model     string
	maxTokens int
}

type Option func(*Client)

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewClient builds a Client on the go-anthropic SDK.
func NewClient(apiKey, model, baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic: api key must not be empty")
	}
	var clientOpts []anthropic.ClientOption
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		clientOpts = append(clientOpts, anthropic.WithBaseURL(baseURL))
	}
	return newClient(anthropic.NewClient(apiKey, clientOpts...), model, opts...)
}

func newClient(api messagesAPI, model string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("anthropic: api must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("anthropic: model must not be empty")
	}
	c := &Client{api: api, model: model, maxTokens: defaultMaxTokens}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete asks the model to call the def.Name tool and returns the tool input
// once it validates against def.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage, def schema.Definition) (json.RawMessage, error) {
	system, turns := convertMessages(messages)
	if len(turns) == 0 {
		return nil, errors.New("anthropic: no user or assistant messages to send")
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		Messages:  turns,
		MaxTokens: c.maxTokens,
		Tools: []anthropic.ToolDefinition{{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.Document,
		}},
		ToolChoice: &anthropic.ToolChoice{Type: "tool", Name: def.Name},
	}
	if len(system) > 0 {
		req.MultiSystem = system
	}

	resp, err := c.api.CreateMessages(ctx, req)
	if err != nil {
		var reqErr *anthropic.RequestError
		if errors.As(err, &reqErr) {
			return nil, &StatusError{StatusCode: reqErr.StatusCode, Err: err}
		}
		return nil, fmt.Errorf("anthropic: create message: %w", err)
	}
	if resp.StopReason == "max_tokens" {
		return nil, errors.New("anthropic: response truncated at token limit")
	}

	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.MessageContentToolUse == nil || block.Name != def.Name {
			continue
		}
		payload := json.RawMessage(block.Input)
		if err := def.Validate(payload); err != nil {
			return nil, fmt.Errorf("anthropic: %w", err)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("anthropic: response has no %s tool call", def.Name)
}

// convertMessages moves system messages into system parts and merges
// consecutive same-role turns, which the Messages API expects to alternate.
func convertMessages(messages []domain.ChatMessage) ([]anthropic.MessageSystemPart, []anthropic.Message) {
	var system []anthropic.MessageSystemPart
	var turns []anthropic.Message
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, anthropic.MessageSystemPart{Type: "text", Text: m.Content})
		case domain.RoleUser, domain.RoleAssistant:
			role := anthropic.RoleUser
			if m.Role == domain.RoleAssistant {
				role = anthropic.RoleAssistant
			}
			content := anthropic.NewTextMessageContent(m.Content)
			if n := len(turns); n > 0 && turns[n-1].Role == role {
				turns[n-1].Content = append(turns[n-1].Content, content)
				continue
			}
			turns = append(turns, anthropic.Message{Role: role, Content: []anthropic.MessageContent{content}})
		}
	}
	return system, turns
}

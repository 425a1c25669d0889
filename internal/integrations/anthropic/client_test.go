package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"github.com/stretchr/testify/require"

	"life-coach-agent/internal/domain"
	"life-coach-agent/internal/schema"
)

const validIssues = `{"projectName":"Move","projectDescription":"Relocate","actionItems":[{"task":"Pack","description":"Pack boxes","priority":"high","deadline":"1 week","potentialBlockers":[]}]}`

type fakeMessages struct {
	resp anthropic.MessagesResponse
	err  error
	req  anthropic.MessagesRequest
}

func (f *fakeMessages) CreateMessages(_ context.Context, req anthropic.MessagesRequest) (anthropic.MessagesResponse, error) {
	f.req = req
	return f.resp, f.err
}

func toolUse(name, input string) anthropic.MessageContent {
	return anthropic.NewToolUseMessageContent("toolu_1", name, json.RawMessage(input))
}

func newTestClient(t *testing.T, api *fakeMessages) *Client {
	t.Helper()
	c, err := newClient(api, "claude-test")
	require.NoError(t, err)
	return c
}

func TestNewClient_Validates(t *testing.T) {
	_, err := NewClient(" ", "claude-test", "")
	require.ErrorContains(t, err, "api key")

	_, err = newClient(nil, "claude-test")
	require.Error(t, err)

	_, err = newClient(&fakeMessages{}, "")
	require.ErrorContains(t, err, "model")

	c, err := newClient(&fakeMessages{}, "claude-test", WithMaxTokens(512))
	require.NoError(t, err)
	require.Equal(t, 512, c.maxTokens)
}

func TestComplete_ForcesSchemaTool(t *testing.T) {
	api := &fakeMessages{resp: anthropic.MessagesResponse{Content: []anthropic.MessageContent{
		anthropic.NewTextMessageContent("thinking out loud"),
		toolUse("Issues", validIssues),
	}}}
	c := newTestClient(t, api)

	raw, err := c.Complete(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "coach"},
		{Role: domain.RoleUser, Content: "[NOW] a\n[THEN] b"},
		{Role: domain.RoleAssistant, Content: "Create a project"},
		{Role: domain.RoleUser, Content: "[SELECTED_OPTION] x"},
	}, schema.Issues)
	require.NoError(t, err)
	require.JSONEq(t, validIssues, string(raw))

	require.Equal(t, anthropic.Model("claude-test"), api.req.Model)
	require.Equal(t, defaultMaxTokens, api.req.MaxTokens)
	require.Len(t, api.req.MultiSystem, 1)
	require.Equal(t, "coach", api.req.MultiSystem[0].Text)
	require.Len(t, api.req.Messages, 3)
	require.Len(t, api.req.Tools, 1)
	require.Equal(t, "Issues", api.req.Tools[0].Name)
	require.NotNil(t, api.req.ToolChoice)
	require.Equal(t, "tool", api.req.ToolChoice.Type)
	require.Equal(t, "Issues", api.req.ToolChoice.Name)
}

func TestConvertMessages_MergesConsecutiveRoles(t *testing.T) {
	system, turns := convertMessages([]domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "s"},
		{Role: domain.RoleUser, Content: "u1"},
		{Role: domain.RoleUser, Content: "u2"},
		{Role: domain.RoleAssistant, Content: "a"},
		{Role: domain.RoleUser, Content: "u3"},
	})
	require.Len(t, system, 1)
	require.Len(t, turns, 3)
	require.Equal(t, anthropic.RoleUser, turns[0].Role)
	require.Len(t, turns[0].Content, 2)
	require.Equal(t, anthropic.RoleAssistant, turns[1].Role)
}

func TestComplete_Errors(t *testing.T) {
	cases := []struct {
		name string
		api  *fakeMessages
		msg  string
	}{
		{
			name: "no tool call",
			api:  &fakeMessages{resp: anthropic.MessagesResponse{Content: []anthropic.MessageContent{anthropic.NewTextMessageContent("hi")}}},
			msg:  "no Issues tool call",
		},
		{
			name: "other tool",
			api:  &fakeMessages{resp: anthropic.MessagesResponse{Content: []anthropic.MessageContent{toolUse("Project", validIssues)}}},
			msg:  "no Issues tool call",
		},
		{
			name: "invalid payload",
			api:  &fakeMessages{resp: anthropic.MessagesResponse{Content: []anthropic.MessageContent{toolUse("Issues", `{"projectName":"x"}`)}}},
			msg:  "Issues payload invalid",
		},
		{
			name: "truncated",
			api:  &fakeMessages{resp: anthropic.MessagesResponse{StopReason: "max_tokens"}},
			msg:  "truncated",
		},
		{
			name: "transport",
			api:  &fakeMessages{err: errors.New("connection reset")},
			msg:  "connection reset",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.api)
			_, err := c.Complete(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}, schema.Issues)
			require.ErrorContains(t, err, tc.msg)
		})
	}
}

func TestComplete_StatusErrorCarriesCode(t *testing.T) {
	api := &fakeMessages{err: &anthropic.RequestError{StatusCode: http.StatusTooManyRequests, Err: errors.New("rate limited")}}
	c := newTestClient(t, api)

	_, err := c.Complete(context.Background(), []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}}, schema.Project)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
}

func TestComplete_RequiresConversation(t *testing.T) {
	c := newTestClient(t, &fakeMessages{})
	_, err := c.Complete(context.Background(), []domain.ChatMessage{{Role: domain.RoleSystem, Content: "only system"}}, schema.Project)
	require.Error(t, err)
}

package handler

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"life-coach-agent/internal/domain"
	"life-coach-agent/internal/usecase"
)

func newTestLambda(t *testing.T, uc CoachUseCase) *Lambda {
	t.Helper()
	l, err := NewLambda(newTestRouter(t, uc))
	require.NoError(t, err)
	return l
}

func makeEvent(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func TestNewLambda_ValidatesDependency(t *testing.T) {
	_, err := NewLambda(nil)
	require.Error(t, err)
}

func TestLambda_Health(t *testing.T) {
	resp, err := newTestLambda(t, &stubUseCase{}).Handle(context.Background(), makeEvent(http.MethodGet, "/", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"ok":true}`, resp.Body)
	require.Equal(t, "application/json", resp.Headers["Content-Type"])
}

func TestLambda_AskWithBase64Body(t *testing.T) {
	uc := &stubUseCase{askOut: usecase.AskOutput{Proposal: sampleProposal(), SessionID: "chat-9"}}
	event := makeEvent(http.MethodPost, "/ask", base64.StdEncoding.EncodeToString([]byte(`{"now":"a","then":"b"}`)))
	event.IsBase64Encoded = true

	resp, err := newTestLambda(t, uc).Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.AskInput{Now: "a", Then: "b"}, uc.askIn)

	out := parseBody[dataResponse[domain.ProjectProposal]](t, resp.Body)
	require.Equal(t, "chat-9", out.Data.ID)
}

func TestLambda_MissingHistoryIsPlainText(t *testing.T) {
	uc := &stubUseCase{err: &usecase.Error{Code: usecase.ErrorMissingHistory, Reason: "missing_now_or_then"}}

	resp, err := newTestLambda(t, uc).Handle(context.Background(), makeEvent(http.MethodPost, "/select-option", `{"selectedOption":"x","chatId":"nope"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, msgMissingHistory, resp.Body)
	require.Equal(t, "text/plain; charset=utf-8", resp.Headers["Content-Type"])
}

func TestLambda_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	event := makeEvent(http.MethodGet, "/", "")
	event.Headers["x-correlation-id"] = "corr-123"

	resp, err := newTestLambda(t, &stubUseCase{}).Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers[correlationHeader])
}

func TestLambda_InvalidBase64(t *testing.T) {
	event := makeEvent(http.MethodPost, "/ask", "%%%")
	event.IsBase64Encoded = true

	resp, err := newTestLambda(t, &stubUseCase{}).Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"writeway/internal/domain"
)

type staticKey string

func (k staticKey) APIKey(context.Context) (string, error) { return string(k), nil }

func TestNew_NilKeySource(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestClient_RequestFormat(t *testing.T) {
	var captured []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)

		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "test-api-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("Anthropic-Version"))
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","stop_reason":"end_turn",
			"content":[{"type":"text","text":"你好，"},{"type":"text","text":"我是文道。"}]}`))
	}))
	defer srv.Close()

	temp := 0.7
	client, err := New(staticKey("test-api-key"), WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), domain.CompletionRequest{
		System: "You are a writing coach.",
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: "Hello"},
			{Role: domain.RoleAssistant, Content: "Hi"},
			{Role: domain.RoleUser, Content: "Thanks"},
		},
		Temperature: &temp,
		MaxTokens:   1024,
	})
	require.NoError(t, err)
	assert.Equal(t, "你好，我是文道。", out)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(captured, &body))
	assert.Equal(t, defaultModel, body["model"])
	assert.Equal(t, float64(1024), body["max_tokens"])
	assert.Equal(t, "You are a writing coach.", body["system"])
	assert.Equal(t, 0.7, body["temperature"])
	_, hasStream := body["stream"]
	assert.False(t, hasStream)

	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 3)
	msg1 := msgs[1].(map[string]interface{})
	assert.Equal(t, "assistant", msg1["role"])
	assert.Equal(t, "Hi", msg1["content"])
}

func TestClient_DefaultsWhenUnset(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	client, err := New(staticKey("k"), WithBaseURL(srv.URL), WithModel("claude-test"))
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "claude-test", body["model"])
	assert.Equal(t, float64(defaultMaxTokens), body["max_tokens"])
	_, hasTemp := body["temperature"]
	assert.False(t, hasTemp)
	_, hasSystem := body["system"]
	assert.False(t, hasSystem)
}

func TestClient_HTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	client, err := New(staticKey("k"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), domain.CompletionRequest{})

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
	assert.Equal(t, "rate_limit_error", statusErr.ErrorType)
	assert.Contains(t, err.Error(), "slow down")
}

func TestClient_HTTPErrorPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream down`))
	}))
	defer srv.Close()

	client, err := New(staticKey("k"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), domain.CompletionRequest{})

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "upstream down", statusErr.Message)
}

func TestClient_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	client, err := New(staticKey("k"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), domain.CompletionRequest{})
	require.ErrorContains(t, err, "no text content")
}

type failingKey struct{}

func (failingKey) APIKey(context.Context) (string, error) { return "", errors.New("no key") }

func TestClient_KeyError(t *testing.T) {
	client, err := New(failingKey{})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), domain.CompletionRequest{})
	require.ErrorContains(t, err, "no key")
}

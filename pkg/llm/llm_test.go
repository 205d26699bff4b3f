package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-go/internal/apperr"
	"docchat-go/internal/config"
)

type recordingWriter struct {
	types  []int
	chunks []string
}

func (w *recordingWriter) WriteMessage(messageType int, data []byte) error {
	w.types = append(w.types, messageType)
	w.chunks = append(w.chunks, string(data))
	return nil
}

type flakyClient struct {
	errs  []error
	calls int
}

func (f *flakyClient) Model() string { return "flaky" }

func (f *flakyClient) Chat(context.Context, []Message, *GenerationParams) (string, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return "", f.errs[f.calls-1]
	}
	return "answer", nil
}

func (f *flakyClient) StreamChatMessages(_ context.Context, _ []Message, _ *GenerationParams, w MessageWriter) error {
	f.calls++
	if f.calls <= len(f.errs) {
		return f.errs[f.calls-1]
	}
	return w.WriteMessage(websocket.TextMessage, []byte("answer"))
}

func fastResilient(inner Client, retries int) *Resilient {
	r := NewResilient(inner, time.Second, retries)
	r.initialBackoff = time.Millisecond
	return r
}

func TestResilient_ChatRetriesTransient(t *testing.T) {
	inner := &flakyClient{errs: []error{
		fmt.Errorf("quota: %w", apperr.ErrRateLimited),
		errors.New("malformed response"),
	}}
	out, err := fastResilient(inner, 3).Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, 3, inner.calls)
}

func TestResilient_ChatAuthIsPermanent(t *testing.T) {
	inner := &flakyClient{errs: []error{fmt.Errorf("bad key: %w", apperr.ErrAuth)}}
	_, err := fastResilient(inner, 3).Chat(context.Background(), nil, nil)
	assert.ErrorIs(t, err, apperr.ErrAuth)
	assert.Equal(t, 1, inner.calls)
}

func TestResilient_ChatInvalidRequestIsPermanent(t *testing.T) {
	inner := &flakyClient{errs: []error{&openai.APIError{HTTPStatusCode: 400, Message: "context length exceeded"}}}
	_, err := fastResilient(inner, 3).Chat(context.Background(), nil, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	assert.Equal(t, 1, inner.calls)
}

func TestGeminiHistory_RequiresUserLast(t *testing.T) {
	_, _, err := geminiHistory([]Message{{Role: RoleUser, Content: "q"}, {Role: RoleAssistant, Content: "a"}})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	assert.False(t, apperr.IsTransient(err))

	system, history, err := geminiHistory([]Message{{Role: RoleSystem, Content: "rules"}, {Role: RoleUser, Content: "q"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"rules"}, system)
	require.Len(t, history, 1)
	assert.Equal(t, "user", history[0].Role)
}

func TestResilient_ChatBoundedRetries(t *testing.T) {
	e := fmt.Errorf("down: %w", apperr.ErrNetwork)
	inner := &flakyClient{errs: []error{e, e, e, e, e}}
	_, err := fastResilient(inner, 2).Chat(context.Background(), nil, nil)
	assert.ErrorIs(t, err, apperr.ErrNetwork)
	assert.Equal(t, 3, inner.calls)
}

func TestResilient_StreamNotRetried(t *testing.T) {
	inner := &flakyClient{errs: []error{fmt.Errorf("down: %w", apperr.ErrNetwork)}}
	w := &recordingWriter{}
	err := fastResilient(inner, 3).StreamChatMessages(context.Background(), nil, nil, w)
	assert.ErrorIs(t, err, apperr.ErrNetwork)
	assert.Equal(t, 1, inner.calls)
	assert.Empty(t, w.chunks)
}

func TestParamsFromConfig(t *testing.T) {
	assert.Nil(t, ParamsFromConfig(config.LLMGenerationConfig{}))

	gp := ParamsFromConfig(config.LLMGenerationConfig{Temperature: 0.7, MaxTokens: 2048})
	require.NotNil(t, gp)
	assert.Equal(t, 0.7, *gp.Temperature)
	assert.Nil(t, gp.TopP)
	assert.Equal(t, 2048, *gp.MaxTokens)
}

func TestOpenAIClient_Chat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"BSc Computer Science"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	temp, maxTokens := 0.7, 2048
	out, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: RoleUser, Content: "degree?"},
	}, &GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	require.NoError(t, err)
	assert.Equal(t, "BSc Computer Science", out)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.InDelta(t, 0.7, body["temperature"], 1e-6)
	assert.EqualValues(t, 2048, body["max_tokens"])
	assert.Len(t, body["messages"], 2)
}

func TestOpenAIClient_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range []string{"Hello", "", " world"} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", piece)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	w := &recordingWriter{}
	c := NewOpenAIClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, c.StreamChatMessages(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, w))
	assert.Equal(t, "Hello world", strings.Join(w.chunks, ""))
	assert.Equal(t, []int{websocket.TextMessage, websocket.TextMessage}, w.types)
}

func TestOpenAIClient_ChatClassifiesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"}).Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	assert.ErrorIs(t, err, apperr.ErrRateLimited)
}

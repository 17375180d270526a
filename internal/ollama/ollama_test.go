// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient points a client at handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClientWithConfig(&ClientConfig{BaseURL: server.URL, Timeout: 5 * time.Second})
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessageConstructors(t *testing.T) {
	tests := []struct {
		msg  Message
		role string
	}{
		{NewUserMessage("Hello"), "user"},
		{NewAssistantMessage("Response"), "assistant"},
		{NewSystemMessage("You are a helpful assistant"), "system"},
	}

	for _, tc := range tests {
		if tc.msg.Role != tc.role {
			t.Errorf("Role = %q, want %q", tc.msg.Role, tc.role)
		}
	}
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestNewClientWithConfig_Defaults(t *testing.T) {
	c := NewClientWithConfig(nil)
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL(), DefaultBaseURL)
	}

	c = NewClientWithConfig(&ClientConfig{BaseURL: "http://gpu-box:11434/"})
	if c.BaseURL() != "http://gpu-box:11434" {
		t.Errorf("trailing slash not trimmed: %q", c.BaseURL())
	}
	if c.config.PullTimeout != DefaultPullTimeout {
		t.Errorf("PullTimeout = %v, want default", c.config.PullTimeout)
	}
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestChat_SendsNonStreamingRequestWithOptions(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"llama3.2","message":{"role":"assistant","content":"Why did the gopher cross the road?"},"done":true,"eval_count":12,"eval_duration":1000000000}`))
	})

	resp, err := client.Chat(context.Background(), ChatRequest{
		Model:    "llama3.2",
		Messages: []Message{NewSystemMessage("be brief"), NewUserMessage("Tell me a joke")},
		Stream:   true,
		Options:  &Options{Temperature: 0, NumPredict: 64},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "Why did the gopher cross the road?" {
		t.Errorf("Content = %q", resp.Message.Content)
	}
	if resp.TokensPerSecond() != 12 {
		t.Errorf("TokensPerSecond = %f, want 12", resp.TokensPerSecond())
	}

	if got["stream"] != false {
		t.Errorf("stream = %v, want false", got["stream"])
	}
	opts, ok := got["options"].(map[string]any)
	if !ok {
		t.Fatalf("options missing from request: %v", got)
	}
	if _, present := opts["temperature"]; !present {
		t.Error("zero temperature must still be sent")
	}
	if opts["num_predict"] != float64(64) {
		t.Errorf("num_predict = %v, want 64", opts["num_predict"])
	}
	msgs := got["messages"].([]any)
	if len(msgs) != 2 || msgs[0].(map[string]any)["role"] != "system" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestChat_ErrorStatusCarriesServerMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model runner crashed"}`))
	})

	_, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("err = %v, want *ClientError", err)
	}
	if clientErr.Type != ErrTypeInvalidResponse {
		t.Errorf("Type = %v, want invalid_response", clientErr.Type)
	}
	if !strings.Contains(err.Error(), "model runner crashed") {
		t.Errorf("error %q lacks server message", err)
	}
	if IsTransport(err) {
		t.Error("a server answer must not count as a transport failure")
	}
}

func TestChat_ModelNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Chat(context.Background(), ChatRequest{Model: "missing"})
	if !IsModelNotFound(err) {
		t.Errorf("err = %v, want model not found", err)
	}
}

func TestChat_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": `))
	})

	_, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrTypeInvalidResponse {
		t.Errorf("err = %v, want invalid response", err)
	}
}

func TestChat_BodyWithoutMessage(t *testing.T) {
	for _, body := range []string{`{}`, `null`, `{"error":"out of memory"}`} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})

		resp, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
		var clientErr *ClientError
		if !errors.As(err, &clientErr) || clientErr.Type != ErrTypeInvalidResponse {
			t.Errorf("body %s: err = %v, want invalid response", body, err)
		}
		if resp != nil {
			t.Errorf("body %s: resp = %+v, want nil", body, resp)
		}
		if IsTransport(err) {
			t.Errorf("body %s: must not count as a transport failure", body)
		}
	}
}

func TestChat_EmptyReplyIsKept(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":""},"done":true,"eval_count":3}`))
	})

	resp, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Role != "assistant" || resp.EvalCount != 3 || resp.Model != "m" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestChat_NotRunning(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: url, Timeout: time.Second})
	_, err := client.Chat(context.Background(), ChatRequest{Model: "m"})
	if !IsNotRunning(err) {
		t.Errorf("err = %v, want not running", err)
	}
	if !IsTransport(err) {
		t.Error("not running should be a transport failure")
	}
}

func TestChat_ContextDeadline(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Chat(ctx, ChatRequest{Model: "m"})
	if !IsTimeout(err) {
		t.Errorf("err = %v, want timeout", err)
	}
}

// =============================================================================
// MODEL TESTS
// =============================================================================

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3.2:3b","size":2019393189},{"name":"qwen2.5:7b","size":4683087332}]}`))
	})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].Name != "llama3.2:3b" {
		t.Fatalf("models = %+v", models)
	}
	if got := models[1].FormatSize(); got != "4.4GB" {
		t.Errorf("FormatSize = %q, want 4.4GB", got)
	}
}

func TestListModels_EmptyIsNotNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if models == nil || len(models) != 0 {
		t.Errorf("models = %#v, want empty slice", models)
	}
}

func TestPullModel(t *testing.T) {
	var body PullRequest
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/pull" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"status":"success"}`))
	})

	if err := client.PullModel(context.Background(), "llama3.2:1b"); err != nil {
		t.Fatalf("PullModel: %v", err)
	}
	if body.Name != "llama3.2:1b" || body.Stream {
		t.Errorf("request = %+v", body)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestPullModel_ErrorInBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"pull model manifest: file does not exist"}`))
	})

	if err := client.PullModel(context.Background(), "nope"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCheckRunning(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ollama is running"))
	})
	if err := client.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning: %v", err)
	}
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestClientError_IsMatchesByType(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running", Cause: cause}

	if !errors.Is(err, ErrNotRunning) {
		t.Error("errors.Is should match sentinel of the same type")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("errors.Is should not match a different type")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
}

func TestChatResponse_TotalTime(t *testing.T) {
	resp := &ChatResponse{TotalDuration: int64(2 * time.Second)}
	if resp.TotalTime() != 2*time.Second {
		t.Errorf("TotalTime() = %v, want 2s", resp.TotalTime())
	}
}

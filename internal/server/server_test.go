// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/model"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/store"
	"github.com/jeranaias/ollama-chat/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// TEST HARNESS
// =============================================================================

// fakeOllama answers the three Ollama endpoints the client uses.
type fakeOllama struct {
	mu         sync.Mutex
	models     []string
	reply      string
	chatStatus int
	chats      []ollama.ChatRequest
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/":
		w.Write([]byte("Ollama is running"))
	case "/api/tags":
		var resp ollama.ListModelsResponse
		for _, name := range f.models {
			resp.Models = append(resp.Models, ollama.ModelInfo{Name: name, Size: 2019393189})
		}
		json.NewEncoder(w).Encode(resp)
	case "/api/pull":
		var req ollama.PullRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.models = append(f.models, req.Name)
		w.Write([]byte(`{"status":"success"}`))
	case "/api/chat":
		var req ollama.ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.chats = append(f.chats, req)
		if f.chatStatus != 0 {
			w.WriteHeader(f.chatStatus)
			w.Write([]byte(`{"error":"boom"}`))
			return
		}
		json.NewEncoder(w).Encode(ollama.ChatResponse{
			Model:     req.Model,
			Message:   ollama.NewAssistantMessage(f.reply),
			Done:      true,
			EvalCount: 9,
		})
	default:
		http.NotFound(w, r)
	}
}

type harness struct {
	t      *testing.T
	store  *store.Store
	ctrl   *chat.Controller
	ollama *fakeOllama
	server *Server
}

func newHarness(t *testing.T, models ...string) *harness {
	t.Helper()

	fake := &fakeOllama{models: models, reply: "Why did the gopher cross the road?"}
	backend := httptest.NewServer(fake)
	t.Cleanup(backend.Close)

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: backend.URL, Timeout: 5 * time.Second})
	st := store.New()
	ctrl := chat.NewController(st, client, chat.WithUsage(telemetry.NewUsageTracker()))
	if len(models) > 0 {
		_, err := ctrl.DiscoverModels(context.Background())
		require.NoError(t, err)
	}

	srv := New(Config{AllowedOrigins: []string{"http://localhost:5173"}}, st, ctrl, WithPinger(client))
	return &harness{t: t, store: st, ctrl: ctrl, ollama: fake, server: srv}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CONVERSATION ROUTES
// =============================================================================

func TestConversations_CreateSelectRenameDelete(t *testing.T) {
	h := newHarness(t, "llama3.2:3b")

	rec := h.do(http.MethodPost, "/api/conversations", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.Conversation](t, rec)
	assert.Equal(t, 2, created.ID)
	assert.Equal(t, model.DefaultTitle, created.Title)

	list := decode[ConversationList](t, h.do(http.MethodGet, "/api/conversations", nil))
	assert.Equal(t, 2, list.CurrentID)
	require.Len(t, list.Conversations, 2)
	assert.Equal(t, 2, list.Conversations[0].ID, "newest first")

	rec = h.do(http.MethodPut, "/api/conversations/1/select", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.store.CurrentID())

	rec = h.do(http.MethodPatch, "/api/conversations/1", map[string]string{"title": "Jokes"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Jokes", decode[model.Conversation](t, rec).Title)

	rec = h.do(http.MethodDelete, "/api/conversations/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, h.store.CurrentID())

	rec = h.do(http.MethodDelete, "/api/conversations/2", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "last_conversation", decode[errorResponse](t, rec).Error.Type)
	assert.Equal(t, 1, h.store.Len())
}

func TestConversations_ErrorStatuses(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodGet, "/api/conversations/99", nil, http.StatusNotFound},
		{http.MethodGet, "/api/conversations/abc", nil, http.StatusBadRequest},
		{http.MethodPut, "/api/conversations/99/select", nil, http.StatusNotFound},
		{http.MethodPatch, "/api/conversations/1", map[string]string{"title": "  "}, http.StatusBadRequest},
		{http.MethodPost, "/api/conversations/99/clear", nil, http.StatusNotFound},
		{http.MethodDelete, "/api/conversations/99", nil, http.StatusNotFound},
		{http.MethodGet, "/api/conversations/1/export?format=pdf", nil, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := h.do(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

// =============================================================================
// TURN ROUTES
// =============================================================================

func TestSubmitTurn_Success(t *testing.T) {
	h := newHarness(t, "llama3.2:3b")

	rec := h.do(http.MethodPost, "/api/conversations/1/turns", map[string]string{"content": "  Tell me a joke  "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[TurnResponse](t, rec)
	assert.Equal(t, "Tell me a joke", resp.User.Content)
	assert.Equal(t, "Why did the gopher cross the road?", resp.Reply.Content)
	assert.Equal(t, "llama3.2:3b", resp.Model)
	assert.False(t, resp.Discarded)
	assert.NotEmpty(t, resp.TurnID)

	conv := h.store.Current()
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "Tell me a joke", conv.Title)

	require.Len(t, h.ollama.chats, 1)
	sent := h.ollama.chats[0]
	assert.False(t, sent.Stream)
	assert.Equal(t, "system", sent.Messages[0].Role)
	assert.Equal(t, model.DefaultSystemPrompt, sent.Messages[0].Content)

	usage := decode[telemetry.UsageSummary](t, h.do(http.MethodGet, "/api/usage", nil))
	assert.Equal(t, 1, usage.Turns)
	assert.Equal(t, 9, usage.Total.Output)
}

func TestSubmitTurn_Preconditions(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		h := newHarness(t, "m")
		rec := h.do(http.MethodPost, "/api/conversations/1/turns", map[string]string{"content": "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, h.store.Current().Messages)
	})

	t.Run("no model", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodPost, "/api/conversations/1/turns", map[string]string{"content": "hi"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "no_model_selected", decode[errorResponse](t, rec).Error.Type)
		assert.Empty(t, h.store.Current().Messages)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		h := newHarness(t, "m")
		rec := h.do(http.MethodPost, "/api/conversations/42/turns", map[string]string{"content": "hi"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSubmitTurn_BackendErrorIs502(t *testing.T) {
	h := newHarness(t, "m")
	h.ollama.chatStatus = http.StatusInternalServerError

	rec := h.do(http.MethodPost, "/api/conversations/1/turns", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "backend_error", decode[errorResponse](t, rec).Error.Type)

	msgs := h.store.Current().Messages
	require.Len(t, msgs, 1, "user message stays after a failed turn")
	assert.Equal(t, model.RoleUser, msgs[0].Role)
}

func TestSubmitTurn_UnreachableIs503(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	st := store.New()
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: url, Timeout: time.Second})
	ctrl := chat.NewController(st, client, chat.WithModel("m"))
	srv := New(Config{}, st, ctrl, WithPinger(client))

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/1/turns", strings.NewReader(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unavailable", health.OllamaStatus)
}

// =============================================================================
// MODEL AND SETTINGS ROUTES
// =============================================================================

func TestModels_ListPullSelect(t *testing.T) {
	h := newHarness(t, "llama3.2:3b")

	models := decode[ModelsResponse](t, h.do(http.MethodGet, "/api/models", nil))
	require.Len(t, models.Models, 1)
	assert.Equal(t, "1.9GB", models.Models[0].SizeLabel)
	assert.Equal(t, "llama3.2:3b", models.Selected)

	rec := h.do(http.MethodPost, "/api/models/pull", map[string]string{"name": "qwen2.5:7b"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ModelsResponse](t, rec).Models, 2)
	assert.Equal(t, "llama3.2:3b", h.ctrl.SelectedModel(), "pull does not change selection")

	rec = h.do(http.MethodPut, "/api/models/selected", map[string]string{"name": "qwen2.5:7b"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "qwen2.5:7b", h.ctrl.SelectedModel())

	rec = h.do(http.MethodPut, "/api/models/selected", map[string]string{"name": "missing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettings_PartialUpdateAndValidation(t *testing.T) {
	h := newHarness(t, "m")

	rec := h.do(http.MethodPut, "/api/settings", map[string]any{"temperature": 1.2})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.Settings](t, rec)
	assert.Equal(t, 1.2, got.Temperature)
	assert.Equal(t, model.DefaultMaxTokens, got.MaxTokens, "omitted fields keep their values")

	rec = h.do(http.MethodPut, "/api/settings", map[string]any{"max_tokens": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1.2, h.server.Settings().Temperature, "rejected update leaves settings alone")

	h.do(http.MethodPut, "/api/settings", map[string]any{"system_prompt": ""})
	h.do(http.MethodPost, "/api/conversations/1/turns", map[string]string{"content": "hi"})
	require.Len(t, h.ollama.chats, 1)
	assert.Equal(t, "user", h.ollama.chats[0].Messages[0].Role, "empty system prompt is not sent")
	require.NotNil(t, h.ollama.chats[0].Options)
	assert.Equal(t, 1.2, h.ollama.chats[0].Options.Temperature)
}

// =============================================================================
// EXPORT
// =============================================================================

func TestExport_JSONWithFilename(t *testing.T) {
	h := newHarness(t, "llama3.2:3b")
	h.do(http.MethodPost, "/api/conversations/1/turns", map[string]string{"content": "Tell me a joke"})

	rec := h.do(http.MethodGet, "/api/conversations/1/export?format=json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="chat-Tell-me-a-joke.json"`, rec.Header().Get("Content-Disposition"))

	var doc struct {
		Title    string           `json:"title"`
		Model    string           `json:"model"`
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Tell me a joke", doc.Title)
	assert.Equal(t, "llama3.2:3b", doc.Model)
	assert.Len(t, doc.Messages, 2)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestCORS(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/conversations", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig_WildcardSubdomain(t *testing.T) {
	cfg := DefaultCORSConfig([]string{"https://*.example.com"})
	assert.True(t, cfg.isOriginAllowed("https://chat.example.com"))
	assert.False(t, cfg.isOriginAllowed("http://chat.example.com"))
	assert.False(t, cfg.isOriginAllowed("https://example.org"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.Allow("10.0.0.2"), "buckets are per client")

	unlimited := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow("10.0.0.1"))
	}
}

func TestRateLimitMiddleware_Returns429(t *testing.T) {
	st := store.New()
	srv := New(Config{RateLimit: 0.001, RateBurst: 1}, st, chat.NewController(st, ollama.NewClient()))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRecovery(t *testing.T) {
	st := store.New()
	srv := New(Config{}, st, chat.NewController(st, ollama.NewClient()))
	srv.engine.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// =============================================================================
// EVENTS
// =============================================================================

func TestEvents_PushesStoreChanges(t *testing.T) {
	h := newHarness(t)
	ts := httptest.NewServer(h.server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	id := h.store.Create()
	require.NoError(t, h.store.Rename(id, "Renamed"))

	for _, want := range []store.EventKind{store.EventCreated, store.EventRenamed} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev store.Event
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, want, ev.Kind)
		assert.Equal(t, id, ev.ConversationID)
	}
}

func TestEvents_RejectsForeignOrigin(t *testing.T) {
	h := newHarness(t)
	ts := httptest.NewServer(h.server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	header := http.Header{"Origin": []string{"http://evil.test"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, fmt.Sprint(err))
}

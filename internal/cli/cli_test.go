// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/config"
	"github.com/jeranaias/ollama-chat/internal/model"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/store"
	"github.com/jeranaias/ollama-chat/internal/telemetry"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type stubBackend struct {
	reply   string
	chatErr error
	models  []ollama.ModelInfo
}

func (s *stubBackend) Chat(ctx context.Context, req ollama.ChatRequest) (*ollama.ChatResponse, error) {
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	return &ollama.ChatResponse{
		Model:     req.Model,
		Message:   ollama.NewAssistantMessage(s.reply),
		Done:      true,
		EvalCount: 7,
	}, nil
}

func (s *stubBackend) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return s.models, nil
}

func (s *stubBackend) PullModel(ctx context.Context, name string) error {
	s.models = append(s.models, ollama.ModelInfo{Name: name})
	return nil
}

func newTestSession(t *testing.T, backend *stubBackend) (*replSession, *store.Store, *bytes.Buffer) {
	t.Helper()
	st := store.New()
	ctrl := chat.NewController(st, backend,
		chat.WithModel("llama3.2"),
		chat.WithUsage(telemetry.NewUsageTracker()),
	)
	var out bytes.Buffer
	s := newReplSession(st, ctrl, model.DefaultSettings(), &out)
	s.exportDir = t.TempDir()
	return s, st, &out
}

// runRoot executes the command tree with args and captures its output.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// =============================================================================
// LINE-MODE CHAT
// =============================================================================

func TestReplSession_SendsTurn(t *testing.T) {
	s, st, out := newTestSession(t, &stubBackend{reply: "Why did the gopher cross the road?"})

	quit := s.handleLine(context.Background(), "Tell me a joke")
	assert.False(t, quit)

	conv := st.Current()
	require.Equal(t, 2, conv.MessageCount())
	assert.Equal(t, "Tell me a joke", conv.Messages[0].Content)
	assert.Equal(t, "Tell me a joke", conv.Title)
	assert.Contains(t, out.String(), "Why did the gopher cross the road?")
	assert.Contains(t, out.String(), "llama3.2")
}

func TestReplSession_BackendErrorShowsFriendlyMessage(t *testing.T) {
	s, st, out := newTestSession(t, &stubBackend{chatErr: ollama.ErrNotRunning})

	s.handleLine(context.Background(), "hello")

	assert.Contains(t, out.String(), "Could not reach Ollama. Please check your connection.")
	// The user message stays even though the turn failed.
	assert.Equal(t, 1, st.Current().MessageCount())
}

func TestReplSession_BlankLineIgnored(t *testing.T) {
	s, st, out := newTestSession(t, &stubBackend{reply: "x"})

	assert.False(t, s.handleLine(context.Background(), "   "))
	assert.Empty(t, out.String())
	assert.True(t, st.Current().IsEmpty())
}

func TestReplSession_QuitCommands(t *testing.T) {
	s, _, _ := newTestSession(t, &stubBackend{})
	for _, line := range []string{"/quit", "/exit", "/q", "exit", "QUIT"} {
		assert.True(t, s.handleLine(context.Background(), line), line)
	}
}

func TestReplSession_ConversationCommands(t *testing.T) {
	ctx := context.Background()
	s, st, out := newTestSession(t, &stubBackend{reply: "ok"})
	first := st.CurrentID()

	s.handleLine(ctx, "/new")
	second := st.CurrentID()
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, st.Len())

	s.handleLine(ctx, "/rename Trip ideas")
	assert.Equal(t, "Trip ideas", st.Current().Title)

	s.handleLine(ctx, fmt.Sprintf("/switch %d", first))
	assert.Equal(t, first, st.CurrentID())

	out.Reset()
	s.handleLine(ctx, "/list")
	assert.Contains(t, out.String(), "Trip ideas")
	assert.Contains(t, out.String(), "*")

	s.handleLine(ctx, fmt.Sprintf("/delete %d", second))
	assert.Equal(t, 1, st.Len())

	// The last conversation is protected.
	out.Reset()
	s.handleLine(ctx, "/delete")
	assert.Equal(t, 1, st.Len())
	assert.Contains(t, out.String(), "cannot delete the last conversation")
}

func TestReplSession_SwitchValidation(t *testing.T) {
	s, _, out := newTestSession(t, &stubBackend{})

	s.handleLine(context.Background(), "/switch abc")
	assert.Contains(t, out.String(), "must be a positive number")

	out.Reset()
	s.handleLine(context.Background(), "/switch 99")
	assert.Contains(t, out.String(), "not found")
}

func TestReplSession_Clear(t *testing.T) {
	s, st, _ := newTestSession(t, &stubBackend{reply: "hi"})
	s.handleLine(context.Background(), "hello")
	require.Equal(t, 2, st.Current().MessageCount())

	s.handleLine(context.Background(), "/clear")
	assert.True(t, st.Current().IsEmpty())
}

func TestReplSession_ModelCommands(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{models: []ollama.ModelInfo{{Name: "llama3.2"}, {Name: "mistral"}}}
	s, _, out := newTestSession(t, backend)

	s.handleLine(ctx, "/models")
	assert.Contains(t, out.String(), "mistral")

	s.handleLine(ctx, "/model mistral")
	assert.Equal(t, "mistral", s.ctrl.SelectedModel())

	out.Reset()
	s.handleLine(ctx, "/model nope")
	assert.Equal(t, "mistral", s.ctrl.SelectedModel())
	assert.Contains(t, out.String(), "not installed")

	out.Reset()
	s.handleLine(ctx, "/model mistrl")
	assert.Contains(t, out.String(), "Did you mean mistral?")

	s.handleLine(ctx, "/pull qwen2.5")
	assert.Len(t, s.ctrl.Models(), 3)
	assert.Equal(t, "mistral", s.ctrl.SelectedModel(), "pull does not change the selection")
}

func TestReplSession_Set(t *testing.T) {
	ctx := context.Background()
	s, _, out := newTestSession(t, &stubBackend{})

	s.handleLine(ctx, "/set temperature 0.3")
	assert.InDelta(t, 0.3, s.settings.Temperature, 1e-9)

	s.handleLine(ctx, "/set system Answer in French.")
	assert.Equal(t, "Answer in French.", s.settings.SystemPrompt)

	out.Reset()
	s.handleLine(ctx, "/set temperature 5")
	assert.InDelta(t, 0.3, s.settings.Temperature, 1e-9)
	assert.Contains(t, out.String(), "invalid temperature")

	s.handleLine(ctx, "/set max_tokens 0")
	assert.Equal(t, model.DefaultSettings().MaxTokens, s.settings.MaxTokens)
}

func TestReplSession_Export(t *testing.T) {
	s, _, out := newTestSession(t, &stubBackend{reply: "# Title\n\nbody"})
	s.handleLine(context.Background(), "hello")

	out.Reset()
	s.handleLine(context.Background(), "/export markdown")
	require.Contains(t, out.String(), "Exported to")

	entries, err := os.ReadDir(s.exportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".md"))

	out.Reset()
	s.handleLine(context.Background(), "/export pdf")
	assert.Contains(t, out.String(), "unsupported format")
}

func TestReplSession_Usage(t *testing.T) {
	s, _, out := newTestSession(t, &stubBackend{reply: "hi"})
	s.handleLine(context.Background(), "hello")

	out.Reset()
	s.handleLine(context.Background(), "/usage")
	assert.Contains(t, out.String(), "Turns:")
	assert.Contains(t, out.String(), "llama3.2")
}

func TestReplSession_UnknownCommand(t *testing.T) {
	s, _, out := newTestSession(t, &stubBackend{})
	s.handleLine(context.Background(), "/frobnicate")
	assert.Contains(t, out.String(), "unknown command: /frobnicate")
}

func TestScanReader(t *testing.T) {
	r := newScanReader(strings.NewReader("one\ntwo\n"))
	line, err := r.ReadLine("")
	require.NoError(t, err)
	assert.Equal(t, "one", line)
	line, err = r.ReadLine("")
	require.NoError(t, err)
	assert.Equal(t, "two", line)
	_, err = r.ReadLine("")
	assert.Error(t, err)
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestConfigSetAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := runRoot(t, "--config", path, "config", "set", "generation.temperature", "0.3")
	require.NoError(t, err)

	out, err := runRoot(t, "--config", path, "config", "get", "generation.temperature")
	require.NoError(t, err)
	assert.Equal(t, "0.3", strings.TrimSpace(out))

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, cfg.Generation.Temperature, 1e-9)
}

func TestConfigSet_Duration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := runRoot(t, "--config", path, "config", "set", "ollama.timeout", "90s")
	require.NoError(t, err)

	out, err := runRoot(t, "--config", path, "config", "get", "ollama.timeout")
	require.NoError(t, err)
	assert.Equal(t, "1m30s", strings.TrimSpace(out))
}

func TestConfigSet_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := runRoot(t, "--config", path, "config", "set", "nope.key", "1")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, err = runRoot(t, "--config", path, "config", "set", "generation.temperature", "9")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	_, err = runRoot(t, "--config", path, "config", "set", "generation.max_tokens", "lots")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "failed sets must not write the file")
}

func TestConfigGet_FlagOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	out, err := runRoot(t, "--config", path, "--url", "http://gpu-box:11434", "config", "get", "ollama.url")
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", strings.TrimSpace(out))
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	out, err := runRoot(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "[ollama]")
	assert.Contains(t, out, "[generation]")
	assert.Contains(t, out, path)
}

func TestInvalidFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, err := runRoot(t, "--config", path, "--log-level", "loud", "config")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, err = runRoot(t, "--config", path, "--url", "not a url", "config")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	_, err = runRoot(t, "--no-such-flag")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestPullRequiresName(t *testing.T) {
	_, err := runRoot(t, "pull")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestVersionJSON(t *testing.T) {
	out, err := runRoot(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"success": true`)
	assert.Contains(t, out, `"version": "`+Version+`"`)
}

func TestExecute_ExitCode(t *testing.T) {
	assert.Equal(t, ExitUsageError, Execute(context.Background(), []string{"--no-such-flag"}))
	assert.Equal(t, ExitSuccess, Execute(context.Background(), []string{"config", "keys"}))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationError("id", "x", "bad"), ExitUsageError},
		{"invalid input", fmt.Errorf("%w: empty", chat.ErrInvalidInput), ExitUsageError},
		{"config", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "ui.theme", Message: "bad"}}), ExitConfigError},
		{"not found", fmt.Errorf("conversation 3: %w", store.ErrNotFound), ExitNotFoundError},
		{"unknown model", fmt.Errorf("%w: x", chat.ErrUnknownModel), ExitNotFoundError},
		{"unreachable", &chat.TurnError{Kind: chat.KindBackendUnavailable, Op: "chat", Err: ollama.ErrNotRunning}, ExitNetworkError},
		{"discovery", &chat.TurnError{Kind: chat.KindModelDiscoveryFailed, Op: "list", Err: errors.New("boom")}, ExitNetworkError},
		{"timeout", &chat.TurnError{Kind: chat.KindBackendUnavailable, Op: "chat", Err: ollama.ErrTimeout}, ExitTimeoutError},
		{"generic", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, "chat", &chat.TurnError{Kind: chat.KindBackendError, Op: "chat", Err: errors.New("500")}, false)
	assert.Equal(t, "[ERROR] Failed to get response from Ollama.\n", strings.SplitAfter(buf.String(), "\n")[0],
		"no escape codes when the writer is not a terminal")

	buf.Reset()
	DisplayError(&buf, "export", NewValidationError("format", "pdf", "unsupported format"), true)

	var resp struct {
		Success bool                   `json:"success"`
		Error   *string                `json:"error"`
		Command string                 `json:"command"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Contains(t, *resp.Error, "unsupported format")
	assert.Equal(t, "export", resp.Command)
	assert.Equal(t, "validation_error", resp.Data["error_type"])
	assert.Equal(t, "format", resp.Data["field"])
}

func TestColorsAllowed(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	assert.True(t, colorsAllowed(env(nil), true))
	assert.False(t, colorsAllowed(env(nil), false))
	assert.True(t, colorsAllowed(env(map[string]string{"FORCE_COLOR": "1"}), false))
	assert.False(t, colorsAllowed(env(map[string]string{"NO_COLOR": "1", "FORCE_COLOR": "1"}), true))
}

func TestPaint_PlainForNonTerminalWriters(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, "[ERROR]", paint(&buf, ErrorStyle, "[ERROR]"))

	f, err := os.CreateTemp(t.TempDir(), "err")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "->", paint(f, DimStyle, "->"))
}

func TestDisplayError_Hints(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, "chat", &chat.TurnError{Kind: chat.KindBackendUnavailable, Op: "chat", Err: ollama.ErrNotRunning}, false)
	assert.Contains(t, buf.String(), "Start Ollama: ollama serve")

	buf.Reset()
	DisplayError(&buf, "chat", fmt.Errorf("select: %w", chat.ErrNoModelSelected), true)
	assert.Contains(t, buf.String(), `"suggestions"`)

	assert.Empty(t, suggestions(errors.New("plain failure")))
}

func TestWithModelSuggestion(t *testing.T) {
	models := []ollama.ModelInfo{{Name: "llama3.2:latest"}, {Name: "qwen2.5:7b"}}

	err := withModelSuggestion(chat.ErrUnknownModel, "qwen", models)
	assert.ErrorIs(t, err, chat.ErrUnknownModel)
	assert.Equal(t, "Did you mean qwen2.5:7b?", suggestions(err)[0])

	err = withModelSuggestion(chat.ErrUnknownModel, "zzz", models)
	assert.Equal(t, []string{"List installed models with /models"}, suggestions(err))
}

// =============================================================================
// HELPERS
// =============================================================================

func TestFormatDurationShort(t *testing.T) {
	assert.Equal(t, "250ms", formatDurationShort(250_000_000))
	assert.Equal(t, "1.5s", formatDurationShort(1_500_000_000))
	assert.Equal(t, "2m5s", formatDurationShort(125_000_000_000))
}

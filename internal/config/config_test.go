// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ollama-chat/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoadFromPath_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.Ollama.URL)
	assert.Equal(t, model.DefaultSettings(), cfg.Settings())
	assert.Equal(t, "auto", cfg.UI.Theme)
}

func TestLoadFromPath_PartialFileKeepsOtherDefaults(t *testing.T) {
	path := writeConfig(t, `
[ollama]
url = "http://gpu-box:11434"
timeout = "90s"
default_model = "qwen2.5:7b"

[generation]
temperature = 0.2
streaming = false
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "http://gpu-box:11434", cfg.Ollama.URL)
	assert.Equal(t, 90*time.Second, cfg.Ollama.Timeout.Std())
	assert.Equal(t, 60*time.Minute, cfg.Ollama.PullTimeout.Std())
	assert.Equal(t, "qwen2.5:7b", cfg.Ollama.DefaultModel)

	s := cfg.Settings()
	assert.Equal(t, 0.2, s.Temperature)
	assert.Equal(t, model.DefaultMaxTokens, s.MaxTokens)
	assert.Equal(t, model.DefaultSystemPrompt, s.SystemPrompt)
	assert.False(t, s.Streaming)
}

func TestLoadFromPath_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, "[ollama]\nurll = \"http://x\"\n")
	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama.urll")
}

func TestLoadFromPath_InvalidValuesCollected(t *testing.T) {
	path := writeConfig(t, `
[generation]
temperature = 3.5
max_tokens = 0

[ui]
theme = "neon"
`)

	_, err := LoadFromPath(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs), "err = %v", err)
	fields := make([]string, len(verrs))
	for i, v := range verrs {
		fields[i] = v.Field
	}
	assert.ElementsMatch(t, []string{"generation.temperature", "generation.max_tokens", "ui.theme"}, fields)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_CHAT_URL", "http://env-host:11434")
	t.Setenv("OLLAMA_CHAT_MODEL", "llama3.2:1b")
	t.Setenv("OLLAMA_CHAT_TEMPERATURE", "1.5")
	t.Setenv("OLLAMA_CHAT_MAX_TOKENS", "512")
	t.Setenv("OLLAMA_CHAT_SYSTEM_PROMPT", "Answer in haiku.")
	t.Setenv("OLLAMA_CHAT_LOG_LEVEL", "debug")
	t.Setenv("OLLAMA_CHAT_ADDR", ":9999")
	t.Setenv("OLLAMA_CHAT_OTLP_ENDPOINT", "collector:4318")

	path := writeConfig(t, "[ollama]\nurl = \"http://file-host:11434\"\n")
	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env-host:11434", cfg.Ollama.URL, "env beats file")
	assert.Equal(t, "llama3.2:1b", cfg.Ollama.DefaultModel)
	assert.Equal(t, 1.5, cfg.Generation.Temperature)
	assert.Equal(t, 512, cfg.Generation.MaxTokens)
	assert.Equal(t, "Answer in haiku.", cfg.Generation.SystemPrompt)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4318", cfg.Telemetry.Endpoint)
}

func TestApplyEnvOverrides_BadNumber(t *testing.T) {
	t.Setenv("OLLAMA_CHAT_MAX_TOKENS", "lots")
	cfg := Default()
	assert.Error(t, cfg.ApplyEnvOverrides())
}

func TestLoad_NaNTemperatureRejected(t *testing.T) {
	t.Setenv("OLLAMA_CHAT_TEMPERATURE", "NaN")
	_, err := LoadFromPath(writeConfig(t, ""))

	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "generation.temperature", verrs[0].Field)
}

// =============================================================================
// SAVE TESTS
// =============================================================================

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Ollama.PullTimeout = Duration(2 * time.Hour)
	cfg.SetSettings(model.DefaultSettings().WithTemperature(1.1).WithSystemPrompt(""))
	cfg.Server.AllowedOrigins = []string{"https://chat.example.com"}
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, loaded.Ollama.PullTimeout.Std())
	assert.Equal(t, 1.1, loaded.Generation.Temperature)
	assert.Equal(t, "", loaded.Generation.SystemPrompt)
	assert.Equal(t, []string{"https://chat.example.com"}, loaded.Server.AllowedOrigins)
}

// =============================================================================
// GET/SET TESTS
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("generation.max_tokens", "4096"))
	require.NoError(t, cfg.Set("ollama.timeout", "30s"))
	require.NoError(t, cfg.Set("ui.theme", "light"))
	require.NoError(t, cfg.Set("telemetry.enabled", "true"))
	require.NoError(t, cfg.Set("server.allowed_origins", "http://a.test, http://b.test"))

	v, err := cfg.Get("generation.max_tokens")
	require.NoError(t, err)
	assert.Equal(t, 4096, v)
	assert.Equal(t, Duration(30*time.Second), cfg.Ollama.Timeout)
	assert.Equal(t, "light", cfg.UI.Theme)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)

	assert.Error(t, cfg.Set("generation.max_tokens", "many"))
	assert.Error(t, cfg.Set("nope.key", "1"))
	_, err = cfg.Get("ollama.url.host")
	assert.Error(t, err)
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestClone_Independent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Server.AllowedOrigins[0] = "http://changed.test"
	assert.NotEqual(t, cfg.Server.AllowedOrigins[0], clone.Server.AllowedOrigins[0])
}

// =============================================================================
// WATCH TESTS
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "[generation]\ntemperature = 0.1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { reloaded <- cfg }, nil)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[generation]\ntemperature = 1.9\n"), 0600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 1.9, cfg.Settings().Temperature)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_InvalidEditReported(t *testing.T) {
	path := writeConfig(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 4)
	go Watch(ctx, path, func(*Config) { t.Error("invalid config must not be delivered") }, func(err error) { errs <- err })

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[ui]\ntheme = \"plaid\"\n"), 0600))

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "ui.theme")
	case <-time.After(5 * time.Second):
		t.Fatal("invalid edit not reported")
	}
}

func TestWatch_SeesAtomicSave(t *testing.T) {
	path := writeConfig(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	go Watch(ctx, path, func(cfg *Config) { reloaded <- cfg }, nil)

	time.Sleep(100 * time.Millisecond)
	cfg := Default()
	cfg.SetSettings(model.DefaultSettings().WithTemperature(0.4))
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case got := <-reloaded:
		assert.Equal(t, 0.4, got.Settings().Temperature)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after SaveTOML")
	}
}

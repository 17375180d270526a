// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ollama-chat/internal/model"
)

func jokeConversation() model.Conversation {
	c := model.NewConversation(1)
	c.Title = "Tell me a joke"
	c.Messages = []model.Message{
		model.NewUserMessage("Tell me a joke"),
		model.NewAssistantMessage("Why do programmers prefer dark mode? Because light attracts bugs."),
	}
	return c
}

// =============================================================================
// JSON TESTS
// =============================================================================

func TestJSONExport_MatchesConversation(t *testing.T) {
	conv := jokeConversation()
	doc := NewDocument(conv, "llama3.2:3b")

	data, err := NewJSONExporter().Export(doc)
	require.NoError(t, err)

	var got struct {
		Title    string `json:"title"`
		Model    string `json:"model"`
		Messages []struct {
			Role      string    `json:"role"`
			Content   string    `json:"content"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"messages"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "Tell me a joke", got.Title)
	assert.Equal(t, "llama3.2:3b", got.Model)
	require.Len(t, got.Messages, len(conv.Messages))
	for i, m := range conv.Messages {
		assert.Equal(t, m.Role.String(), got.Messages[i].Role)
		assert.Equal(t, m.Content, got.Messages[i].Content)
	}
	_, err = time.Parse(time.RFC3339, got.Timestamp)
	assert.NoError(t, err)

	assert.True(t, strings.Contains(string(data), "\n  \"title\""), "output is indented")
}

func TestJSONExport_EmptyConversation(t *testing.T) {
	data, err := NewJSONExporter().Export(NewDocument(model.NewConversation(3), ""))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"messages": []`)
}

func TestNewDocument_IsSnapshot(t *testing.T) {
	conv := jokeConversation()
	doc := NewDocument(conv, "m")
	conv.Messages[0].Content = "changed"
	assert.Equal(t, "Tell me a joke", doc.Messages[0].Content)
}

// =============================================================================
// FILENAME TESTS
// =============================================================================

func TestFilename(t *testing.T) {
	tests := []struct {
		title string
		ext   string
		want  string
	}{
		{"Tell me a joke", ".json", "chat-Tell-me-a-joke.json"},
		{"  lots   of\tspace\n", ".json", "chat--lots-of-space-.json"},
		{"a/b\\c", ".md", "chat-a-b-c.md"},
		{"New Chat", "html", "chat-New-Chat.html"},
		{"", ".json", "chat-untitled.json"},
		{"..", ".json", "chat-untitled.json"},
		{"Tell\u00a0me\u3000a\vjoke", ".json", "chat-Tell-me-a-joke.json"},
		{"wide\u2003\u00a0 gap", ".md", "chat-wide-gap.md"},
	}

	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			got := Filename(tc.title, tc.ext)
			assert.Equal(t, tc.want, got)
			assert.False(t, strings.ContainsFunc(got, unicode.IsSpace), "no whitespace in %q", got)
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")

	path, err := WriteFile(dir, NewDocument(jokeConversation(), "m"), NewJSONExporter())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chat-Tell-me-a-joke.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "light attracts bugs")
}

func TestForFormat(t *testing.T) {
	for format, ext := range map[string]string{"json": ".json", "markdown": ".md", "md": ".md", "HTML": ".html"} {
		e, err := ForFormat(format, nil)
		require.NoError(t, err, format)
		assert.Equal(t, ext, e.FileExtension())
	}

	_, err := ForFormat("pdf", nil)
	assert.Error(t, err)
}

// =============================================================================
// MARKDOWN AND HTML TESTS
// =============================================================================

func TestMarkdownExport(t *testing.T) {
	data, err := NewMarkdownExporter(nil).Export(NewDocument(jokeConversation(), "llama3.2:3b"))
	require.NoError(t, err)
	md := string(data)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: Tell me a joke\nmodel: \"llama3.2:3b\"\n"))
	assert.Contains(t, md, "# Tell me a joke")
	assert.Contains(t, md, "### You")
	assert.Contains(t, md, "### Assistant")
	assert.Less(t, strings.Index(md, "Tell me a joke\n\n---"), strings.Index(md, "light attracts bugs"))
}

func TestHTMLExport_EscapesAndHighlights(t *testing.T) {
	conv := model.NewConversation(1)
	conv.Title = "<script>alert(1)</script>"
	conv.Messages = []model.Message{
		model.NewUserMessage("show me <b>go</b>"),
		model.NewAssistantMessage("Here:\n\n```go\nfunc main() {}\n```\n\nUse `go run`."),
	}

	data, err := NewHTMLExporter(&Options{Theme: "light"}).Export(NewDocument(conv, "m"))
	require.NoError(t, err)
	page := string(data)

	assert.NotContains(t, page, "<script>alert(1)</script>")
	assert.Contains(t, page, "&lt;b&gt;go&lt;/b&gt;")
	assert.Contains(t, page, "<div class=\"code-lang\">go</div>")
	assert.Contains(t, page, "<pre")
	assert.Contains(t, page, "<code class=\"inline-code\">go run</code>")
	assert.Contains(t, page, "light-theme")
}

func TestEscapeYAML(t *testing.T) {
	assert.Equal(t, "plain", escapeYAML("plain"))
	assert.Equal(t, `"a: b"`, escapeYAML("a: b"))
	assert.Equal(t, `"line\nbreak"`, escapeYAML("line\nbreak"))
}

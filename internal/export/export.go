// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversation transcripts as JSON, Markdown or HTML.
package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/jeranaias/ollama-chat/internal/model"
	"github.com/jeranaias/ollama-chat/internal/util"
)

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is what gets exported: one conversation, the model it was held
// with, and when the export happened.
type Document struct {
	Title     string
	Model     string
	Messages  []model.Message
	Timestamp time.Time
}

// NewDocument snapshots conv for export. The timestamp is the export time.
func NewDocument(conv model.Conversation, modelName string) *Document {
	msgs := make([]model.Message, len(conv.Messages))
	copy(msgs, conv.Messages)
	return &Document{
		Title:     conv.Title,
		Model:     modelName,
		Messages:  msgs,
		Timestamp: time.Now(),
	}
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export renders the document in the target format.
	Export(doc *Document) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".html").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeTimestamps includes per-message timestamps (Markdown and HTML).
	IncludeTimestamps bool

	// Theme for HTML export ("light" or "dark").
	// Default: "dark"
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeTimestamps: true,
		Theme:             "dark",
	}
}

// Formats lists the names ForFormat accepts.
var Formats = []string{"json", "markdown", "html"}

// ForFormat returns the exporter for a format name.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return NewJSONExporter(), nil
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// =============================================================================
// FILES
// =============================================================================

var unsafeChars = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
	"\"", "-", "<", "-", ">", "-", "|", "-",
)

// Filename is the suggested file name for a transcript: "chat-" plus the
// title with every whitespace run turned into a hyphen, then ext.
// Characters that are not allowed in file names are replaced as well.
func Filename(title, ext string) string {
	name := hyphenateSpaces(title)
	name = unsafeChars.Replace(name)
	name = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return '-'
		}
		return r
	}, name)
	if strings.Trim(name, "-.") == "" {
		name = "untitled"
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return "chat-" + name + ext
}

// hyphenateSpaces turns each run of Unicode white space (NBSP and U+3000
// included, not only ASCII) into one hyphen.
func hyphenateSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if unicode.IsSpace(r) || r == '\uFEFF' {
			if !inRun {
				b.WriteByte('-')
			}
			inRun = true
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}

// WriteFile exports doc into dir and returns the path written.
//
// NOTE: The whole transcript is rendered in memory before it is written.
func WriteFile(dir string, doc *Document, exporter Exporter) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("document is nil")
	}

	content, err := exporter.Export(doc)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	outputPath := filepath.Join(dir, Filename(doc.Title, exporter.FileExtension()))
	if err := util.WriteFileAtomic(outputPath, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}

func roleLabel(role model.Role) string {
	if !role.Valid() {
		return "Unknown"
	}
	return role.DisplayName()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/ollama-chat/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page. Fenced code
// blocks are highlighted with inline styles so the file needs no assets.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Theme != "light" {
		opts.Theme = "dark"
	}
	return &HTMLExporter{options: opts}
}

// Export converts a document to HTML format.
func (e *HTMLExporter) Export(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(doc.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"ollama-chat\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", doc.Timestamp.Format(time.RFC3339))
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", e.options.Theme)
	sb.WriteString("    <div class=\"container\">\n")

	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", html.EscapeString(doc.Title))
	sb.WriteString("            <div class=\"metadata\">\n")
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Model:</strong> %s</span>\n", html.EscapeString(doc.Model))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Exported:</strong> %s</span>\n", formatTimestamp(doc.Timestamp))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(doc.Messages))
	sb.WriteString("            </div>\n        </header>\n")

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range doc.Messages {
		sb.WriteString(e.renderMessage(msg))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>ollama-chat</strong> on %s</p>\n",
		doc.Timestamp.Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n    </div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderMessage(msg model.Message) string {
	var sb strings.Builder

	roleClass := "unknown"
	if msg.Role.Valid() {
		roleClass = msg.Role.String()
	}
	fmt.Fprintf(&sb, "            <div class=\"message %s-message\">\n", roleClass)
	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(&sb, "                    <span class=\"role-label\">%s</span>\n", html.EscapeString(roleLabel(msg.Role)))
	if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
		fmt.Fprintf(&sb, "                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.Timestamp))
	}
	sb.WriteString("                </div>\n")
	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(e.formatContent(msg.Content))
	sb.WriteString("\n                </div>\n            </div>\n")

	return sb.String()
}

var (
	codeBlockRegex  = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)[ \t]*\n(.*?)```")
	inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")
)

// formatContent turns message text into HTML: fenced code blocks are
// highlighted, everything else is escaped and split into paragraphs.
func (e *HTMLExporter) formatContent(content string) string {
	var sb strings.Builder

	last := 0
	for _, loc := range codeBlockRegex.FindAllStringSubmatchIndex(content, -1) {
		sb.WriteString(formatProse(content[last:loc[0]]))
		lang := content[loc[2]:loc[3]]
		code := content[loc[4]:loc[5]]
		sb.WriteString(e.renderCodeBlock(lang, code))
		last = loc[1]
	}
	sb.WriteString(formatProse(content[last:]))

	return sb.String()
}

func (e *HTMLExporter) renderCodeBlock(lang, code string) string {
	langLabel := ""
	if lang != "" {
		langLabel = fmt.Sprintf("<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
	}

	highlighted, err := highlight(code, lang, e.styleName())
	if err != nil {
		highlighted = "<pre><code>" + html.EscapeString(code) + "</code></pre>"
	}
	return "<div class=\"code-block\">" + langLabel + highlighted + "</div>\n"
}

func (e *HTMLExporter) styleName() string {
	if e.options.Theme == "light" {
		return "github"
	}
	return "monokai"
}

// highlight renders code as an inline-styled <pre> using chroma.
func highlight(code, lang, styleName string) (string, error) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4))
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatProse(text string) string {
	var sb strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		escaped := html.EscapeString(para)
		escaped = inlineCodeRegex.ReplaceAllString(escaped, "<code class=\"inline-code\">$1</code>")
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		sb.WriteString("<p>" + escaped + "</p>\n")
	}
	return sb.String()
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const pageCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif;
            --font-mono: "SF Mono", Menlo, "Fira Code", monospace;
        }
        .dark-theme { --bg: #111827; --card: #1f2937; --text: #f9fafb; --muted: #9ca3af; --border: #374151; --user: #4f46e5; }
        .light-theme { --bg: #f9fafb; --card: #ffffff; --text: #111827; --muted: #6b7280; --border: #e5e7eb; --user: #4f46e5; }
        body { font-family: var(--font-sans); background: var(--bg); color: var(--text); line-height: 1.6; padding: 24px; }
        .container { max-width: 860px; margin: 0 auto; }
        .header, .footer { padding: 20px 24px; }
        .header h1 { font-size: 1.6rem; margin-bottom: 8px; }
        .metadata { display: flex; gap: 16px; flex-wrap: wrap; color: var(--muted); font-size: 0.9rem; }
        .conversation { display: flex; flex-direction: column; gap: 16px; padding: 0 24px; }
        .message { background: var(--card); border: 1px solid var(--border); border-radius: 12px; padding: 16px 20px; }
        .user-message { border-left: 4px solid var(--user); }
        .system-message { font-style: italic; opacity: 0.8; }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 8px; font-weight: 600; }
        .timestamp { color: var(--muted); font-weight: normal; font-size: 0.85rem; }
        .message-content p { margin-bottom: 10px; }
        .code-block { margin: 12px 0; border-radius: 8px; overflow: hidden; }
        .code-block pre { padding: 12px 16px; overflow-x: auto; font-family: var(--font-mono); font-size: 0.9rem; }
        .code-lang { font-size: 0.75rem; color: var(--muted); padding: 4px 16px; border-bottom: 1px solid var(--border); }
        .inline-code { font-family: var(--font-mono); background: var(--border); padding: 1px 5px; border-radius: 4px; }
        .footer { color: var(--muted); font-size: 0.85rem; text-align: center; }
        @media print { body { padding: 0; } .message { page-break-inside: avoid; } }
    </style>
`

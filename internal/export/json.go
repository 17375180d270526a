// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter writes {title, model, messages, timestamp}, indented by two
// spaces. Messages keep their stored order and carry role, content and
// timestamp.
type JSONExporter struct{}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

type jsonMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type jsonDocument struct {
	Title     string        `json:"title"`
	Model     string        `json:"model"`
	Messages  []jsonMessage `json:"messages"`
	Timestamp string        `json:"timestamp"`
}

// Export converts a document to JSON format.
func (e *JSONExporter) Export(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	out := jsonDocument{
		Title:     doc.Title,
		Model:     doc.Model,
		Messages:  make([]jsonMessage, 0, len(doc.Messages)),
		Timestamp: doc.Timestamp.UTC().Format(time.RFC3339),
	}
	for _, m := range doc.Messages {
		out.Messages = append(out.Messages, jsonMessage{
			Role:      m.Role.String(),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversation transcripts as JSON, Markdown or HTML.
//
// # Key Types
//
//   - Document: title, model, messages and export time
//   - Exporter: interface implemented by each format
//   - JSONExporter: {title, model, messages, timestamp}
//   - MarkdownExporter: front matter plus one section per message
//   - HTMLExporter: standalone page with highlighted code blocks
//
// # Usage
//
//	doc := export.NewDocument(store.Current(), ctrl.SelectedModel())
//	path, err := export.WriteFile(dir, doc, export.NewJSONExporter())
//	// dir/chat-Tell-me-a-joke.json
package export

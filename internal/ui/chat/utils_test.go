// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
)

// =============================================================================
// FORMATTING UTILITIES TESTS
// =============================================================================

func TestFormatTimestamp(t *testing.T) {
	now := time.Now()

	result := formatTimestamp(now)
	if !strings.Contains(result, ":") {
		t.Error("formatTimestamp(today) should contain time with colon")
	}
	if strings.Contains(result, "Jan") {
		t.Error("formatTimestamp(today) should not contain a month")
	}

	lastYear := now.AddDate(-1, 0, 0)
	result = formatTimestamp(lastYear)
	if !strings.Contains(result, lastYear.Format("Jan")) {
		t.Errorf("formatTimestamp(last year) = %q, want month name", result)
	}

	if formatTimestamp(time.Time{}) != "" {
		t.Error("zero time should format as empty")
	}
}

func TestFormatChars(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 chars"},
		{999, "999 chars"},
		{1000, "1.0K chars"},
		{1250, "1.2K chars"},
	}
	for _, tt := range tests {
		if got := formatChars(tt.n); got != tt.want {
			t.Errorf("formatChars(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

// =============================================================================
// TEXT UTILITIES TESTS
// =============================================================================

func TestTruncateToWidth(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"ascii", "hello world", 8, "hello w…"},
		{"zero", "hello", 0, ""},
		{"one", "hello", 1, "…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateToWidth(tt.in, tt.width); got != tt.want {
				t.Errorf("truncateToWidth(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}

func TestTruncateToWidth_WideRunes(t *testing.T) {
	in := "日本語のタイトル"
	got := truncateToWidth(in, 7)
	if w := runewidth.StringWidth(got); w > 7 {
		t.Errorf("width = %d, want <= 7 (%q)", w, got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis, got %q", got)
	}
}

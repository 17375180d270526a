// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/export"
	"github.com/jeranaias/ollama-chat/internal/model"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/telemetry"
)

// ============================================================================
// CONVERSATIONS
// ============================================================================

// ConversationList is the body of GET /api/conversations.
type ConversationList struct {
	CurrentID     int                  `json:"current_id"`
	Conversations []model.Conversation `json:"conversations"`
}

func (s *Server) listConversations(c *gin.Context) {
	c.JSON(http.StatusOK, ConversationList{
		CurrentID:     s.store.CurrentID(),
		Conversations: s.store.List(),
	})
}

func (s *Server) createConversation(c *gin.Context) {
	id := s.store.Create()
	conv, err := s.store.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (s *Server) currentConversation(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Current())
}

func (s *Server) getConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	conv, err := s.store.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) selectConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := s.store.Select(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.store.Current())
}

type renameRequest struct {
	Title string `json:"title"`
}

func (s *Server) renameConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: invalid request body", chat.ErrInvalidInput))
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(c, fmt.Errorf("%w: title is empty", chat.ErrInvalidInput))
		return
	}
	if err := s.store.Rename(id, title); err != nil {
		writeError(c, err)
		return
	}
	conv, err := s.store.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) deleteConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := s.store.Delete(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current_id": s.store.CurrentID()})
}

func (s *Server) clearConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := s.store.Clear(id); err != nil {
		writeError(c, err)
		return
	}
	conv, err := s.store.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// ============================================================================
// TURNS
// ============================================================================

type turnRequest struct {
	Content string `json:"content"`
}

// TurnResponse is the body of a completed turn.
type TurnResponse struct {
	TurnID         string        `json:"turn_id"`
	ConversationID int           `json:"conversation_id"`
	Model          string        `json:"model"`
	User           model.Message `json:"user"`
	Reply          model.Message `json:"reply"`
	Discarded      bool          `json:"discarded"`
	DurationMS     int64         `json:"duration_ms"`
	PromptTokens   int           `json:"prompt_tokens"`
	ReplyTokens    int           `json:"reply_tokens"`
}

func (s *Server) submitTurn(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: invalid request body", chat.ErrInvalidInput))
		return
	}

	outcome, err := s.chat.SubmitTurn(c.Request.Context(), id, req.Content, s.Settings())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, TurnResponse{
		TurnID:         outcome.TurnID,
		ConversationID: outcome.ConversationID,
		Model:          outcome.Model,
		User:           outcome.User,
		Reply:          outcome.Reply,
		Discarded:      outcome.Discarded,
		DurationMS:     outcome.Duration.Milliseconds(),
		PromptTokens:   outcome.PromptTokens,
		ReplyTokens:    outcome.ReplyTokens,
	})
}

// ============================================================================
// EXPORT
// ============================================================================

func (s *Server) exportConversation(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	conv, err := s.store.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}

	opts := export.DefaultOptions()
	if theme := c.Query("theme"); theme != "" {
		opts.Theme = theme
	}
	exporter, err := export.ForFormat(c.DefaultQuery("format", "json"), opts)
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", chat.ErrInvalidInput, err))
		return
	}

	data, err := exporter.Export(export.NewDocument(conv, s.chat.SelectedModel()))
	if err != nil {
		writeError(c, err)
		return
	}

	filename := export.Filename(conv.Title, exporter.FileExtension())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, exporter.MimeType(), data)
}

// ============================================================================
// MODELS
// ============================================================================

// ModelEntry is one installed model.
type ModelEntry struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	SizeLabel  string    `json:"size_label"`
	ModifiedAt time.Time `json:"modified_at"`
	Family     string    `json:"family,omitempty"`
	Parameters string    `json:"parameters,omitempty"`
}

// ModelsResponse is the body of the model endpoints.
type ModelsResponse struct {
	Models   []ModelEntry `json:"models"`
	Selected string       `json:"selected"`
}

func (s *Server) modelsResponse(models []ollama.ModelInfo) ModelsResponse {
	entries := make([]ModelEntry, 0, len(models))
	for i := range models {
		m := &models[i]
		entries = append(entries, ModelEntry{
			Name:       m.Name,
			Size:       m.Size,
			SizeLabel:  m.FormatSize(),
			ModifiedAt: m.ModifiedAt,
			Family:     m.Details.Family,
			Parameters: m.Details.ParameterSize,
		})
	}
	return ModelsResponse{Models: entries, Selected: s.chat.SelectedModel()}
}

func (s *Server) listModels(c *gin.Context) {
	models, err := s.chat.ListModels(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.modelsResponse(models))
}

type modelRequest struct {
	Name string `json:"name"`
}

func (s *Server) pullModel(c *gin.Context) {
	var req modelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: invalid request body", chat.ErrInvalidInput))
		return
	}
	models, err := s.chat.PullModel(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.modelsResponse(models))
}

func (s *Server) selectedModel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"name": s.chat.SelectedModel()})
}

func (s *Server) selectModel(c *gin.Context) {
	var req modelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: invalid request body", chat.ErrInvalidInput))
		return
	}
	if err := s.chat.SelectModel(req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": s.chat.SelectedModel()})
}

// ============================================================================
// SETTINGS AND USAGE
// ============================================================================

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.Settings())
}

// putSettings decodes the body over the current settings, so fields left
// out keep their values.
func (s *Server) putSettings(c *gin.Context) {
	next := s.Settings()
	if err := c.ShouldBindJSON(&next); err != nil {
		writeError(c, fmt.Errorf("%w: invalid request body", chat.ErrInvalidInput))
		return
	}
	if err := s.SetSettings(next); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, next)
}

func (s *Server) getUsage(c *gin.Context) {
	usage := s.chat.Usage()
	if usage == nil {
		c.JSON(http.StatusOK, telemetry.UsageSummary{})
		return
	}
	c.JSON(http.StatusOK, usage.Summary())
}

// conversationID parses the :id path parameter, answering 400 itself when
// it is not a positive integer.
func conversationID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		writeError(c, fmt.Errorf("%w: invalid conversation id %q", chat.ErrInvalidInput, c.Param("id")))
		return 0, false
	}
	return id, true
}

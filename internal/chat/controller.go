// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat runs chat turns against the inference backend and folds the
// results back into the conversation store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/model"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/store"
	"github.com/jeranaias/ollama-chat/internal/telemetry"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Backend is the inference server. *ollama.Client implements it.
type Backend interface {
	Chat(ctx context.Context, req ollama.ChatRequest) (*ollama.ChatResponse, error)
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
	PullModel(ctx context.Context, name string) error
}

// ConversationStore is the part of the store a turn touches. *store.Store
// implements it.
type ConversationStore interface {
	AppendMessage(id int, msg model.Message) error
	Get(id int) (model.Conversation, error)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Outcome describes a completed turn.
type Outcome struct {
	TurnID         string
	ConversationID int
	Model          string
	User           model.Message
	Reply          model.Message

	// Discarded is true when the conversation was deleted while the request
	// was in flight. The reply was not stored anywhere.
	Discarded bool

	Duration     time.Duration
	PromptTokens int
	ReplyTokens  int
}

// Controller executes at most one chat turn at a time, process-wide.
//
// Model listing, pulling and selection are independent of the in-flight turn
// and may run while one is pending.
type Controller struct {
	store   ConversationStore
	backend Backend

	inFlight atomic.Bool

	mu       sync.RWMutex
	selected string
	models   []ollama.ModelInfo

	logger *zap.Logger
	tracer trace.Tracer
	usage  *telemetry.UsageTracker
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracer sets the tracer turns and model operations are recorded on.
func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithUsage records every successful turn into u.
func WithUsage(u *telemetry.UsageTracker) Option {
	return func(c *Controller) {
		c.usage = u
	}
}

// WithModel preselects a model without checking that it is installed.
func WithModel(name string) Option {
	return func(c *Controller) {
		c.selected = strings.TrimSpace(name)
	}
}

// NewController wires a controller to its store and backend.
func NewController(s ConversationStore, backend Backend, opts ...Option) *Controller {
	c := &Controller{
		store:   s,
		backend: backend,
		logger:  zap.NewNop(),
		tracer:  noop.NewTracerProvider().Tracer(telemetry.TracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InFlight reports whether a turn is outstanding.
func (c *Controller) InFlight() bool {
	return c.inFlight.Load()
}

// Usage returns the usage tracker, which may be nil.
func (c *Controller) Usage() *telemetry.UsageTracker {
	return c.usage
}

// =============================================================================
// TURNS
// =============================================================================

// SubmitTurn sends userText to the selected model as the next message of the
// conversation and stores the reply.
//
// Preconditions are checked in order (blank text or bad settings, a turn
// already in flight, no model selected) and a violation changes nothing.
// Once past them the user message is stored and stays even if the backend
// call fails. settings.Streaming is accepted but the request is always a
// single full response.
func (c *Controller) SubmitTurn(ctx context.Context, conversationID int, userText string, settings model.Settings) (*Outcome, error) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if c.inFlight.Load() {
		return nil, ErrBusy
	}
	modelName := c.SelectedModel()
	if modelName == "" {
		return nil, ErrNoModelSelected
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.inFlight.Store(false)

	turnID := telemetry.NewTurnID()
	ctx, span := c.tracer.Start(ctx, "chat.submit_turn", trace.WithAttributes(
		attribute.String("turn.id", turnID),
		attribute.Int("conversation.id", conversationID),
		attribute.String("model", modelName),
		attribute.Float64("settings.temperature", settings.Temperature),
		attribute.Int("settings.max_tokens", settings.MaxTokens),
		attribute.Bool("settings.streaming_requested", settings.Streaming),
	))
	defer span.End()

	log := c.logger.With(
		zap.String("turn_id", turnID),
		zap.Int("conversation_id", conversationID),
		zap.String("model", modelName),
	)

	userMsg := model.NewUserMessage(text)
	if err := c.store.AppendMessage(conversationID, userMsg); err != nil {
		span.SetStatus(codes.Error, "conversation not found")
		return nil, err
	}

	outcome := &Outcome{
		TurnID:         turnID,
		ConversationID: conversationID,
		Model:          modelName,
		User:           userMsg,
	}

	conv, err := c.store.Get(conversationID)
	if err != nil {
		// Deleted between the append and the read.
		log.Info("conversation deleted before request was sent")
		outcome.Discarded = true
		span.SetAttributes(attribute.Bool("turn.discarded", true))
		return outcome, nil
	}

	req := ollama.ChatRequest{
		Model:    modelName,
		Messages: BuildMessages(settings.SystemPrompt, conv.Messages),
		Stream:   false,
		Options: &ollama.Options{
			Temperature: settings.Temperature,
			NumPredict:  settings.MaxTokens,
		},
	}

	log.Debug("sending chat request", zap.Int("messages", len(req.Messages)))
	start := time.Now()
	resp, err := c.backend.Chat(ctx, req)
	outcome.Duration = time.Since(start)
	if err != nil {
		turnErr := classify("chat", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, turnErr.Kind.String())
		log.Warn("chat request failed",
			zap.String("kind", turnErr.Kind.String()),
			zap.Duration("duration", outcome.Duration),
			zap.Error(err))
		return nil, turnErr
	}

	reply := model.NewAssistantMessage(resp.Message.Content)
	outcome.Reply = reply
	outcome.PromptTokens = resp.PromptEvalCount
	outcome.ReplyTokens = resp.EvalCount

	if err := c.store.AppendMessage(conversationID, reply); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		log.Info("conversation deleted while turn was in flight, reply discarded")
		outcome.Discarded = true
		span.SetAttributes(attribute.Bool("turn.discarded", true))
		return outcome, nil
	}

	span.SetAttributes(
		attribute.Int("tokens.prompt", resp.PromptEvalCount),
		attribute.Int("tokens.reply", resp.EvalCount),
	)
	if c.usage != nil {
		c.usage.Record(telemetry.TurnUsage{
			TurnID:         turnID,
			ConversationID: conversationID,
			Model:          modelName,
			InputTokens:    resp.PromptEvalCount,
			OutputTokens:   resp.EvalCount,
			Duration:       outcome.Duration,
		})
	}
	log.Info("turn complete",
		zap.Duration("duration", outcome.Duration),
		zap.Int("reply_tokens", resp.EvalCount))
	return outcome, nil
}

// BuildMessages is the wire history for a turn: the system prompt, if any,
// followed by every stored message in order.
func BuildMessages(systemPrompt string, history []model.Message) []ollama.Message {
	out := make([]ollama.Message, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, ollama.NewSystemMessage(systemPrompt))
	}
	for _, m := range history {
		out = append(out, ollama.Message{Role: m.Role.String(), Content: m.Content})
	}
	return out
}

// =============================================================================
// MODELS
// =============================================================================

// SelectedModel returns the model turns are sent to, or "".
func (c *Controller) SelectedModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// SelectModel chooses the model for later turns. When the installed list is
// known the name must be on it.
func (c *Controller) SelectModel(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.models) > 0 && !containsModel(c.models, name) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	c.selected = name
	c.logger.Info("model selected", zap.String("model", name))
	return nil
}

// Models returns the installed models from the last successful listing.
func (c *Controller) Models() []ollama.ModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ollama.ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}

// ListModels asks the backend for installed models and caches the result.
func (c *Controller) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	ctx, span := c.tracer.Start(ctx, "chat.list_models")
	defer span.End()

	models, err := c.backend.ListModels(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		c.logger.Warn("model listing failed", zap.Error(err))
		return nil, &TurnError{Kind: KindModelDiscoveryFailed, Op: "list", Err: err}
	}
	span.SetAttributes(attribute.Int("models.count", len(models)))

	c.mu.Lock()
	c.models = append([]ollama.ModelInfo(nil), models...)
	c.mu.Unlock()

	return c.Models(), nil
}

// DiscoverModels lists installed models and selects the first one when no
// model has been chosen yet. It runs once at startup.
func (c *Controller) DiscoverModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.selected == "" && len(models) > 0 {
		c.selected = models[0].Name
		c.logger.Info("model auto-selected", zap.String("model", c.selected))
	}
	c.mu.Unlock()

	return models, nil
}

// PullModel downloads a model and refreshes the installed list. It does not
// change the selection.
func (c *Controller) PullModel(ctx context.Context, name string) ([]ollama.ModelInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: model name is empty", ErrInvalidInput)
	}

	ctx, span := c.tracer.Start(ctx, "chat.pull_model", trace.WithAttributes(
		attribute.String("model", name),
	))
	defer span.End()

	c.logger.Info("pulling model", zap.String("model", name))
	if err := c.backend.PullModel(ctx, name); err != nil {
		turnErr := classify("pull", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, turnErr.Kind.String())
		c.logger.Warn("model pull failed", zap.String("model", name), zap.Error(err))
		return nil, turnErr
	}

	return c.ListModels(ctx)
}

func containsModel(models []ollama.ModelInfo, name string) bool {
	for _, m := range models {
		if m.Name == name {
			return true
		}
	}
	return false
}

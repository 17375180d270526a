// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat for ollama-chat.
//
// Used by "ollama-chat chat" and by the root command when stdin or stdout is
// not a terminal. It drives the same store and controller as the full-screen
// interface.
//
// Interactive Commands:
//   /help               Show available commands
//   /new                Start a new conversation
//   /list               List conversations
//   /switch ID          Select a conversation
//   /rename TITLE       Rename the current conversation
//   /delete [ID]        Delete a conversation (default: current)
//   /clear              Clear the current conversation
//   /model [NAME]       Show or switch model
//   /models             List installed models
//   /pull NAME          Download a model
//   /set KEY VALUE      Change temperature, max_tokens or system
//   /export [FORMAT]    Export the current conversation
//   /usage              Show token usage for this session
//   /quit, /exit        Exit chat

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/config"
	"github.com/jeranaias/ollama-chat/internal/export"
	"github.com/jeranaias/ollama-chat/internal/model"
	"github.com/jeranaias/ollama-chat/internal/store"
)

func newChatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start the line-mode chat",
		Long: `Start a line-mode chat session.

Type a message and press Enter. Lines starting with / are commands; type
/help for the list. Input can also be piped in, one prompt per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader yields one line of user input at a time. io.EOF ends the
// session.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadLine reads a line of input with the given prompt. Ctrl+C and Ctrl+D
// both end the session.
func (c *ChatCLI) ReadLine(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", io.EOF
		}
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history, owner read/write only.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// scanReader reads piped input without prompts.
type scanReader struct {
	sc *bufio.Scanner
}

func newScanReader(r io.Reader) *scanReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &scanReader{sc: sc}
}

func (s *scanReader) ReadLine(string) (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *scanReader) Close() {}

// =============================================================================
// CHAT LOOP
// =============================================================================

// runChat runs the line-mode session until EOF or /quit.
func runChat(ctx context.Context, opts *globalOptions, in io.Reader, out io.Writer) error {
	interactive := isInteractive()
	target := logToStderr
	if interactive {
		target = logToFile
	}

	a, err := newApp(ctx, opts, target)
	if err != nil {
		return err
	}
	defer a.Close()

	s := newReplSession(a.store, a.ctrl, a.cfg.Settings(), out)
	s.exportDir = a.cfg.UI.ExportDir
	s.logger = a.logger
	if ColorsEnabled() {
		s.renderer = newMarkdownRenderer(a.cfg.UI.Theme)
	}

	var reader lineReader
	prompt := ""
	if interactive {
		reader = NewChatCLI()
		prompt = "> "
	} else {
		reader = newScanReader(in)
	}
	defer reader.Close()

	if _, err := a.ctrl.DiscoverModels(ctx); err != nil {
		var turnErr *chat.TurnError
		if errors.As(err, &turnErr) {
			fmt.Fprintf(out, "%s %s\n", WarningStyle.Render("[WARN]"), turnErr.UserMessage())
		}
	}
	if interactive {
		s.printWelcome()
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := reader.ReadLine(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if interactive {
					s.printSummary()
				}
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if s.handleLine(ctx, line) {
			if interactive {
				s.printSummary()
			}
			return nil
		}
	}
}

// newMarkdownRenderer returns nil when glamour cannot be set up; replies are
// then printed as plain text.
func newMarkdownRenderer(theme string) *glamour.TermRenderer {
	style := "dark"
	if strings.EqualFold(theme, "light") {
		style = "light"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(min(GetTerminalWidth()-4, 100)),
	)
	if err != nil {
		return nil
	}
	return r
}

// =============================================================================
// SESSION
// =============================================================================

// replSession executes one line of input at a time against the store and
// controller.
type replSession struct {
	store    *store.Store
	ctrl     *chat.Controller
	settings model.Settings
	out      io.Writer

	exportDir string
	renderer  *glamour.TermRenderer
	logger    *zap.Logger
	started   time.Time
}

func newReplSession(st *store.Store, ctrl *chat.Controller, settings model.Settings, out io.Writer) *replSession {
	return &replSession{
		store:    st,
		ctrl:     ctrl,
		settings: settings,
		out:      out,
		logger:   zap.NewNop(),
		started:  time.Now(),
	}
}

// handleLine processes one line. It returns true when the session should
// end.
func (s *replSession) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if strings.HasPrefix(line, "/") {
		quit, err := s.handleCommand(ctx, line)
		if err != nil {
			s.printError(err)
		}
		return quit
	}

	if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
		return true
	}

	if err := s.send(ctx, line); err != nil {
		s.printError(err)
	}
	return false
}

// send runs one chat turn in the current conversation.
func (s *replSession) send(ctx context.Context, text string) error {
	outcome, err := s.ctrl.SubmitTurn(ctx, s.store.CurrentID(), text, s.settings)
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, AssistantLabelStyle.Render("Assistant"))
	fmt.Fprintln(s.out, s.renderReply(outcome.Reply.Content))
	fmt.Fprintln(s.out, DimStyle.Render(fmt.Sprintf("[%s | %d tokens | %s]",
		outcome.Model, outcome.ReplyTokens, formatDurationShort(outcome.Duration))))
	return nil
}

func (s *replSession) renderReply(content string) string {
	if s.renderer == nil {
		return content
	}
	rendered, err := s.renderer.Render(content)
	if err != nil {
		s.logger.Debug("markdown render failed", zap.Error(err))
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleCommand processes slash commands. It returns true to end the
// session.
func (s *replSession) handleCommand(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	args := parts[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	switch command {
	case "/help", "/h", "/?", "/":
		s.printHelp()

	case "/quit", "/q", "/exit":
		return true, nil

	case "/new":
		id := s.store.Create()
		s.ok("Started conversation %d", id)

	case "/list", "/ls":
		s.printConversations()

	case "/switch":
		id, err := conversationArg(args, "/switch ID")
		if err != nil {
			return false, err
		}
		if err := s.store.Select(id); err != nil {
			return false, fmt.Errorf("conversation %d: %w", id, err)
		}
		conv := s.store.Current()
		s.ok("Switched to %d: %s", conv.ID, conv.Title)

	case "/rename":
		if rest == "" {
			return false, ErrMissingArgument("title", "/rename Trip ideas")
		}
		if err := s.store.Rename(s.store.CurrentID(), rest); err != nil {
			return false, err
		}
		s.ok("Renamed to %s", rest)

	case "/delete":
		id := s.store.CurrentID()
		if len(args) > 0 {
			var err error
			if id, err = conversationArg(args, "/delete ID"); err != nil {
				return false, err
			}
		}
		if err := s.store.Delete(id); err != nil {
			return false, fmt.Errorf("conversation %d: %w", id, err)
		}
		s.ok("Deleted conversation %d", id)

	case "/clear", "/c":
		if err := s.store.Clear(s.store.CurrentID()); err != nil {
			return false, err
		}
		s.ok("Conversation cleared")

	case "/model", "/m":
		if len(args) == 0 {
			name := s.ctrl.SelectedModel()
			if name == "" {
				name = "(none)"
			}
			fmt.Fprintf(s.out, "Current model: %s\n", name)
			return false, nil
		}
		if err := s.ctrl.SelectModel(args[0]); err != nil {
			if errors.Is(err, chat.ErrUnknownModel) {
				return false, withModelSuggestion(err, args[0], s.ctrl.Models())
			}
			return false, err
		}
		s.ok("Switched to model %s", args[0])

	case "/models":
		if _, err := s.ctrl.ListModels(ctx); err != nil {
			return false, err
		}
		s.printModels()

	case "/pull":
		if len(args) == 0 {
			return false, ErrMissingArgument("model", "/pull llama3.2")
		}
		fmt.Fprintf(s.out, "Pulling %s...\n", args[0])
		if _, err := s.ctrl.PullModel(ctx, args[0]); err != nil {
			return false, err
		}
		s.ok("Pulled %s", args[0])

	case "/set":
		if err := s.set(args); err != nil {
			return false, err
		}

	case "/settings":
		s.printSettings()

	case "/export":
		format := "json"
		if len(args) > 0 {
			format = args[0]
		}
		path, err := s.export(format)
		if err != nil {
			return false, err
		}
		s.ok("Exported to %s", path)

	case "/usage":
		s.printUsage()

	default:
		return false, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return false, nil
}

func conversationArg(args []string, usage string) (int, error) {
	if len(args) == 0 {
		return 0, ErrMissingArgument("id", usage)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return 0, NewValidationError("id", args[0], "must be a positive number")
	}
	return id, nil
}

// set changes one generation setting for the rest of the session.
func (s *replSession) set(args []string) error {
	if len(args) < 2 {
		return ErrMissingArgument("value", "/set temperature 0.5")
	}
	key := strings.ToLower(args[0])
	value := strings.Join(args[1:], " ")

	next := s.settings
	switch key {
	case "temperature", "temp":
		t, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return NewValidationError("temperature", value, "not a number")
		}
		next = next.WithTemperature(t)
	case "max_tokens", "max-tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return NewValidationError("max_tokens", value, "not a whole number")
		}
		next = next.WithMaxTokens(n)
	case "system", "system_prompt":
		next = next.WithSystemPrompt(value)
	default:
		return NewValidationError("setting", key, "expected temperature, max_tokens or system")
	}

	if err := next.Validate(); err != nil {
		return NewValidationError(key, value, err.Error())
	}
	s.settings = next
	s.ok("%s updated", key)
	return nil
}

func (s *replSession) export(format string) (string, error) {
	exporter, err := export.ForFormat(format, export.DefaultOptions())
	if err != nil {
		return "", ErrUnsupportedFormat(format, export.Formats)
	}
	doc := export.NewDocument(s.store.Current(), s.ctrl.SelectedModel())
	return export.WriteFile(s.exportDir, doc, exporter)
}

// =============================================================================
// DISPLAY
// =============================================================================

func (s *replSession) ok(format string, args ...interface{}) {
	fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render("[OK]"), fmt.Sprintf(format, args...))
}

func (s *replSession) printError(err error) {
	fmt.Fprintf(s.out, "%s %s\n", paint(s.out, ErrorStyle, "[Error]"), userMessage(err))
	printHints(s.out, err)
	s.logger.Debug("chat command failed", zap.Error(err))
}

func (s *replSession) printWelcome() {
	fmt.Fprintln(s.out, TitleStyle.Render("ollama-chat"))
	name := s.ctrl.SelectedModel()
	if name == "" {
		name = "(none, use /models and /model NAME)"
	}
	fmt.Fprintf(s.out, "%s%s\n", RenderLabel("Model:"), ValueStyle.Render(name))
	fmt.Fprintln(s.out, DimStyle.Render("Type a message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(s.out)
}

func (s *replSession) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/new", "Start a new conversation"},
		{"/list", "List conversations"},
		{"/switch ID", "Select a conversation"},
		{"/rename TITLE", "Rename the current conversation"},
		{"/delete [ID]", "Delete a conversation"},
		{"/clear", "Clear the current conversation"},
		{"/model [NAME]", "Show or switch model"},
		{"/models", "List installed models"},
		{"/pull NAME", "Download a model"},
		{"/set KEY VALUE", "Set temperature, max_tokens or system"},
		{"/settings", "Show generation settings"},
		{"/export [FORMAT]", "Export as json, markdown or html"},
		{"/usage", "Show token usage"},
		{"/quit", "Exit chat"},
	}

	fmt.Fprintln(s.out, TitleStyle.Render("Commands"))
	for _, c := range commands {
		fmt.Fprintf(s.out, "  %-18s %s\n", c.cmd, DimStyle.Render(c.desc))
	}
}

func (s *replSession) printConversations() {
	current := s.store.CurrentID()
	for _, c := range s.store.List() {
		mark := " "
		if c.ID == current {
			mark = "*"
		}
		fmt.Fprintf(s.out, "%s %3d  %s %s\n", mark, c.ID, c.Title,
			DimStyle.Render(fmt.Sprintf("(%d msgs)", c.MessageCount())))
	}
}

func (s *replSession) printModels() {
	models := s.ctrl.Models()
	if len(models) == 0 {
		fmt.Fprintln(s.out, "No models installed. Use /pull NAME to download one.")
		return
	}
	selected := s.ctrl.SelectedModel()
	for _, m := range models {
		mark := " "
		if m.Name == selected {
			mark = "*"
		}
		fmt.Fprintf(s.out, "%s %-32s %s\n", mark, m.Name, DimStyle.Render(m.FormatSize()))
	}
}

func (s *replSession) printSettings() {
	fmt.Fprintf(s.out, "%s%.2f\n", RenderLabel("temperature:"), s.settings.Temperature)
	fmt.Fprintf(s.out, "%s%d\n", RenderLabel("max_tokens:"), s.settings.MaxTokens)
	system := s.settings.SystemPrompt
	if system == "" {
		system = "(none)"
	}
	fmt.Fprintf(s.out, "%s%s\n", RenderLabel("system:"), system)
}

func (s *replSession) printUsage() {
	u := s.ctrl.Usage()
	if u == nil {
		fmt.Fprintln(s.out, "Usage tracking is off.")
		return
	}
	sum := u.Summary()
	fmt.Fprintf(s.out, "%s%d\n", RenderLabel("Turns:"), sum.Turns)
	fmt.Fprintf(s.out, "%s%d in / %d out\n", RenderLabel("Tokens:"), sum.Total.Input, sum.Total.Output)
	fmt.Fprintf(s.out, "%s%.1f tok/s\n", RenderLabel("Speed:"), sum.TokensPerSecond())
	for _, name := range sum.Models() {
		tc := sum.ByModel[name]
		fmt.Fprintf(s.out, "  %-30s %d in / %d out\n", name, tc.Input, tc.Output)
	}
}

func (s *replSession) printSummary() {
	fmt.Fprintln(s.out)
	if u := s.ctrl.Usage(); u != nil {
		if sum := u.Summary(); sum.Turns > 0 {
			fmt.Fprintf(s.out, "%d turns, %d tokens, %s\n",
				sum.Turns, sum.Total.Input+sum.Total.Output,
				formatDuration(time.Since(s.started)))
		}
	}
	fmt.Fprintln(s.out, DimStyle.Render("Goodbye!"))
}

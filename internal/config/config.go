// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/ollama-chat/internal/logging"
	"github.com/jeranaias/ollama-chat/internal/model"
	"github.com/jeranaias/ollama-chat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete ollama-chat configuration.
type Config struct {
	Ollama     OllamaConfig     `toml:"ollama" json:"ollama"`
	Generation GenerationConfig `toml:"generation" json:"generation"`
	Log        LogConfig        `toml:"log" json:"log"`
	Server     ServerConfig     `toml:"server" json:"server"`
	Telemetry  TelemetryConfig  `toml:"telemetry" json:"telemetry"`
	UI         UIConfig         `toml:"ui" json:"ui"`
}

// OllamaConfig points the client at the inference server.
type OllamaConfig struct {
	URL         string   `toml:"url" json:"url"`
	Timeout     Duration `toml:"timeout" json:"timeout"`
	PullTimeout Duration `toml:"pull_timeout" json:"pull_timeout"`

	// DefaultModel is selected at startup instead of the first installed
	// model. Empty means auto-select.
	DefaultModel string `toml:"default_model" json:"default_model"`
}

// GenerationConfig holds the starting generation settings.
type GenerationConfig struct {
	Temperature  float64 `toml:"temperature" json:"temperature"`
	MaxTokens    int     `toml:"max_tokens" json:"max_tokens"`
	SystemPrompt string  `toml:"system_prompt" json:"system_prompt"`
	Streaming    bool    `toml:"streaming" json:"streaming"`
}

// LogConfig is the [log] section.
type LogConfig struct {
	Level    string `toml:"level" json:"level"`
	File     string `toml:"file" json:"file"`
	Encoding string `toml:"encoding" json:"encoding"`
}

// ServerConfig configures `ollama-chat serve`.
type ServerConfig struct {
	Addr           string   `toml:"addr" json:"addr"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled" json:"enabled"`
	Endpoint string `toml:"endpoint" json:"endpoint"`
	Insecure bool   `toml:"insecure" json:"insecure"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	Theme     string `toml:"theme" json:"theme"` // auto, dark, light
	ExportDir string `toml:"export_dir" json:"export_dir"`
}

// Duration is a time.Duration written as "5m" in the config file.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	defaults := model.DefaultSettings()
	return &Config{
		Ollama: OllamaConfig{
			URL:         "http://localhost:11434",
			Timeout:     Duration(5 * time.Minute),
			PullTimeout: Duration(60 * time.Minute),
		},
		Generation: GenerationConfig{
			Temperature:  defaults.Temperature,
			MaxTokens:    defaults.MaxTokens,
			SystemPrompt: defaults.SystemPrompt,
			Streaming:    defaults.Streaming,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
			RateLimit:      10,
			RateBurst:      20,
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4318",
			Insecure: true,
		},
		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ollama-chat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ollama-chat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultLogFile is where the terminal UI logs when no file is configured.
func DefaultLogFile() string {
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ollama-chat.log")
	}
	return filepath.Join(dir, "ollama-chat.log")
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file, falling back to defaults when it does
// not exist. A .env file in the working directory is loaded first and
// OLLAMA_CHAT_* variables are applied last.
func Load() (*Config, error) {
	path, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load for an explicit file. A missing file is not an error.
func LoadFromPath(path string) (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}

	cfg := Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, statErr)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path on top of cfg. Keys missing from the file keep the
// values cfg already has.
func LoadTOML(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return fillDefaults(cfg)
}

// loadEnvFile loads name into the process environment. Variables that are
// already set win, and a missing file is ignored.
func loadEnvFile(name string) error {
	if err := godotenv.Load(name); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	return nil
}

// fillDefaults restores values a file set to empty.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = defaults.Ollama.URL
	}
	if cfg.Ollama.Timeout == 0 {
		cfg.Ollama.Timeout = defaults.Ollama.Timeout
	}
	if cfg.Ollama.PullTimeout == 0 {
		cfg.Ollama.PullTimeout = defaults.Ollama.PullTimeout
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Encoding == "" {
		cfg.Log.Encoding = defaults.Log.Encoding
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = defaults.Server.RateBurst
	}

	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path, creating the directory if needed.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# ollama-chat configuration file")
	fmt.Fprintln(&buf, "# Environment variables named OLLAMA_CHAT_* override these values.")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	// The fsnotify watcher in serve must never see a half-written file.
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns all problems at once as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Ollama
	if u, err := url.Parse(c.Ollama.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("invalid URL '%s', expected e.g. http://localhost:11434", c.Ollama.URL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("unsupported scheme '%s', must be http or https", u.Scheme),
		})
	}
	if c.Ollama.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "ollama.timeout", Message: "must not be negative"})
	}
	if c.Ollama.PullTimeout < 0 {
		errs = append(errs, ValidationError{Field: "ollama.pull_timeout", Message: "must not be negative"})
	}

	// Generation
	if math.IsNaN(c.Generation.Temperature) || c.Generation.Temperature < model.MinTemperature || c.Generation.Temperature > model.MaxTemperature {
		errs = append(errs, ValidationError{
			Field: "generation.temperature",
			Message: fmt.Sprintf("%.2f outside [%.1f, %.1f]",
				c.Generation.Temperature, model.MinTemperature, model.MaxTemperature),
		})
	}
	if c.Generation.MaxTokens < model.MinMaxTokens || c.Generation.MaxTokens > model.MaxMaxTokens {
		errs = append(errs, ValidationError{
			Field: "generation.max_tokens",
			Message: fmt.Sprintf("%d outside [%d, %d]",
				c.Generation.MaxTokens, model.MinMaxTokens, model.MaxMaxTokens),
		})
	}

	// Log
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}
	if enc := strings.ToLower(c.Log.Encoding); enc != "" && enc != "console" && enc != "json" {
		errs = append(errs, ValidationError{
			Field:   "log.encoding",
			Message: fmt.Sprintf("invalid encoding '%s', must be console or json", c.Log.Encoding),
		})
	}

	// Server
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "must not be negative"})
	}
	if c.Server.RateBurst < 1 {
		errs = append(errs, ValidationError{Field: "server.rate_burst", Message: "must be at least 1"})
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "server.allowed_origins",
				Message: fmt.Sprintf("invalid origin '%s'", origin),
			})
		}
	}

	// Telemetry
	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		errs = append(errs, ValidationError{Field: "telemetry.endpoint", Message: "required when telemetry is enabled"})
	}

	// UI
	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported variables:
//   - OLLAMA_CHAT_URL: overrides ollama.url
//   - OLLAMA_CHAT_MODEL: overrides ollama.default_model
//   - OLLAMA_CHAT_TEMPERATURE: overrides generation.temperature
//   - OLLAMA_CHAT_MAX_TOKENS: overrides generation.max_tokens
//   - OLLAMA_CHAT_SYSTEM_PROMPT: overrides generation.system_prompt
//   - OLLAMA_CHAT_LOG_LEVEL: overrides log.level
//   - OLLAMA_CHAT_ADDR: overrides server.addr
//   - OLLAMA_CHAT_OTLP_ENDPOINT: sets telemetry.endpoint and enables telemetry
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("OLLAMA_CHAT_URL"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("OLLAMA_CHAT_MODEL"); v != "" {
		c.Ollama.DefaultModel = v
	}
	if v := os.Getenv("OLLAMA_CHAT_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("OLLAMA_CHAT_TEMPERATURE: %w", err)
		}
		c.Generation.Temperature = f
	}
	if v := os.Getenv("OLLAMA_CHAT_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OLLAMA_CHAT_MAX_TOKENS: %w", err)
		}
		c.Generation.MaxTokens = n
	}
	if v := os.Getenv("OLLAMA_CHAT_SYSTEM_PROMPT"); v != "" {
		c.Generation.SystemPrompt = v
	}
	if v := os.Getenv("OLLAMA_CHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("OLLAMA_CHAT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("OLLAMA_CHAT_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	return nil
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// Settings converts [generation] into the value turns are submitted with.
func (c *Config) Settings() model.Settings {
	return model.Settings{
		Temperature:  c.Generation.Temperature,
		MaxTokens:    c.Generation.MaxTokens,
		SystemPrompt: c.Generation.SystemPrompt,
		Streaming:    c.Generation.Streaming,
	}
}

// SetSettings stores s back into [generation].
func (c *Config) SetSettings(s model.Settings) {
	c.Generation = GenerationConfig{
		Temperature:  s.Temperature,
		MaxTokens:    s.MaxTokens,
		SystemPrompt: s.SystemPrompt,
		Streaming:    s.Streaming,
	}
}

// Logging converts [log] into a logger config.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:    c.Log.Level,
		Encoding: c.Log.Encoding,
		File:     c.Log.File,
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ollama.url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

var durationType = reflect.TypeOf(Duration(0))

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		if field.Type() == durationType {
			d, err := time.ParseDuration(strVal)
			if err != nil {
				return fmt.Errorf("invalid duration value: %v", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"ollama.url",
		"ollama.timeout",
		"ollama.pull_timeout",
		"ollama.default_model",
		"generation.temperature",
		"generation.max_tokens",
		"generation.system_prompt",
		"generation.streaming",
		"log.level",
		"log.file",
		"log.encoding",
		"server.addr",
		"server.allowed_origins",
		"server.rate_limit",
		"server.rate_burst",
		"telemetry.enabled",
		"telemetry.endpoint",
		"telemetry.insecure",
		"ui.theme",
		"ui.export_dir",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Server.AllowedOrigins != nil {
		clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	}
	return &clone
}

// String returns the config as indented JSON for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.jotdown/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model overrides, sampling temperature
//   - Storage: profile directory, autosave debounce (see storage.go)
//   - Weekly: automatic weekly summary schedule (see weekly.go)
//   - Tracing: OTLP trace export (see observability.go)
//
// GEMINI_API_KEY is deliberately not part of this struct. It is read from
// the environment at wiring time and handed straight to the generation
// client, so Config carries no secrets and is safe to log as-is.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates a model override is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMode indicates a mode_models key is not a known capture mode.
	ErrInvalidMode = errors.New("invalid capture mode")

	// ErrInvalidProfileDir indicates the profile directory is invalid.
	ErrInvalidProfileDir = errors.New("invalid profile directory")

	// ErrInvalidAutosaveDelay indicates the autosave debounce is out of range.
	ErrInvalidAutosaveDelay = errors.New("invalid autosave delay")

	// ErrInvalidWeeklyDay indicates the weekly summary day is not a weekday name.
	ErrInvalidWeeklyDay = errors.New("invalid weekly day")

	// ErrInvalidWeeklyHour indicates the weekly summary hour is out of range.
	ErrInvalidWeeklyHour = errors.New("invalid weekly hour")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
)

// knownModes are the capture modes a model override may target. The first
// four are selectable on a session; "conversation" drives the Q&A side
// channel over a note.
var knownModes = []string{"structured", "transcribe", "actions", "weekly", "conversation"}

// Config stores application configuration. It carries no secrets.
type Config struct {
	// AI provider and model configuration. ModelName overrides the
	// built-in model for every mode when set; ModeModels overrides
	// individual modes and beats ModelName. Temperature overrides every
	// mode's sampling temperature when positive.
	Provider    string            `mapstructure:"provider" json:"provider"`
	ModelName   string            `mapstructure:"model_name" json:"model_name"`
	ModeModels  map[string]string `mapstructure:"mode_models" json:"mode_models"`
	Temperature float32           `mapstructure:"temperature" json:"temperature"`

	// Storage configuration (see storage.go for documentation)
	ProfileDir      string `mapstructure:"profile_dir" json:"profile_dir"`
	AutosaveDelayMS int    `mapstructure:"autosave_delay_ms" json:"autosave_delay_ms"`

	// Weekly summary schedule (see weekly.go for type definition)
	Weekly WeeklyConfig `mapstructure:"weekly" json:"weekly"`

	// Trace export (see observability.go for type definition)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.jotdown/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".jotdown")

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// The profile directory defaults to the config directory itself.
	if cfg.ProfileDir == "" {
		cfg.ProfileDir = configDir
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults. An empty model_name keeps each mode's built-in model;
	// a zero temperature keeps each mode's built-in temperature.
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "")
	viper.SetDefault("temperature", 0.0)

	// Storage defaults. An empty profile_dir resolves to ~/.jotdown.
	viper.SetDefault("profile_dir", "")
	viper.SetDefault("autosave_delay_ms", 2000)

	// Weekly summary defaults: Friday 17:00 local time.
	viper.SetDefault("weekly.enabled", true)
	viper.SetDefault("weekly.day", "friday")
	viper.SetDefault("weekly.hour", 17)

	// Tracing defaults: opt-in, local OTLP collector.
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "jotdown")
}

// bindEnvVariables binds runtime override variables explicitly.
//
// NOTE: GEMINI_API_KEY is read directly at wiring time and passed to the
// generation client, not via Viper. A missing key surfaces on the first
// generation call, never at startup.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Model override
	mustBind("model_name", "JOTDOWN_MODEL_NAME")

	// Data location override (tests and multi-profile setups)
	mustBind("profile_dir", "JOTDOWN_PROFILE_DIR")

	// Weekly summary toggle
	mustBind("weekly.enabled", "JOTDOWN_WEEKLY")

	// Trace export
	mustBind("tracing.enabled", "JOTDOWN_TRACING")
	mustBind("tracing.endpoint", "JOTDOWN_OTLP_ENDPOINT")
}

// ModelOverrides resolves the effective per-mode model table for the
// generation client, provider-qualified for genkit. ModelName seeds every
// mode; mode_models entries then override individual modes. Nil when
// nothing is configured, which keeps the built-in models.
func (c *Config) ModelOverrides() map[string]string {
	if c.ModelName == "" && len(c.ModeModels) == 0 {
		return nil
	}

	out := make(map[string]string, len(knownModes))
	if c.ModelName != "" {
		for _, mode := range knownModes {
			out[mode] = c.qualify(c.ModelName)
		}
	}
	for mode, name := range c.ModeModels {
		if name == "" {
			continue
		}
		out[mode] = c.qualify(name)
	}
	return out
}

// FullModelName returns the provider-qualified default model for genkit,
// e.g. "googleai/gemini-2.5-flash". Empty when no override is configured
// and each mode keeps its built-in model.
func (c *Config) FullModelName() string {
	if c.ModelName == "" {
		return ""
	}
	return c.qualify(c.ModelName)
}

// qualify prefixes a bare model name with the genkit provider namespace.
// Names that already contain a "/" are returned as-is.
func (c *Config) qualify(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return ProviderGoogleAI + "/" + name
}

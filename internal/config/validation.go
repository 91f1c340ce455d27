package config

import (
	"fmt"
	"slices"
	"strings"
)

// Autosave debounce bounds in milliseconds. Below the floor every
// keystroke becomes a disk write; above the ceiling a crash can lose ten
// minutes of work.
const (
	MinAutosaveDelayMS = 100
	MaxAutosaveDelayMS = 600000
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
//
// A missing GEMINI_API_KEY is deliberately not a validation error: the
// application runs fully offline except for generation, and the key check
// happens on the first generation call instead.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider validation. "googleai" is accepted as an alias since it
	// is the genkit plugin namespace users see in model names.
	if c.Provider != ProviderGemini && c.Provider != ProviderGoogleAI {
		return fmt.Errorf("%w: %q is not supported, use %q", ErrInvalidProvider, c.Provider, ProviderGemini)
	}

	// 2. Model configuration validation. An empty model_name keeps the
	// built-in per-mode models, so only overrides are checked.
	for mode, name := range c.ModeModels {
		if !slices.Contains(knownModes, strings.ToLower(mode)) {
			return fmt.Errorf("%w: mode_models key %q, valid modes: %v", ErrInvalidMode, mode, knownModes)
		}
		if name == "" {
			return fmt.Errorf("%w: mode_models.%s cannot be empty", ErrInvalidModelName, mode)
		}
	}

	// Temperature range: 0.0 (keep per-mode defaults) to 2.0 (maximum creativity)
	// Reference: Gemini API documentation
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// 3. Storage validation
	if c.ProfileDir == "" {
		return fmt.Errorf("%w: profile_dir cannot be empty", ErrInvalidProfileDir)
	}
	if c.AutosaveDelayMS < MinAutosaveDelayMS || c.AutosaveDelayMS > MaxAutosaveDelayMS {
		return fmt.Errorf("%w: must be between %d and %d ms, got %d",
			ErrInvalidAutosaveDelay, MinAutosaveDelayMS, MaxAutosaveDelayMS, c.AutosaveDelayMS)
	}

	// 4. Weekly schedule validation
	if _, ok := weekdayNames[strings.ToLower(c.Weekly.Day)]; !ok {
		return fmt.Errorf("%w: %q is not a weekday name", ErrInvalidWeeklyDay, c.Weekly.Day)
	}
	if c.Weekly.Hour < 0 || c.Weekly.Hour > 23 {
		return fmt.Errorf("%w: must be between 0 and 23, got %d", ErrInvalidWeeklyHour, c.Weekly.Hour)
	}

	return nil
}

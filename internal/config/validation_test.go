package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Provider:        ProviderGemini,
		ProfileDir:      "/tmp/jotdown-test",
		AutosaveDelayMS: 2000,
		Weekly:          WeeklyConfig{Enabled: true, Day: "friday", Hour: 17},
		Tracing:         TracingConfig{Endpoint: "localhost:4318", Environment: "dev", ServiceName: "jotdown"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:   "googleai provider alias is accepted",
			mutate: func(c *Config) { c.Provider = ProviderGoogleAI },
		},
		{
			name:   "model overrides with known modes are valid",
			mutate: func(c *Config) { c.ModeModels = map[string]string{"weekly": "gemini-2.5-pro"} },
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "openai" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "unknown mode key",
			mutate:  func(c *Config) { c.ModeModels = map[string]string{"brainstorm": "gemini-2.5-pro"} },
			wantErr: ErrInvalidMode,
		},
		{
			name:    "empty override model",
			mutate:  func(c *Config) { c.ModeModels = map[string]string{"weekly": ""} },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "temperature below range",
			mutate:  func(c *Config) { c.Temperature = -0.1 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "temperature above range",
			mutate:  func(c *Config) { c.Temperature = 2.1 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "empty profile dir",
			mutate:  func(c *Config) { c.ProfileDir = "" },
			wantErr: ErrInvalidProfileDir,
		},
		{
			name:    "autosave delay too small",
			mutate:  func(c *Config) { c.AutosaveDelayMS = 50 },
			wantErr: ErrInvalidAutosaveDelay,
		},
		{
			name:    "autosave delay too large",
			mutate:  func(c *Config) { c.AutosaveDelayMS = MaxAutosaveDelayMS + 1 },
			wantErr: ErrInvalidAutosaveDelay,
		},
		{
			name:    "unknown weekly day",
			mutate:  func(c *Config) { c.Weekly.Day = "caturday" },
			wantErr: ErrInvalidWeeklyDay,
		},
		{
			name:    "weekly hour negative",
			mutate:  func(c *Config) { c.Weekly.Hour = -1 },
			wantErr: ErrInvalidWeeklyHour,
		},
		{
			name:    "weekly hour past midnight",
			mutate:  func(c *Config) { c.Weekly.Hour = 24 },
			wantErr: ErrInvalidWeeklyHour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}

func TestWeekday(t *testing.T) {
	tests := []struct {
		day  string
		want time.Weekday
	}{
		{"friday", time.Friday},
		{"MONDAY", time.Monday},
		{"Sunday", time.Sunday},
		{"not-a-day", time.Friday}, // unvalidated fallback
	}
	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			w := WeeklyConfig{Day: tt.day}
			if got := w.Weekday(); got != tt.want {
				t.Errorf("Weekday() = %v, want %v", got, tt.want)
			}
		})
	}
}

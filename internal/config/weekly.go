package config

import (
	"strings"
	"time"
)

// WeeklyConfig schedules the automatic weekly summary.
type WeeklyConfig struct {
	// Enabled toggles the background scheduler; manual runs always work.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Day is the weekday name the summary runs on (default: friday)
	Day string `mapstructure:"day" json:"day"`
	// Hour is the local hour of day, 0-23, the summary runs at (default: 17)
	Hour int `mapstructure:"hour" json:"hour"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Weekday returns Day as a time.Weekday. Validate guarantees the name is
// known; an unvalidated config falls back to Friday.
func (w WeeklyConfig) Weekday() time.Weekday {
	if day, ok := weekdayNames[strings.ToLower(w.Day)]; ok {
		return day
	}
	return time.Friday
}

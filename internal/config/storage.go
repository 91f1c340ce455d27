package config

import "time"

// The profile directory holds everything the application persists: the
// SQLite database, the instance lock and the config file itself. It
// defaults to ~/.jotdown and can be moved with profile_dir or
// JOTDOWN_PROFILE_DIR, which is how tests and secondary profiles get an
// isolated data root.

// AutosaveDelay returns the autosave debounce as a duration.
func (c *Config) AutosaveDelay() time.Duration {
	return time.Duration(c.AutosaveDelayMS) * time.Millisecond
}

package config

type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Bot        BotConfig        `json:"bot"`
	Logging    LoggingConfig    `json:"logging"`
	Storage    StorageConfig    `json:"storage"`
	Dispatcher DispatcherConfig `json:"dispatcher"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// RatePerSec caps outbound sends. 0 keeps the adapter default.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type BotConfig struct {
	// Greeting is the reply to /start.
	Greeting string `json:"greeting,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./remindbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// DispatcherConfig controls the once-per-minute delivery trigger.
type DispatcherConfig struct {
	Enabled bool `json:"enabled"`
	// Timezone for the trigger and for parsing reminder times.
	// Empty means the process-local zone.
	Timezone string `json:"timezone,omitempty"`
}

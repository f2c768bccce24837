package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process logger. Init replaces it; child loggers taken
// before Init keep writing to the previous one.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Level is a log level name as it appears in config files and flags
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var levels = map[Level]zerolog.Level{
	DebugLevel: zerolog.DebugLevel,
	InfoLevel:  zerolog.InfoLevel,
	WarnLevel:  zerolog.WarnLevel,
	ErrorLevel: zerolog.ErrorLevel,
}

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer // defaults to stdout
}

// ParseLevel maps a level name onto a zerolog level. Unknown names map to
// info.
func ParseLevel(l Level) zerolog.Level {
	if lvl, ok := levels[l]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// Init sets the global level and replaces Logger. Call it before creating
// the registry so every bot logger inherits the output.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSONOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	Logger = zerolog.New(out).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagged with component
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithBotID returns the logger a bot mirrors its diagnostic lines to
func WithBotID(botID string) zerolog.Logger {
	return Logger.With().Str("component", "bot").Str("bot_id", botID).Logger()
}

// WithServerID returns a child logger tagged with server_id
func WithServerID(serverID string) zerolog.Logger {
	return Logger.With().Str("server_id", serverID).Logger()
}

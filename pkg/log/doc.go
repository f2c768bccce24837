/*
Package log provides structured logging for herald using zerolog.

The log package wraps the zerolog library to provide process-wide structured
logging with component-specific child loggers and configurable log levels.
It is the process log; the
per-bot diagnostic log that the API exposes lives in pkg/botlog and mirrors
every line into this logger.

# Log Levels

  - Debug: detailed debugging information
  - Info: default production level
  - Warn: unexpected conditions that do not fail an operation
  - Error: failed operations (session creation, session update)

# Usage

Initializing the Logger:

	import "github.com/cuemby/herald/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:  log.DebugLevel,
		Output: os.Stdout,
	})

Structured Logging:

	log.Logger.Info().
		Str("bot_id", bot.ID).
		Str("server_id", bot.ServerID).
		Msg("Bot created")

Component Loggers:

	apiLog := log.WithComponent("api")
	apiLog.Info().Str("addr", addr).Msg("HTTP API listening")

	botLog := log.WithBotID(bot.ID)
	botLog.Error().Err(err).Msg("Failed to create session")

# Integration Points

  - pkg/botlog: mirrors per-bot diagnostic lines with a bot_id field
  - pkg/manager: registry operations and pool activity
  - pkg/api: request handling and server lifecycle
  - cmd/herald: initialised from config and flags before anything runs
*/
package log

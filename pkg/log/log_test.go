package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(DebugLevel))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(WarnLevel))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(ErrorLevel))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestInitJSON(t *testing.T) {
	prev, prevLevel := Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	botLog := WithBotID("bot-1")
	botLog.Info().Msg("dropped")
	botLog.Warn().Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "bot", line["component"])
	assert.Equal(t, "bot-1", line["bot_id"])
}

func TestInitConsole(t *testing.T) {
	prev, prevLevel := Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	serverLog := WithServerID("server-1")
	serverLog.Info().Msg("Server created")
	assert.Contains(t, buf.String(), "Server created")
	assert.Contains(t, buf.String(), "server-1")
}

package tlog_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/janusauth/janus/internal/config"
	"github.com/janusauth/janus/internal/utils/tlog"

	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"
)

func TestNewLogger(t *testing.T) {
	cfg := config.LogConfig{
		Level: "debug",
		Json:  true,
		Streams: config.LogStreams{
			HTTP:  config.LogStreamConfig{Enabled: true, Level: "info"},
			App:   config.LogStreamConfig{Enabled: true, Level: ""},
			Audit: config.LogStreamConfig{Enabled: false, Level: ""},
		},
	}

	logger := tlog.NewLogger(cfg)

	assert.Assert(t, logger != nil)
	assert.Assert(t, logger.HTTP.GetLevel() == zerolog.InfoLevel)
	assert.Assert(t, logger.App.GetLevel() == zerolog.DebugLevel)
	assert.Assert(t, logger.Audit.GetLevel() == zerolog.Disabled)
}

func TestNewSimpleLogger(t *testing.T) {
	logger := tlog.NewSimpleLogger()

	assert.Assert(t, logger != nil)
	assert.Assert(t, logger.HTTP.GetLevel() == zerolog.InfoLevel)
	assert.Assert(t, logger.App.GetLevel() == zerolog.InfoLevel)
	assert.Assert(t, logger.Audit.GetLevel() == zerolog.Disabled)
}

func TestLoggerInit(t *testing.T) {
	logger := tlog.NewSimpleLogger()
	logger.Init()

	assert.Assert(t, tlog.App.GetLevel() != zerolog.Disabled)
	assert.Assert(t, tlog.Audit.GetLevel() == zerolog.Disabled)
}

func TestLogStreamField(t *testing.T) {
	var buf bytes.Buffer

	cfg := config.LogConfig{
		Level: "info",
		Json:  true,
		Streams: config.LogStreams{
			HTTP:  config.LogStreamConfig{Enabled: true},
			App:   config.LogStreamConfig{Enabled: true},
			Audit: config.LogStreamConfig{Enabled: true},
		},
	}

	logger := tlog.NewLogger(cfg)

	// Override output for the audit logger to capture output
	logger.Audit = logger.Audit.Output(&buf)

	logger.Audit.Info().Msg("test message")

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	assert.NilError(t, err)

	assert.Equal(t, "audit", logEntry["log_stream"])
	assert.Equal(t, "test message", logEntry["message"])
}

package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/opsweld/rootreset/internal/config"
)

func TestInitialize(t *testing.T) {
	t.Run("console format is human readable", func(t *testing.T) {
		ResetForTest()
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "rootreset-test",
		}, zapcore.AddSync(&buf))

		GetLogger().Info("browser session started")

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "browser session started")
		assert.Contains(t, output, "rootreset-test")
	})

	t.Run("json format emits structured entries", func(t *testing.T) {
		ResetForTest()
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "rootreset-test",
		}, zapcore.AddSync(&buf))

		GetLogger().Warn("reset email not found yet", zap.String("account_id", "123456789012"))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output should be valid JSON")
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "reset email not found yet", entry["msg"])
		assert.Equal(t, "123456789012", entry["account_id"])
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		ResetForTest()
		var buf bytes.Buffer

		Initialize(config.LoggerConfig{Level: "chatty", Format: "json"}, zapcore.AddSync(&buf))

		GetLogger().Debug("suppressed")
		GetLogger().Info("visible")

		output := buf.String()
		assert.NotContains(t, output, "suppressed")
		assert.Contains(t, output, "visible")
	})

	t.Run("second initialization is a no-op", func(t *testing.T) {
		ResetForTest()
		var first, second bytes.Buffer

		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&first))
		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&second))

		GetLogger().Info("hello")
		assert.Contains(t, first.String(), "hello")
		assert.Empty(t, second.String())
	})

	t.Run("writes JSON to the configured log file", func(t *testing.T) {
		ResetForTest()
		logFile := filepath.Join(t.TempDir(), "rootreset.log")

		Initialize(config.LoggerConfig{
			Level:   "debug",
			Format:  "console",
			LogFile: logFile,
			MaxSize: 1,
		}, zapcore.AddSync(&bytes.Buffer{}))

		GetLogger().Info("persisted entry")
		Sync()

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &entry), "file output is always JSON")
		assert.Equal(t, "persisted entry", entry["msg"])
	})
}

func TestGetLoggerBeforeInitialization(t *testing.T) {
	ResetForTest()
	logger := GetLogger()
	require.NotNil(t, logger, "fallback logger must always be usable")
}

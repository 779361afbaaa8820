package logger

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	SetLevel("warn")
	defer SetLevel("info")

	Infof("ticker %s", "BTCUSD")
	Warnf("fetch failed for %s", "BTCUSD")

	out := buf.String()
	assert.NotContains(t, out, "ticker BTCUSD")
	assert.Contains(t, out, "fetch failed for BTCUSD")
}

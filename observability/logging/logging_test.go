package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRewritesKeys(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger, closer := Setup(Options{Service: "credit-engine", Env: "test", Level: "debug", Output: &buf})
	defer closer.Close()

	logger.Debug("collateral deposited", "amount", "1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "collateral deposited", line["message"])
	require.Equal(t, "credit-engine", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestSetupRespectsLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger, _ := Setup(Options{Service: "credit-engine", Level: "warn", Output: &buf})
	logger.Info("dropped")
	require.Zero(t, buf.Len())
	logger.Warn("kept")
	require.NotZero(t, buf.Len())
}

func TestSetupWritesRotatingFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "engine.log")
	logger, closer := Setup(Options{Service: "credit-engine", File: path})
	logger.Info("hello")
	require.NoError(t, closer.Close())
	require.FileExists(t, path)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMaskHeaders(t *testing.T) {
	require.Equal(t, RedactedValue, MaskValue("Bearer x"))
	require.Equal(t, " ", MaskValue(" "))

	attrs := MaskHeaders(map[string]string{"b": "secret", "a": ""})
	require.Len(t, attrs, 2)
	require.Equal(t, "a", attrs[0].Key)
	require.Equal(t, "", attrs[0].Value.String())
	require.Equal(t, RedactedValue, attrs[1].Value.String())
}

package logging

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewPrettyFormatDoesNotPanic(t *testing.T) {
	logger := New(Config{Level: LevelDebug, Format: FormatPretty})
	logger.Info().Msg("hello")
}

func TestNewJSONFormatEmitsServiceField(t *testing.T) {
	// New writes to os.Stdout, so point os.Stdout at a pipe while it runs.
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	logger := New(Config{Level: LevelInfo, Format: FormatJSON})
	os.Stdout = stdout

	logger.Info().Msg("hello")
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Contains(t, string(out), `"service":"timeline-server"`)
}

func TestLogPanicIncludesStackTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	LogPanic(logger, "boom", "worker panic recovered", map[string]any{"worker_id": 3})

	out := buf.String()
	require.Contains(t, out, "stack_trace")
	require.Contains(t, out, "worker panic recovered")
	require.Contains(t, out, "worker_id")
}

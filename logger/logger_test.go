package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		entries = append(entries, m)
	}

	return entries
}

func TestZerologLogger(t *testing.T) {
	t.Run("writes service, message and fields", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewZerologLogger(&buf, "hangtheman", zerolog.DebugLevel)

		l.Info("player guessed", Field{Key: "player", Value: 1}, Field{Key: "guess", Value: "a"})

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "hangtheman", entries[0]["service"])
		assert.Equal(t, "info", entries[0]["level"])
		assert.Equal(t, "player guessed", entries[0]["message"])
		assert.Equal(t, float64(1), entries[0]["player"])
		assert.Equal(t, "a", entries[0]["guess"])
		assert.Contains(t, entries[0], "time")
	})

	t.Run("filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewZerologLogger(&buf, "svc", zerolog.WarnLevel)

		l.Debug("debug")
		l.Info("info")
		l.Warn("warn")
		l.Error("error")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 2)
		assert.Equal(t, "warn", entries[0]["level"])
		assert.Equal(t, "error", entries[1]["level"])
	})

	t.Run("With adds fields without changing the parent", func(t *testing.T) {
		var buf bytes.Buffer
		parent := NewZerologLogger(&buf, "svc", zerolog.InfoLevel)
		child := parent.With(Field{Key: "round", Value: 3})

		child.Info("child")
		parent.Info("parent")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 2)
		assert.Equal(t, float64(3), entries[0]["round"])
		assert.NotContains(t, entries[1], "round")
	})

	t.Run("close without file is a no-op", func(t *testing.T) {
		l := NewZerologLogger(&bytes.Buffer{}, "svc", zerolog.InfoLevel)
		assert.NoError(t, l.Close())
		assert.NoError(t, NewNopLogger().Close())
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestNewZerologFileLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	l, err := NewZerologFileLogger("hangtheman", dir, zerolog.InfoLevel)
	require.NoError(t, err)
	l.Info("hello from file")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	name := filepath.Join(dir, "hangtheman_"+time.Now().Format(dateLayout)+".log")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from file")
}

func TestDailyFileWriter(t *testing.T) {
	t.Run("rotates when the date changes", func(t *testing.T) {
		dir := t.TempDir()
		w, err := NewDailyFileWriter("svc", dir)
		require.NoError(t, err)
		defer w.Close()

		day := time.Date(2024, 10, 1, 23, 59, 0, 0, time.UTC)
		w.now = func() time.Time { return day }

		_, err = w.Write([]byte("first\n"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "svc_2024-10-01.log"), w.CurrentLogFile())

		day = day.Add(2 * time.Minute)
		_, err = w.Write([]byte("second\n"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "svc_2024-10-02.log"), w.CurrentLogFile())

		first, err := os.ReadFile(filepath.Join(dir, "svc_2024-10-01.log"))
		require.NoError(t, err)
		assert.Equal(t, "first\n", string(first))
		second, err := os.ReadFile(filepath.Join(dir, "svc_2024-10-02.log"))
		require.NoError(t, err)
		assert.Equal(t, "second\n", string(second))
	})

	t.Run("write after close fails", func(t *testing.T) {
		w, err := NewDailyFileWriter("svc", t.TempDir())
		require.NoError(t, err)
		require.NoError(t, w.Close())

		_, err = w.Write([]byte("late"))
		assert.ErrorIs(t, err, ErrWriterClosed)
		assert.Empty(t, w.CurrentLogFile())
	})

	t.Run("missing directory fails", func(t *testing.T) {
		_, err := NewDailyFileWriter("svc", filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})
}

package scripting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer_Ring(t *testing.T) {
	t.Parallel()
	h := NewLogBuffer(3, slog.LevelDebug, nil)
	logger := slog.New(h)
	for i := 0; i < 5; i++ {
		logger.Info(fmt.Sprintf("msg %d", i))
	}

	var got []string
	for _, e := range h.Entries() {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"msg 2", "msg 3", "msg 4"}, got)
	require.Len(t, h.Recent(1), 1)
	assert.Equal(t, "msg 4", h.Recent(1)[0].Message)
	assert.Len(t, h.Recent(0), 3)

	h.Clear()
	assert.Empty(t, h.Entries())
	logger.Info("after clear")
	assert.Len(t, h.Entries(), 1)
}

func TestLogBuffer_Level(t *testing.T) {
	t.Parallel()
	h := NewLogBuffer(10, slog.LevelWarn, nil)
	logger := slog.New(h)
	logger.Info("dropped")
	logger.Warn("kept")
	require.Len(t, h.Entries(), 1)
	assert.Equal(t, "kept", h.Entries()[0].Message)
}

func TestLogBuffer_AttrsAndGroups(t *testing.T) {
	t.Parallel()
	h := NewLogBuffer(10, slog.LevelDebug, nil)
	logger := slog.New(h).With("list", "main").WithGroup("pass")
	logger.Warn("[Layout] child not produced", "index", 7)

	e := h.Entries()[0]
	assert.Equal(t, map[string]string{"list": "main", "pass.index": "7"}, e.Attrs)

	assert.Len(t, h.Search("NOT PRODUCED"), 1)
	assert.Len(t, h.Search("pass.index"), 1)
	assert.Empty(t, h.Search("recycled"))
}

func TestLogBuffer_Tee(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	tee := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	h := NewLogBuffer(10, slog.LevelWarn, tee)
	logger := slog.New(h).With("component", "prefetch")

	assert.True(t, h.Enabled(t.Context(), slog.LevelDebug), "the tee accepts debug")
	logger.Debug("slice", "built", 3)

	assert.Empty(t, h.Entries())
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "slice", rec["msg"])
	assert.Equal(t, "prefetch", rec["component"])
	assert.EqualValues(t, 3, rec["built"])
}

package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleHandler_WritesOneLinePerRecordWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewSimpleLog(&buf, slog.LevelInfo)

	r := slog.NewRecord(time.Now(), slog.LevelWarn, "compile failed", 0)
	r.AddAttrs(slog.String("file", "main.c"), slog.Int("code", 1))

	require.NoError(t, h.Handle(context.Background(), r))

	out := buf.String()
	assert.Contains(t, out, "compile failed")
	assert.Contains(t, out, `file="main.c"`)
	assert.Contains(t, out, "code=1")
}

func TestSimpleHandler_EnabledRespectsLevel(t *testing.T) {
	h := NewSimpleLog(&bytes.Buffer{}, slog.LevelWarn)
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestNew_SelectsHandlerByProgress(t *testing.T) {
	ci := New(ProgressCI, slog.HandlerOptions{})
	_, isSimple := ci.(*SimpleHandler)
	assert.True(t, isSimple)

	pretty := New(ProgressPretty, slog.HandlerOptions{})
	_, isSimple = pretty.(*SimpleHandler)
	assert.False(t, isSimple)
}

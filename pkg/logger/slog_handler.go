// Package logger wires the orchestrator's console output: a coloured
// handler for interactive runs and a plain one for CI/IDE-driven runs
// (e.g. the Visual Studio Makefile projects invoking the orchestrator via
// NMake, which pipes through a non-tty).
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dusted-go/logging/prettylog"
)

// Progress selects which handler New returns. "ci" is used when the
// orchestrator runs with --visual-studio-build (matches cmd.RootArgs.Progress in the teacher CLI,
// generalised from "plain"/"progress"/"tty" to this engine's two modes).
type Progress string

const (
	ProgressPretty Progress = "pretty"
	ProgressCI     Progress = "ci"
)

// New returns the slog.Handler appropriate for progress, coloured and
// level-prefixed for interactive use per spec.md §7 ("warnings are coloured
// and prefixed; errors are coloured and prefixed").
func New(progress Progress, logOpts slog.HandlerOptions) slog.Handler {
	if progress == ProgressCI {
		return NewSimpleLog(os.Stdout, logOpts.Level)
	}
	return NewPrettyLog(os.Stdout, logOpts)
}

func NewSimpleLog(out io.Writer, level slog.Leveler) slog.Handler {
	h := &SimpleHandler{out: out, mu: &sync.Mutex{}}
	h.opts.Level = level
	return h
}

func NewPrettyLog(out io.Writer, logOpts slog.HandlerOptions) slog.Handler {
	return prettylog.New(&logOpts, prettylog.WithDestinationWriter(out))
}

// SimpleHandler is a minimal slog.Handler for non-interactive output: one
// line per record, attrs appended as key="value" pairs.
type SimpleHandler struct {
	opts Options
	mu   *sync.Mutex
	out  io.Writer
}

type Options struct {
	Level slog.Leveler
}

func (h *SimpleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *SimpleHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *SimpleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SimpleHandler) Handle(ctx context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	buf = fmt.Appendf(buf, "%s [%s] %s ", r.Time.Format(time.RFC3339), r.Level, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, a)
		return true
	})
	buf = append(buf, '\n')
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func (h *SimpleHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	switch a.Value.Kind() {
	case slog.KindString:
		buf = fmt.Appendf(buf, "%s=%q ", a.Key, a.Value.String())
	case slog.KindTime:
		buf = fmt.Appendf(buf, "%s=%s ", a.Key, a.Value.Time().Format(time.RFC3339Nano))
	case slog.KindGroup:
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return buf
		}
		for _, ga := range attrs {
			buf = h.appendAttr(buf, ga)
		}
	default:
		buf = fmt.Appendf(buf, "%s=%s ", a.Key, a.Value)
	}
	return buf
}

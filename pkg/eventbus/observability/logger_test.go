package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf   *bytes.Buffer
	level slog.Level
	attrs []slog.Attr
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:   h.buf,
		level: h.level,
		attrs: make([]slog.Attr, len(h.attrs)+len(attrs)),
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds event_type and handler", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "*app.Message", "OnMessage")
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "*app.Message", record["event_type"])
		assert.Equal(t, "OnMessage", record["handler"])
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "x", "y"))
	})
}

func TestLogHelpers(t *testing.T) {
	testErr := errors.New("handler exploded")

	tests := []struct {
		name  string
		log   func(*slog.Logger)
		level string
		msg   string
		attrs map[string]any
	}{
		{
			name:  "registered",
			log:   func(l *slog.Logger) { LogRegistered(l, "*app.Screen", 3) },
			level: "DEBUG",
			msg:   "subscriber registered",
			attrs: map[string]any{"subscriber_type": "*app.Screen", "handlers": float64(3)},
		},
		{
			name:  "unregistered",
			log:   func(l *slog.Logger) { LogUnregistered(l, "*app.Screen", 3) },
			level: "DEBUG",
			msg:   "subscriber unregistered",
			attrs: map[string]any{"subscriber_type": "*app.Screen", "handlers": float64(3)},
		},
		{
			name:  "unknown subscriber",
			log:   func(l *slog.Logger) { LogUnknownSubscriber(l, "*app.Other") },
			level: "WARN",
			msg:   "subscriber to unregister was not registered before",
			attrs: map[string]any{"subscriber_type": "*app.Other"},
		},
		{
			name:  "no subscriber",
			log:   func(l *slog.Logger) { LogNoSubscriber(l, "*app.Orphan") },
			level: "INFO",
			msg:   "no subscribers registered for event",
			attrs: map[string]any{"event_type": "*app.Orphan"},
		},
		{
			name:  "handler failure",
			log:   func(l *slog.Logger) { LogHandlerFailure(l, "*app.Message", "OnMessage", testErr) },
			level: "ERROR",
			msg:   "handler failed",
			attrs: map[string]any{"event_type": "*app.Message", "handler": "OnMessage", "error": "handler exploded"},
		},
		{
			name:  "failure event failure",
			log:   func(l *slog.Logger) { LogFailureEventFailure(l, "OnFailure", "*app.Message", testErr) },
			level: "ERROR",
			msg:   "failure event handler failed",
			attrs: map[string]any{"handler": "OnFailure", "causing_event_type": "*app.Message", "error": "handler exploded"},
		},
		{
			name:  "queue dispatch",
			log:   func(l *slog.Logger) { LogQueueDispatchError(l, testErr) },
			level: "ERROR",
			msg:   "main loop dispatch failed",
			attrs: map[string]any{"error": "handler exploded"},
		},
		{
			name:  "dead letter",
			log:   func(l *slog.Logger) { LogDeadLetter(l, "f-1", "*app.Message", "OnMessage") },
			level: "DEBUG",
			msg:   "dead letter recorded",
			attrs: map[string]any{"id": "f-1", "event_type": "*app.Message", "handler": "OnMessage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler()
			tt.log(slog.New(h))

			record := h.getLastRecord()
			require.NotNil(t, record)
			assert.Equal(t, tt.level, record["level"])
			assert.Equal(t, tt.msg, record["msg"])
			for k, v := range tt.attrs {
				assert.Equal(t, v, record[k], k)
			}
		})

		t.Run(tt.name+" nil logger does not panic", func(t *testing.T) {
			assert.NotPanics(t, func() { tt.log(nil) })
		})
	}
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), 5*time.Millisecond)
}

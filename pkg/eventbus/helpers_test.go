package eventbus

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/eventbus/pkg/eventbus/discovery"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
	"github.com/randalmurphal/eventbus/pkg/eventbus/poster"
)

type message struct{ Text string }

type orphan struct{}

type Base struct{ ID int }

type Named interface{ Name() string }

type child struct {
	Base
	name string
}

func (c *child) Name() string { return c.name }

// recorder collects entries from several subscribers in delivery order.
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

type lowSub struct{ rec *recorder }

func (s *lowSub) OnMessage(m *message) { s.rec.add("low:" + m.Text) }

type highSub struct{ rec *recorder }

func (s *highSub) OnMessage(m *message) { s.rec.add("high:" + m.Text) }

func (*highSub) SubscriberConfig() discovery.Config {
	return discovery.Config{"OnMessage": {Priority: 10}}
}

// tracker records deliveries and whether they ran on the main loop. Types
// embedding it pick the thread mode.
type tracker struct {
	loop poster.MainLoop

	mu     sync.Mutex
	texts  []string
	onLoop []bool
}

func (p *tracker) OnMessage(ctx context.Context, m *message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, m.Text)
	p.onLoop = append(p.onLoop, p.loop != nil && p.loop.IsCurrent(ctx))
}

func (p *tracker) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

func (p *tracker) ranOnLoop() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.onLoop...)
}

type postingTracker struct{ tracker }

type mainTracker struct{ tracker }

func (*mainTracker) SubscriberConfig() discovery.Config {
	return discovery.Config{"OnMessage": {Mode: discovery.Main}}
}

type mainOrderedTracker struct{ tracker }

func (*mainOrderedTracker) SubscriberConfig() discovery.Config {
	return discovery.Config{"OnMessage": {Mode: discovery.MainOrdered}}
}

type backgroundTracker struct{ tracker }

func (*backgroundTracker) SubscriberConfig() discovery.Config {
	return discovery.Config{"OnMessage": {Mode: discovery.Background}}
}

type asyncTracker struct{ tracker }

func (*asyncTracker) SubscriberConfig() discovery.Config {
	return discovery.Config{"OnMessage": {Mode: discovery.Async}}
}

// stepLoop runs scheduled tasks only when runAll is called.
type stepLoop struct {
	mu    sync.Mutex
	tasks []func(ctx context.Context)
	err   error
}

type stepKey struct{}

func (l *stepLoop) IsCurrent(ctx context.Context) bool {
	return ctx.Value(stepKey{}) == l
}

func (l *stepLoop) Schedule(fn func(ctx context.Context)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.tasks = append(l.tasks, fn)
	return nil
}

// context returns a context for which IsCurrent reports true.
func (l *stepLoop) context() context.Context {
	return context.WithValue(context.Background(), stepKey{}, l)
}

func (l *stepLoop) runAll() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.tasks[0]
		l.tasks = l.tasks[1:]
		l.mu.Unlock()
		fn(l.context())
		n++
	}
}

// countingMetrics is a MetricsRecorder keeping plain counters.
type countingMetrics struct {
	mu            sync.Mutex
	posts         map[string]int
	deliveries    map[string]int
	failures      int
	unmatched     map[string]int
	subscriptions map[string]int
}

var _ observability.MetricsRecorder = (*countingMetrics)(nil)

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		posts:         make(map[string]int),
		deliveries:    make(map[string]int),
		unmatched:     make(map[string]int),
		subscriptions: make(map[string]int),
	}
}

func (m *countingMetrics) RecordPost(_ context.Context, eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[eventType]++
}

func (m *countingMetrics) RecordDelivery(_ context.Context, eventType, mode string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[eventType+"/"+mode]++
	if err != nil {
		m.failures++
	}
}

func (m *countingMetrics) RecordNoSubscriber(_ context.Context, eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmatched[eventType]++
}

func (m *countingMetrics) RecordSubscriptions(_ context.Context, subscriberType string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[subscriberType] += delta
}

func (m *countingMetrics) count(counter map[string]int, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return counter[key]
}

// recordingSpans notes the spans a bus starts.
type recordingSpans struct {
	observability.NoopSpanManager

	mu    sync.Mutex
	names []string
}

func (r *recordingSpans) StartPostSpan(ctx context.Context, eventType string) (context.Context, trace.Span) {
	r.add("post " + eventType)
	return r.NoopSpanManager.StartPostSpan(ctx, eventType)
}

func (r *recordingSpans) StartDeliverySpan(ctx context.Context, eventType, handler, mode string) (context.Context, trace.Span) {
	r.add("deliver " + handler + " " + mode)
	return r.NoopSpanManager.StartDeliverySpan(ctx, eventType, handler, mode)
}

func (r *recordingSpans) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func (r *recordingSpans) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func countLogs(buf *syncBuffer, msg string) int {
	return strings.Count(buf.String(), `"msg":"`+msg+`"`)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestBus creates a bus with a discarded logger and resets the type
// caches after the test.
func newTestBus(t *testing.T, opts ...Option) *Bus {
	t.Helper()
	t.Cleanup(ClearCaches)
	b := New(append([]Option{WithLogger(discardLogger())}, opts...)...)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

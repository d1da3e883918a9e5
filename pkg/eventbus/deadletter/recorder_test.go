package deadletter_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventbus/pkg/eventbus"
	"github.com/randalmurphal/eventbus/pkg/eventbus/deadletter"
)

type order struct{ ID int }

type failingHandler struct{}

func (*failingHandler) OnOrder(o *order) error { return errors.New("payment declined") }

type panickingHandler struct{}

func (*panickingHandler) OnOrder(o *order) { panic("nil cart") }

func newBus(t *testing.T) *eventbus.Bus {
	t.Helper()
	t.Cleanup(eventbus.ClearCaches)
	b := eventbus.New(eventbus.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRecorder_RecordsHandlerError(t *testing.T) {
	b := newBus(t)
	store := deadletter.NewMemoryStore()
	rec := deadletter.NewRecorder(store, nil)
	require.NoError(t, b.Register(rec))
	require.NoError(t, b.Register(&failingHandler{}))

	require.NoError(t, b.Post(context.Background(), &order{ID: 1}))

	records, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	got := records[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "*deadletter_test.order", got.EventType)
	assert.Equal(t, "*deadletter_test.failingHandler", got.SubscriberType)
	assert.Equal(t, "OnOrder", got.Handler)
	assert.Equal(t, "payment declined", got.Error)
	assert.False(t, got.Panicked)
	assert.Equal(t, time.UTC, got.Time.Location())
	assert.Same(t, deadletter.Store(store), rec.Store())
}

func TestRecorder_RecordsPanic(t *testing.T) {
	b := newBus(t)
	store, err := deadletter.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, b.Register(deadletter.NewRecorder(store, nil)))
	require.NoError(t, b.Register(&panickingHandler{}))

	require.NoError(t, b.Post(context.Background(), &order{ID: 2}))

	records, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Panicked)
	assert.Contains(t, records[0].Error, "nil cart")
}

func TestRecorder_ClosedStoreDoesNotRecurse(t *testing.T) {
	b := newBus(t)
	store := deadletter.NewMemoryStore()
	require.NoError(t, store.Close())
	require.NoError(t, b.Register(deadletter.NewRecorder(store, nil)))
	require.NoError(t, b.Register(&failingHandler{}))

	assert.NoError(t, b.Post(context.Background(), &order{ID: 3}))
}

func TestRecorder_OnFailureReturnsStoreError(t *testing.T) {
	store := deadletter.NewMemoryStore()
	require.NoError(t, store.Close())
	rec := deadletter.NewRecorder(store, nil)

	err := rec.OnFailure(context.Background(), &eventbus.FailureEvent{ID: "f-1"})
	assert.ErrorIs(t, err, deadletter.ErrStoreClosed)
}

func TestFromFailure(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600))
	cause := errors.New("boom")
	fe := &eventbus.FailureEvent{
		ID:                "f-9",
		Err:               &eventbus.HandlerInvocationError{Handler: "OnOrder", Err: &eventbus.PanicError{Value: cause}},
		CausingEvent:      order{},
		CausingSubscriber: &failingHandler{},
		Time:              at,
	}

	rec := deadletter.FromFailure(fe)
	assert.Equal(t, "f-9", rec.ID)
	assert.Equal(t, "deadletter_test.order", rec.EventType)
	assert.Equal(t, "*deadletter_test.failingHandler", rec.SubscriberType)
	assert.Equal(t, "OnOrder", rec.Handler)
	assert.True(t, rec.Panicked)
	assert.True(t, rec.Time.Equal(at))
	assert.Equal(t, time.UTC, rec.Time.Location())

	empty := deadletter.FromFailure(&eventbus.FailureEvent{ID: "f-0"})
	assert.Empty(t, empty.EventType)
	assert.Empty(t, empty.Handler)
	assert.False(t, empty.Time.IsZero())
}

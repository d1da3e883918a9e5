package eventbus

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/eventbus/pkg/eventbus/discovery"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
	"github.com/randalmurphal/eventbus/pkg/eventbus/poster"
)

// Bus routes posted events to registered handlers. A Bus is safe for
// concurrent use.
type Bus struct {
	cfg    busConfig
	finder *discovery.Finder

	registry *registry
	sticky   *stickyStore

	main       *poster.MainPoster
	background *poster.BackgroundPoster
	async      *poster.AsyncPoster
	ownedPool  *poster.BoundedPool

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	closed atomic.Bool
}

// New creates a bus.
func New(opts ...Option) *Bus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	b := &Bus{
		cfg:        cfg,
		finder:     discovery.NewFinder(cfg.indexes, cfg.strict, cfg.ignoreIndex),
		registry:   newRegistry(),
		sticky:     newStickyStore(),
		background: poster.NewBackgroundPoster(cfg.backgroundIdle),
		logger:     cfg.logger,
		metrics:    cfg.metrics,
		spans:      cfg.spans,
	}

	pool := cfg.pool
	if pool == nil {
		b.ownedPool = poster.NewBoundedPool(cfg.poolLimit)
		pool = b.ownedPool
	}
	b.async = poster.NewAsyncPoster(pool)

	if cfg.loop != nil {
		b.main = poster.NewMainPoster(cfg.loop, cfg.mainTimeSlice, func(err error) {
			observability.LogQueueDispatchError(b.logger, err)
		})
	}
	return b
}

// Close stops accepting posts and registrations, then waits for the
// background worker and the bus-owned async pool to finish queued work.
// Deliveries queued on the main loop stay with the loop.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.background.Close()
	if b.ownedPool != nil {
		return b.ownedPool.Close()
	}
	return nil
}

// String implements fmt.Stringer.
func (b *Bus) String() string {
	return fmt.Sprintf("eventbus.Bus[indexes=%d, hierarchy=%t]", b.finder.IndexCount(), b.cfg.hierarchy)
}

var (
	defaultMu  sync.Mutex
	defaultBus *Bus
)

// Default returns the process-wide bus, creating it with default options on
// first use.
func Default() *Bus {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultBus == nil {
		defaultBus = New()
	}
	return defaultBus
}

// InitDefault creates the process-wide bus with opts. It must run before the
// first call to Default and fails with ErrDefaultInitialized afterwards.
func InitDefault(opts ...Option) (*Bus, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultBus != nil {
		return nil, ErrDefaultInitialized
	}
	defaultBus = New(opts...)
	return defaultBus, nil
}

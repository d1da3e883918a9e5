package eventbus

import (
	"context"
	"reflect"
	"sync/atomic"

	"github.com/randalmurphal/eventbus/pkg/eventbus/discovery"
	"github.com/randalmurphal/eventbus/pkg/eventbus/poster"
)

// subscription binds one handler to one subscriber value.
type subscription struct {
	bus        *Bus
	subscriber any
	desc       *discovery.Descriptor
	active     atomic.Bool
}

var _ poster.Target = (*subscription)(nil)

func newSubscription(b *Bus, subscriber any, desc *discovery.Descriptor) *subscription {
	s := &subscription{bus: b, subscriber: subscriber, desc: desc}
	s.active.Store(true)
	return s
}

// Active implements poster.Target. It turns false as soon as the
// subscriber is unregistered, so queued deliveries are dropped.
func (s *subscription) Active() bool {
	return s.active.Load()
}

// Deliver implements poster.Target.
func (s *subscription) Deliver(ctx context.Context, event any) {
	s.bus.invoke(ctx, s, event)
}

func (s *subscription) subscriberType() reflect.Type {
	return reflect.TypeOf(s.subscriber)
}

// handlerName returns "Type.Method" for logs and spans.
func (s *subscription) handlerName() string {
	return s.subscriberType().String() + "." + s.desc.Name()
}

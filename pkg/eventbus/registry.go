package eventbus

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/randalmurphal/eventbus/pkg/eventbus/discovery"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
)

// registry maps exact event types to priority-ordered subscriptions.
//
// Per-type slices are replaced, never modified in place, so a slice returned
// by snapshot can be iterated without holding the lock.
type registry struct {
	mu           sync.RWMutex
	byEventType  map[reflect.Type][]*subscription
	bySubscriber map[any][]reflect.Type
	// interfaces lists interface event types with at least one subscription,
	// in the order they were first subscribed.
	interfaces []reflect.Type
}

func newRegistry() *registry {
	return &registry{
		byEventType:  make(map[reflect.Type][]*subscription),
		bySubscriber: make(map[any][]reflect.Type),
	}
}

// add subscribes every descriptor or none of them.
func (r *registry) add(b *Bus, subscriber any, descs []*discovery.Descriptor) ([]*subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	held := r.bySubscriber[subscriber]
	seen := make(map[reflect.Type]struct{}, len(held)+len(descs))
	for _, t := range held {
		seen[t] = struct{}{}
	}
	for _, d := range descs {
		if _, dup := seen[d.EventType()]; dup {
			return nil, &DuplicateSubscriptionError{
				SubscriberType: reflect.TypeOf(subscriber),
				EventType:      d.EventType(),
			}
		}
		seen[d.EventType()] = struct{}{}
	}

	subs := make([]*subscription, 0, len(descs))
	for _, d := range descs {
		sub := newSubscription(b, subscriber, d)
		et := d.EventType()
		list := r.byEventType[et]
		if len(list) == 0 && et.Kind() == reflect.Interface {
			r.interfaces = append(slices.Clip(r.interfaces), et)
		}
		r.byEventType[et] = insertByPriority(list, sub)
		held = append(held, et)
		subs = append(subs, sub)
	}
	r.bySubscriber[subscriber] = held
	return subs, nil
}

// insertByPriority returns a new slice with sub placed after every
// subscription of equal or higher priority.
func insertByPriority(list []*subscription, sub *subscription) []*subscription {
	i := len(list)
	for j, s := range list {
		if sub.desc.Priority() > s.desc.Priority() {
			i = j
			break
		}
	}
	out := make([]*subscription, 0, len(list)+1)
	out = append(out, list[:i]...)
	out = append(out, sub)
	return append(out, list[i:]...)
}

// remove deactivates and drops every subscription of subscriber.
func (r *registry) remove(subscriber any) ([]*subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	types, ok := r.bySubscriber[subscriber]
	if !ok {
		return nil, false
	}

	var removed []*subscription
	for _, t := range types {
		list := r.byEventType[t]
		kept := make([]*subscription, 0, len(list))
		for _, s := range list {
			if s.subscriber == subscriber {
				s.active.Store(false)
				removed = append(removed, s)
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) > 0 {
			r.byEventType[t] = kept
			continue
		}
		delete(r.byEventType, t)
		if t.Kind() == reflect.Interface {
			r.interfaces = slices.DeleteFunc(slices.Clone(r.interfaces), func(it reflect.Type) bool {
				return it == t
			})
		}
	}
	delete(r.bySubscriber, subscriber)
	return removed, true
}

func (r *registry) snapshot(t reflect.Type) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byEventType[t]
}

func (r *registry) interfaceTypes() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.interfaces
}

func (r *registry) has(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEventType[t]) > 0
}

func (r *registry) contains(subscriber any) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySubscriber[subscriber]
	return ok
}

// Register subscribes every handler of subscriber. Handlers of sticky
// descriptors immediately receive the matching retained events.
//
// subscriber must be a non-nil comparable value, usually a pointer. Register
// fails with *DiscoveryError when the type declares no handlers, with
// *SignatureError for malformed handlers under strict verification, and with
// *DuplicateSubscriptionError when subscriber already receives one of the
// event types. When a sticky replay cannot be queued, for example because
// the worker pool rejects it, the registration is rolled back and the
// poster's error is returned wrapped. In every failure case the subscriber
// is left unregistered.
func (b *Bus) Register(subscriber any) error {
	return b.RegisterContext(context.Background(), subscriber)
}

// RegisterContext is Register with the context sticky replay runs in. Sticky
// events for Main handlers are delivered immediately when ctx belongs to the
// main loop and queued otherwise.
func (b *Bus) RegisterContext(ctx context.Context, subscriber any) error {
	if subscriber == nil || !reflect.ValueOf(subscriber).Comparable() {
		return ErrInvalidSubscriber
	}
	if b.closed.Load() {
		return ErrBusClosed
	}

	subscriberType := reflect.TypeOf(subscriber)
	descs, err := b.finder.Find(subscriberType)
	if err != nil {
		return err
	}

	subs, err := b.registry.add(b, subscriber, descs)
	if err != nil {
		return err
	}
	observability.LogRegistered(b.logger, subscriberType.String(), len(subs))
	b.metrics.RecordSubscriptions(ctx, subscriberType.String(), len(subs))

	onMain := b.isMain(ctx)
	for _, sub := range subs {
		if !sub.desc.Sticky() {
			continue
		}
		if err := b.replaySticky(ctx, sub, onMain); err != nil {
			b.rollback(ctx, subscriber)
			return fmt.Errorf("replay sticky events: %w", err)
		}
	}
	return nil
}

// rollback drops a registration whose sticky replay could not be handed to
// its poster. Replays already delivered are not undone.
func (b *Bus) rollback(ctx context.Context, subscriber any) {
	removed, ok := b.registry.remove(subscriber)
	if !ok {
		return
	}
	subscriberType := reflect.TypeOf(subscriber).String()
	observability.LogUnregistered(b.logger, subscriberType, len(removed))
	b.metrics.RecordSubscriptions(ctx, subscriberType, -len(removed))
}

// Unregister removes every subscription of subscriber. Deliveries already
// queued for it are dropped. Unregistering an unknown subscriber is logged
// and otherwise ignored.
func (b *Bus) Unregister(subscriber any) {
	if subscriber == nil || !reflect.ValueOf(subscriber).Comparable() {
		return
	}
	subscriberType := reflect.TypeOf(subscriber).String()

	removed, ok := b.registry.remove(subscriber)
	if !ok {
		observability.LogUnknownSubscriber(b.logger, subscriberType)
		return
	}
	observability.LogUnregistered(b.logger, subscriberType, len(removed))
	b.metrics.RecordSubscriptions(context.Background(), subscriberType, -len(removed))
}

// IsRegistered reports whether subscriber currently holds subscriptions.
func (b *Bus) IsRegistered(subscriber any) bool {
	if subscriber == nil || !reflect.ValueOf(subscriber).Comparable() {
		return false
	}
	return b.registry.contains(subscriber)
}

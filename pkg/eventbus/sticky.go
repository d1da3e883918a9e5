package eventbus

import (
	"context"
	"reflect"
	"sync"
)

// stickyStore retains the most recent sticky event per exact type.
type stickyStore struct {
	mu     sync.Mutex
	events map[reflect.Type]any
}

func newStickyStore() *stickyStore {
	return &stickyStore{events: make(map[reflect.Type]any)}
}

func (s *stickyStore) put(event any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[reflect.TypeOf(event)] = event
}

func (s *stickyStore) get(t reflect.Type) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.events[t]
	return v, ok
}

func (s *stickyStore) entries() map[reflect.Type]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[reflect.Type]any, len(s.events))
	for t, v := range s.events {
		out[t] = v
	}
	return out
}

// PostSticky retains event as the latest of its exact type, then posts it.
// Handlers registered later with Sticky set receive it during registration.
func (b *Bus) PostSticky(ctx context.Context, event any) error {
	if event == nil {
		return ErrNilEvent
	}
	if b.closed.Load() {
		return ErrBusClosed
	}
	b.sticky.put(event)
	return b.Post(ctx, event)
}

// StickyEvent returns the retained sticky event of exact type t.
func (b *Bus) StickyEvent(t reflect.Type) (any, bool) {
	return b.sticky.get(t)
}

// StickyEventOf returns the retained sticky event of type T.
//
// Example:
//
//	if loc, ok := eventbus.StickyEventOf[*LocationChanged](bus); ok {
//	    render(loc)
//	}
func StickyEventOf[T any](b *Bus) (T, bool) {
	v, ok := b.sticky.get(reflect.TypeFor[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// RemoveStickyEvent removes and returns the retained sticky event of exact
// type t.
func (b *Bus) RemoveStickyEvent(t reflect.Type) (any, bool) {
	b.sticky.mu.Lock()
	defer b.sticky.mu.Unlock()
	v, ok := b.sticky.events[t]
	if ok {
		delete(b.sticky.events, t)
	}
	return v, ok
}

// RemoveStickyValue removes event if it is still the retained sticky event
// of its type. Pointers match by identity and comparable values with ==;
// values that cannot be compared, such as structs holding slices, match
// when they are deeply equal.
func (b *Bus) RemoveStickyValue(event any) bool {
	if event == nil {
		return false
	}
	t := reflect.TypeOf(event)

	b.sticky.mu.Lock()
	defer b.sticky.mu.Unlock()
	if v, ok := b.sticky.events[t]; ok && sameStickyValue(v, event) {
		delete(b.sticky.events, t)
		return true
	}
	return false
}

// RemoveAllStickyEvents drops every retained sticky event.
func (b *Bus) RemoveAllStickyEvents() {
	b.sticky.mu.Lock()
	defer b.sticky.mu.Unlock()
	clear(b.sticky.events)
}

func sameStickyValue(retained, event any) bool {
	if reflect.ValueOf(retained).Comparable() && reflect.ValueOf(event).Comparable() {
		return sameEvent(retained, event)
	}
	return reflect.DeepEqual(retained, event)
}

// replaySticky delivers retained events matching sub's event type to sub
// alone. With hierarchy enabled every retained type is checked, so an event
// embedding or implementing the handler's type also matches.
func (b *Bus) replaySticky(ctx context.Context, sub *subscription, onMain bool) error {
	et := sub.desc.EventType()
	if !b.cfg.hierarchy {
		if v, ok := b.sticky.get(et); ok {
			return b.postToSubscription(ctx, sub, v, onMain)
		}
		return nil
	}

	for t, v := range b.sticky.entries() {
		view, ok := stickyView(t, v, et)
		if !ok {
			continue
		}
		if err := b.postToSubscription(ctx, sub, view, onMain); err != nil {
			return err
		}
	}
	return nil
}

// stickyView returns the part of a retained event of type t that a handler
// for et receives.
func stickyView(t reflect.Type, event any, et reflect.Type) (any, bool) {
	if et.Kind() == reflect.Interface {
		if implements(t, et) {
			return event, true
		}
		return nil, false
	}
	for _, m := range closureOf(t) {
		if m.typ == et {
			return m.view(event)
		}
	}
	return nil, false
}

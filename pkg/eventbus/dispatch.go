package eventbus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/randalmurphal/eventbus/pkg/eventbus/discovery"
	"github.com/randalmurphal/eventbus/pkg/eventbus/observability"
)

// Post delivers event to every matching handler.
//
// Posts share a FIFO queue per posting context. A Post from inside an
// immediately invoked handler, using the handler's context, is queued behind
// the event being delivered and runs once that delivery finishes.
//
// Handler failures never surface here; they follow the configured failure
// path. Post returns ErrNilEvent, ErrBusClosed, or a *QueueDispatchError when
// work could not be handed to the main loop, in which case the rest of the
// queue is left for the next Post on the same context.
func (b *Bus) Post(ctx context.Context, event any) error {
	if event == nil {
		return ErrNilEvent
	}
	if b.closed.Load() {
		return ErrBusClosed
	}

	ctx, st := b.postingState(ctx)
	st.mu.Lock()
	st.queue = append(st.queue, event)
	if st.posting {
		st.mu.Unlock()
		return nil
	}
	st.posting = true
	st.mu.Unlock()

	defer func() {
		st.mu.Lock()
		st.posting = false
		st.cancelled = false
		st.mu.Unlock()
	}()

	onMain := b.isMain(ctx)
	for {
		st.mu.Lock()
		if len(st.queue) == 0 {
			st.mu.Unlock()
			return nil
		}
		next := st.queue[0]
		st.queue[0] = nil
		st.queue = st.queue[1:]
		st.mu.Unlock()

		if err := b.postSingle(ctx, st, next, onMain); err != nil {
			return err
		}
	}
}

// postSingle dispatches one event across its type closure.
func (b *Bus) postSingle(ctx context.Context, st *postingState, event any, onMain bool) (err error) {
	eventType := reflect.TypeOf(event)
	typeName := eventType.String()

	b.metrics.RecordPost(ctx, typeName)
	ctx, span := b.spans.StartPostSpan(ctx, typeName)
	defer func() { b.spans.EndSpanWithError(span, err) }()

	found := false
	if b.cfg.hierarchy {
		found, err = b.postClosure(ctx, st, event, eventType, onMain)
	} else {
		found, _, err = b.postForType(ctx, st, event, eventType, onMain)
	}
	if err != nil || found {
		return err
	}

	if b.cfg.logNoSubscriber {
		observability.LogNoSubscriber(b.logger, typeName)
	}
	b.metrics.RecordNoSubscriber(ctx, typeName)
	if !b.cfg.emitNoSubscriber {
		return nil
	}
	switch event.(type) {
	case *NoSubscriberEvent, *FailureEvent:
		return nil
	}
	return b.Post(ctx, &NoSubscriberEvent{Bus: b, Event: event})
}

// postClosure delivers event to the handlers of each closure member, most
// derived first, then to the handlers of subscribed interfaces it implements.
func (b *Bus) postClosure(ctx context.Context, st *postingState, event any, eventType reflect.Type, onMain bool) (bool, error) {
	found := false
	for _, m := range closureOf(eventType) {
		view, ok := m.view(event)
		if !ok {
			continue
		}
		matched, cancelled, err := b.postForType(ctx, st, view, m.typ, onMain)
		found = found || matched
		if err != nil || cancelled {
			return found, err
		}
	}

	for _, iface := range b.registry.interfaceTypes() {
		if !implements(eventType, iface) {
			continue
		}
		matched, cancelled, err := b.postForType(ctx, st, event, iface, onMain)
		found = found || matched
		if err != nil || cancelled {
			return found, err
		}
	}
	return found, nil
}

// postForType delivers event to the subscriptions of one exact type.
func (b *Bus) postForType(ctx context.Context, st *postingState, event any, t reflect.Type, onMain bool) (matched, cancelled bool, err error) {
	subs := b.registry.snapshot(t)
	if len(subs) == 0 {
		return false, false, nil
	}
	for _, sub := range subs {
		if !sub.Active() {
			continue
		}
		st.begin(sub, event)
		err = b.postToSubscription(ctx, sub, event, onMain)
		cancelled = st.end()
		if err != nil || cancelled {
			return true, cancelled, err
		}
	}
	return true, false, nil
}

// postToSubscription runs or queues one delivery according to the
// handler's thread mode.
func (b *Bus) postToSubscription(ctx context.Context, sub *subscription, event any, onMain bool) error {
	switch sub.desc.Mode() {
	case discovery.Main:
		if b.main == nil || onMain {
			b.invoke(ctx, sub, event)
			return nil
		}
		return b.main.Enqueue(sub, event)
	case discovery.MainOrdered:
		if b.main == nil {
			b.invoke(ctx, sub, event)
			return nil
		}
		return b.main.Enqueue(sub, event)
	case discovery.Background:
		if !onMain {
			b.invoke(ctx, sub, event)
			return nil
		}
		if err := b.background.Enqueue(sub, event); err != nil {
			return fmt.Errorf("background delivery: %w", err)
		}
		return nil
	case discovery.Async:
		if err := b.async.Enqueue(sub, event); err != nil {
			return fmt.Errorf("async delivery: %w", err)
		}
		return nil
	default:
		b.invoke(ctx, sub, event)
		return nil
	}
}

// invoke calls the handler and routes a failure.
func (b *Bus) invoke(ctx context.Context, sub *subscription, event any) {
	eventType := reflect.TypeOf(event).String()
	mode := sub.desc.Mode().String()

	ctx, span := b.spans.StartDeliverySpan(ctx, eventType, sub.handlerName(), mode)
	elapsed := observability.TimedOperation()
	err := b.call(ctx, sub, event)
	b.metrics.RecordDelivery(ctx, eventType, mode, elapsed(), err)
	b.spans.EndSpanWithError(span, err)

	if err != nil {
		b.handleFailure(ctx, sub, event, err)
	}
}

func (b *Bus) call(ctx context.Context, sub *subscription, event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return sub.desc.Invoke(ctx, sub.subscriber, event)
}

// handleFailure applies the configured failure policy.
func (b *Bus) handleFailure(ctx context.Context, sub *subscription, event any, err error) {
	failure := &HandlerInvocationError{
		SubscriberType: sub.subscriberType(),
		Handler:        sub.desc.Name(),
		EventType:      reflect.TypeOf(event),
		Err:            err,
	}

	if fe, ok := event.(*FailureEvent); ok {
		if b.cfg.logHandlerFailure {
			causing := "<nil>"
			if fe.CausingEvent != nil {
				causing = reflect.TypeOf(fe.CausingEvent).String()
			}
			observability.LogFailureEventFailure(b.logger, sub.handlerName(), causing, failure)
		}
		return
	}

	if b.cfg.throwHandlerFailure {
		panic(failure)
	}
	if b.cfg.logHandlerFailure {
		observability.LogHandlerFailure(b.logger, failure.EventType.String(), sub.handlerName(), err)
	}
	if b.cfg.emitFailureEvent {
		if perr := b.Post(ctx, newFailureEvent(b, failure, event, sub.subscriber)); perr != nil && !errors.Is(perr, ErrBusClosed) {
			observability.LogQueueDispatchError(b.logger, perr)
		}
	}
}

// HasSubscriberForEvent reports whether posting a value of type t would
// reach at least one handler.
func (b *Bus) HasSubscriberForEvent(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if !b.cfg.hierarchy {
		return b.registry.has(t)
	}
	for _, m := range closureOf(t) {
		if b.registry.has(m.typ) {
			return true
		}
	}
	for _, iface := range b.registry.interfaceTypes() {
		if implements(t, iface) {
			return true
		}
	}
	return false
}

// isMain reports whether ctx runs on the configured main loop.
func (b *Bus) isMain(ctx context.Context) bool {
	return b.main != nil && b.main.Loop().IsCurrent(ctx)
}

/*
Package eventbus is an in-process publish/subscribe dispatcher routed by
event type.

Subscribers are ordinary values whose exported On<Name> methods take one
event, optionally preceded by a context.Context, and return nothing or an
error:

	type Screen struct{ title string }

	func (s *Screen) OnTitleChanged(e *TitleChanged) { s.title = e.Title }

	func (s *Screen) OnSave(ctx context.Context, e *SaveRequested) error {
	    return s.store.Save(ctx, e.Doc)
	}

Register the subscriber and post events:

	bus := eventbus.New()
	if err := bus.Register(screen); err != nil {
	    return err
	}
	bus.Post(ctx, &TitleChanged{Title: "draft"})
	bus.Unregister(screen)

# Handler options

A subscriber implementing discovery.Configurable selects each handler's
thread mode, priority and stickiness:

	func (*Screen) SubscriberConfig() discovery.Config {
	    return discovery.Config{
	        "OnTitleChanged": {Mode: discovery.Main, Priority: 10, Sticky: true},
	    }
	}

Handlers run in the order of descending priority; equal priorities keep
registration order.

# Thread modes

  - Posting: on the posting goroutine, before Post returns.
  - Main: on the main loop. Immediate when posted from the loop, queued otherwise.
  - MainOrdered: always queued on the main loop, even from the loop itself.
  - Background: from the main loop, queued on a single sequential worker;
    otherwise immediate.
  - Async: always on the worker pool.

The main loop is supplied with WithMainLoop; poster.Looper is a ready-made
one. Without a main loop, Main and MainOrdered behave like Posting.

# Type hierarchy

With hierarchy enabled (the default) an event is also delivered to handlers
of its exported embedded struct types, most derived first, and then to
handlers declared for interfaces it implements. Handlers of an embedded type
receive the embedded value; for pointer events a pointer to the embedded
field.

# Sticky events

PostSticky retains the latest event of each type. Sticky handlers registered
later receive the retained events during Register.

# Failures

Handler errors and panics never reach the poster. By default they are logged
and posted as *FailureEvent; WithThrowOnHandlerFailure re-panics instead.
*/
package eventbus

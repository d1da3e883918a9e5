/*
Package discovery resolves a subscriber type to the ordered list of handler
descriptors the event bus registers for it.

# Handlers

A handler is an exported method whose name starts with "On" followed by an
upper-case letter, taking the event as its only parameter (optionally preceded
by a context.Context) and returning nothing or an error:

	func (s *Screen) OnMessage(msg *Message)
	func (s *Screen) OnReload(ctx context.Context, evt *Reload) error

The parameter type is the handler's event type. It may be an interface type,
in which case hierarchy-aware buses deliver every event implementing it.

# Per-handler options

Thread mode, priority and stickiness default to Posting, 0 and false. A
subscriber overrides them by implementing Configurable:

	func (s *Screen) SubscriberConfig() discovery.Config {
	    return discovery.Config{
	        "OnMessage": {Mode: discovery.Main, Priority: 10},
	        "OnReload":  {Sticky: true},
	    }
	}

SubscriberConfig is called on a fresh zero value of the type, so it must not
depend on instance state.

# Embedding

Embedded struct types are the Go analogue of superclasses. Discovery walks the
subscriber type first and then its embedded types breadth-first. A handler key
(method name plus event type) claimed by a more derived level shadows the same
key on an embedded type, so redefining a handler replaces it instead of
registering it twice. Standard library types are never walked.

# Precomputed tables

Generated code can supply Info tables through an Index. Discovery prefers a
table for a level when one exists, and follows Info.Super links before asking
the indexes again. Descriptors built with Handle invoke the handler through a
typed closure instead of reflection.

Results are cached per subscriber type for the lifetime of the process;
ClearCaches resets the cache for test isolation.
*/
package discovery

package discovery

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// Options are the per-handler attributes a subscriber may override.
type Options struct {
	// Mode selects the execution context. Default: Posting.
	Mode ThreadMode
	// Priority orders handlers sharing a mode; higher runs first. Default: 0.
	Priority int
	// Sticky replays the last retained event of a matching type on registration.
	Sticky bool
}

// Config maps handler method names to their options.
type Config map[string]Options

// Configurable is implemented by subscribers that override handler options.
type Configurable interface {
	SubscriberConfig() Config
}

// ErrNilReceiver is returned when a handler declared on an embedded pointer
// field is invoked while that field is nil.
var ErrNilReceiver = errors.New("handler receiver is nil")

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// invokeFunc calls a handler on an already resolved receiver.
type invokeFunc func(ctx context.Context, recv reflect.Value, event any) error

// Descriptor describes one handler. It is immutable after construction and
// safe to share between goroutines.
type Descriptor struct {
	eventType reflect.Type
	opts      Options
	name      string
	declaring reflect.Type
	key       string

	// path is the embedded field index path from the subscriber to the
	// receiver; addr takes the field's address before the call.
	path []int
	addr bool

	invoke invokeFunc
}

func newDescriptor(declaring reflect.Type, name string, eventType reflect.Type, opts Options, invoke invokeFunc) *Descriptor {
	return &Descriptor{
		eventType: eventType,
		opts:      opts,
		name:      name,
		declaring: declaring,
		key:       declaring.String() + "." + name + ">" + eventType.String(),
		invoke:    invoke,
	}
}

// EventType returns the handler's declared event type.
func (d *Descriptor) EventType() reflect.Type { return d.eventType }

// Mode returns the handler's thread mode.
func (d *Descriptor) Mode() ThreadMode { return d.opts.Mode }

// Priority returns the handler's priority.
func (d *Descriptor) Priority() int { return d.opts.Priority }

// Sticky reports whether the handler receives retained sticky events on registration.
func (d *Descriptor) Sticky() bool { return d.opts.Sticky }

// Name returns the handler method name.
func (d *Descriptor) Name() string { return d.name }

// DeclaringType returns the type whose method set holds the handler.
func (d *Descriptor) DeclaringType() reflect.Type { return d.declaring }

// Key returns the comparison key built from declaring type, name and event type.
func (d *Descriptor) Key() string { return d.key }

// String implements fmt.Stringer.
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s [mode=%s priority=%d sticky=%t]", d.key, d.opts.Mode, d.opts.Priority, d.opts.Sticky)
}

// Invoke calls the handler on subscriber with event.
func (d *Descriptor) Invoke(ctx context.Context, subscriber any, event any) error {
	recv, err := d.receiver(subscriber)
	if err != nil {
		return err
	}
	return d.invoke(ctx, recv, event)
}

// at returns a copy of d bound to the receiver located at path.
func (d *Descriptor) at(path []int, addr bool) *Descriptor {
	if len(path) == 0 && !addr {
		return d
	}
	bound := *d
	bound.path = path
	bound.addr = addr
	return &bound
}

func (d *Descriptor) receiver(subscriber any) (reflect.Value, error) {
	v := reflect.ValueOf(subscriber)
	for _, i := range d.path {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, ErrNilReceiver
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	if d.addr {
		v = v.Addr()
	} else if len(d.path) > 0 && v.Kind() == reflect.Pointer && v.IsNil() {
		return reflect.Value{}, ErrNilReceiver
	}
	return v, nil
}

// reflectInvoker calls m through reflection.
func reflectInvoker(m reflect.Method, withContext, returnsError bool) invokeFunc {
	return func(ctx context.Context, recv reflect.Value, event any) error {
		args := make([]reflect.Value, 0, 3)
		args = append(args, recv)
		if withContext {
			args = append(args, reflect.ValueOf(ctx))
		}
		args = append(args, reflect.ValueOf(event))
		out := m.Func.Call(args)
		if returnsError && !out[0].IsNil() {
			return out[0].Interface().(error)
		}
		return nil
	}
}

// Handle builds a descriptor for generated tables. fn is called directly
// without reflection; S is the declaring subscriber type and E the event type.
//
//	discovery.Handle("OnMessage", func(s *Screen, ctx context.Context, m *Message) error {
//	    s.OnMessage(m)
//	    return nil
//	}, discovery.Options{Mode: discovery.Main})
func Handle[S any, E any](name string, fn func(S, context.Context, E) error, opts Options) *Descriptor {
	return newDescriptor(reflect.TypeFor[S](), name, reflect.TypeFor[E](), opts,
		func(ctx context.Context, recv reflect.Value, event any) error {
			return fn(recv.Interface().(S), ctx, event.(E))
		})
}

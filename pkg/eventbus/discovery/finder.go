package discovery

import (
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"

	"github.com/randalmurphal/eventbus/pkg/eventbus/internal/typecache"
)

// descriptorCache holds discovery results per subscriber type for the
// lifetime of the process.
var descriptorCache = typecache.New[reflect.Type, []*Descriptor]()

// ClearCaches drops every cached discovery result.
func ClearCaches() {
	descriptorCache.Clear()
}

// Finder resolves subscriber types to handler descriptors.
type Finder struct {
	indexes     []Index
	strict      bool
	ignoreIndex bool
}

// NewFinder creates a finder. indexes are consulted in order unless
// ignoreIndex is set; strict turns malformed handlers into errors.
func NewFinder(indexes []Index, strict, ignoreIndex bool) *Finder {
	return &Finder{
		indexes:     indexes,
		strict:      strict,
		ignoreIndex: ignoreIndex,
	}
}

// IndexCount returns the number of configured indexes.
func (f *Finder) IndexCount() int {
	return len(f.indexes)
}

// Find returns the handler descriptors of subscriberType, most derived level
// first. The returned slice is shared and must not be modified.
func (f *Finder) Find(subscriberType reflect.Type) ([]*Descriptor, error) {
	if cached, ok := descriptorCache.Get(subscriberType); ok {
		return cached, nil
	}

	descriptors, err := f.find(subscriberType)
	if err != nil {
		return nil, err
	}
	if len(descriptors) == 0 {
		return nil, &DiscoveryError{SubscriberType: subscriberType}
	}
	return descriptorCache.Store(subscriberType, descriptors), nil
}

func (f *Finder) find(subscriberType reflect.Type) ([]*Descriptor, error) {
	s := prepareFindState()
	defer releaseFindState(s)

	s.init(subscriberType)
	for {
		l, ok := s.next()
		if !ok {
			break
		}

		if f.ignoreIndex {
			s.info = nil
		} else {
			s.info = f.lookupInfo(s.info, l.typ)
		}

		if s.info != nil {
			for _, d := range s.info.Descriptors() {
				d = d.at(l.path, l.addr)
				if s.checkAdd(d) {
					s.descriptors = append(s.descriptors, d)
				}
			}
		} else if err := f.reflectLevel(s, l); err != nil {
			return nil, err
		}

		s.pushEmbedded(l)
	}
	return s.result(), nil
}

// lookupInfo follows the previous table's Super link before asking the indexes.
func (f *Finder) lookupInfo(prev Info, t reflect.Type) Info {
	if prev != nil {
		if super := prev.Super(); super != nil && super.SubscriberType() == t {
			return super
		}
	}
	for _, idx := range f.indexes {
		if info := idx.Lookup(t); info != nil {
			return info
		}
	}
	return nil
}

func (f *Finder) reflectLevel(s *findState, l level) error {
	t := l.typ
	own, merged := levelConfig(t)

	found := make(map[string]struct{})
	for i := range t.NumMethod() {
		m := t.Method(i)
		if !isMarked(m.Name) || isAbstract(t, m.Name) {
			continue
		}
		eventType, withContext, returnsError, reason := handlerShape(m.Type)
		if reason != "" {
			if f.strict {
				return &SignatureError{DeclaringType: t, Method: m.Name, Reason: reason}
			}
			continue
		}
		found[m.Name] = struct{}{}

		d := newDescriptor(t, m.Name, eventType, merged[m.Name], reflectInvoker(m, withContext, returnsError))
		d = d.at(l.path, l.addr)
		if s.checkAdd(d) {
			s.descriptors = append(s.descriptors, d)
		}
	}

	if f.strict {
		for name := range own {
			if _, ok := found[name]; !ok {
				return &SignatureError{DeclaringType: t, Method: name, Reason: "configured handler not found"}
			}
		}
	}
	return nil
}

// isMarked reports whether name follows the On<Upper> handler convention.
func isMarked(name string) bool {
	if len(name) < 3 || name[:2] != "On" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name[2:])
	return unicode.IsUpper(r)
}

// handlerShape validates a method type whose first input is the receiver.
// reason is empty when the shape is valid.
func handlerShape(mt reflect.Type) (eventType reflect.Type, withContext, returnsError bool, reason string) {
	if mt.IsVariadic() {
		return nil, false, false, "must not be variadic"
	}

	switch params := mt.NumIn() - 1; params {
	case 1:
		eventType = mt.In(1)
	case 2:
		if mt.In(1) != contextType {
			return nil, false, false, "first of two parameters must be context.Context"
		}
		withContext = true
		eventType = mt.In(2)
	default:
		return nil, false, false, fmt.Sprintf("must have exactly 1 event parameter but has %d", params)
	}
	if eventType == contextType {
		return nil, false, false, "event parameter must not be context.Context"
	}

	switch {
	case mt.NumOut() == 0:
	case mt.NumOut() == 1 && mt.Out(0) == errorType:
		returnsError = true
	default:
		return nil, false, false, "must return nothing or error"
	}
	return eventType, withContext, returnsError, ""
}

// levelConfig returns the Config declared for t and the Config merged with
// those of its embedded types; entries closer to t win.
func levelConfig(t reflect.Type) (own, merged Config) {
	own = configOf(t)
	merged = make(Config, len(own))
	for k, v := range own {
		merged[k] = v
	}

	visited := map[reflect.Type]struct{}{t: {}}
	queue := []reflect.Type{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for cur.Kind() == reflect.Pointer {
			cur = cur.Elem()
		}
		if cur.Kind() != reflect.Struct {
			continue
		}
		for i := range cur.NumField() {
			f := cur.Field(i)
			if !f.Anonymous || !f.IsExported() || IsPlatformType(f.Type) {
				continue
			}
			ft := f.Type
			if ft.Kind() == reflect.Struct {
				ft = reflect.PointerTo(ft)
			}
			if ft.Kind() != reflect.Pointer {
				continue
			}
			if _, seen := visited[ft]; seen {
				continue
			}
			visited[ft] = struct{}{}
			for k, v := range configOf(ft) {
				if _, ok := merged[k]; !ok {
					merged[k] = v
				}
			}
			queue = append(queue, ft)
		}
	}
	return own, merged
}

// configOf calls SubscriberConfig on a fresh zero value of t.
func configOf(t reflect.Type) Config {
	var inst reflect.Value
	if t.Kind() == reflect.Pointer {
		inst = reflect.New(t.Elem())
	} else {
		inst = reflect.New(t).Elem()
	}
	if c, ok := inst.Interface().(Configurable); ok {
		return c.SubscriberConfig()
	}
	return nil
}

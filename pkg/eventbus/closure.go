package eventbus

import (
	"reflect"
	"slices"

	"github.com/randalmurphal/eventbus/pkg/eventbus/discovery"
	"github.com/randalmurphal/eventbus/pkg/eventbus/internal/typecache"
)

// member is one struct type in an event type's closure: the type itself or
// an exported embedded ancestor, reached through path.
type member struct {
	typ  reflect.Type
	path []int
	// addr takes the field's address, for value structs embedded in a
	// pointer event.
	addr bool
}

type implementsKey struct {
	event, iface reflect.Type
}

var (
	closureCache    = typecache.New[reflect.Type, []member]()
	implementsCache = typecache.New[implementsKey, bool]()
)

// ClearCaches drops the handler discovery cache and the event type closure
// caches. Intended for tests.
func ClearCaches() {
	discovery.ClearCaches()
	closureCache.Clear()
	implementsCache.Clear()
}

// closureOf returns t followed by its embedded ancestors, breadth-first.
func closureOf(t reflect.Type) []member {
	return closureCache.GetOrCompute(t, func() []member {
		return typeClosure(t)
	})
}

func typeClosure(t reflect.Type) []member {
	members := []member{{typ: t}}
	visited := map[reflect.Type]struct{}{t: {}}

	for i := 0; i < len(members); i++ {
		m := members[i]
		st, addressable := m.typ, false
		if st.Kind() == reflect.Pointer {
			st, addressable = st.Elem(), true
		}
		if st.Kind() != reflect.Struct {
			continue
		}

		for j := range st.NumField() {
			f := st.Field(j)
			if !f.Anonymous || !f.IsExported() || discovery.IsPlatformType(f.Type) {
				continue
			}
			next := member{typ: f.Type, path: append(slices.Clip(m.path), j)}
			switch {
			case f.Type.Kind() == reflect.Pointer && f.Type.Elem().Kind() == reflect.Struct:
			case f.Type.Kind() == reflect.Struct && addressable:
				next.typ = reflect.PointerTo(f.Type)
				next.addr = true
			case f.Type.Kind() == reflect.Struct:
			default:
				continue
			}
			if _, seen := visited[next.typ]; seen {
				continue
			}
			visited[next.typ] = struct{}{}
			members = append(members, next)
		}
	}
	return members
}

// view returns the part of event that m describes. It reports false when a
// nil embedded pointer lies on the path.
func (m member) view(event any) (any, bool) {
	if len(m.path) == 0 {
		return event, true
	}
	v := reflect.ValueOf(event)
	for _, i := range m.path {
		if v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return nil, false
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	if m.addr {
		return v.Addr().Interface(), true
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, false
	}
	return v.Interface(), true
}

// implements reports whether event type t satisfies iface, caching the answer.
func implements(t, iface reflect.Type) bool {
	return implementsCache.GetOrCompute(implementsKey{event: t, iface: iface}, func() bool {
		return t.Implements(iface)
	})
}

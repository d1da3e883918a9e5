package discovery

import (
	"reflect"
	"slices"
	"strings"
	"sync"
)

// level is one type in the embedding walk.
type level struct {
	typ  reflect.Type
	path []int
	addr bool
}

// findState is scratch state for one Find call. Instances are pooled.
type findState struct {
	descriptors []*Descriptor

	// anyByEventType holds the first descriptor seen for an event type, or
	// the state itself once a second one forced the composite-key check.
	anyByEventType map[reflect.Type]any
	ownerByKey     map[string]reflect.Type
	keyBuf         []byte

	levels  []level
	visited map[reflect.Type]struct{}
	info    Info
}

func newFindState() *findState {
	return &findState{
		anyByEventType: make(map[reflect.Type]any),
		ownerByKey:     make(map[string]reflect.Type),
		keyBuf:         make([]byte, 0, 128),
		visited:        make(map[reflect.Type]struct{}),
	}
}

func (s *findState) init(subscriberType reflect.Type) {
	s.levels = append(s.levels, level{typ: subscriberType})
	s.visited[subscriberType] = struct{}{}
}

func (s *findState) recycle() {
	clear(s.descriptors)
	s.descriptors = s.descriptors[:0]
	clear(s.anyByEventType)
	clear(s.ownerByKey)
	s.keyBuf = s.keyBuf[:0]
	s.levels = s.levels[:0]
	clear(s.visited)
	s.info = nil
}

// next pops the next level of the breadth-first walk.
func (s *findState) next() (level, bool) {
	if len(s.levels) == 0 {
		return level{}, false
	}
	l := s.levels[0]
	s.levels = s.levels[1:]
	return l, true
}

// pushEmbedded queues the exported embedded struct types of l.
func (s *findState) pushEmbedded(l level) {
	st := l.typ
	addressable := false
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
		addressable = true
	}
	if st.Kind() != reflect.Struct {
		return
	}
	for i := range st.NumField() {
		f := st.Field(i)
		if !f.Anonymous || !f.IsExported() || IsPlatformType(f.Type) {
			continue
		}
		path := append(slices.Clip(l.path), i)
		var next level
		switch {
		case f.Type.Kind() == reflect.Pointer && f.Type.Elem().Kind() == reflect.Struct:
			next = level{typ: f.Type, path: path}
		case f.Type.Kind() == reflect.Struct && addressable:
			next = level{typ: reflect.PointerTo(f.Type), path: path, addr: true}
		case f.Type.Kind() == reflect.Struct:
			next = level{typ: f.Type, path: path}
		default:
			// Embedded interfaces carry no implementation.
			continue
		}
		if _, seen := s.visited[next.typ]; seen {
			continue
		}
		s.visited[next.typ] = struct{}{}
		s.levels = append(s.levels, next)
	}
}

// checkAdd reports whether d should be kept. Most types have at most one
// handler per event type, so the composite key is only built on collision.
func (s *findState) checkAdd(d *Descriptor) bool {
	existing, ok := s.anyByEventType[d.eventType]
	if !ok {
		s.anyByEventType[d.eventType] = d
		return true
	}
	if prev, isDescriptor := existing.(*Descriptor); isDescriptor {
		if !s.checkAddWithKey(prev) {
			panic("discovery: first handler for event type rejected by key check")
		}
		s.anyByEventType[d.eventType] = s
	}
	return s.checkAddWithKey(d)
}

func (s *findState) checkAddWithKey(d *Descriptor) bool {
	s.keyBuf = s.keyBuf[:0]
	s.keyBuf = append(s.keyBuf, d.name...)
	s.keyBuf = append(s.keyBuf, '>')
	s.keyBuf = append(s.keyBuf, d.eventType.String()...)
	key := string(s.keyBuf)

	owner, ok := s.ownerByKey[key]
	if !ok || owner == d.declaring {
		s.ownerByKey[key] = d.declaring
		return true
	}
	// A more derived level already owns this key.
	return false
}

func (s *findState) result() []*Descriptor {
	return slices.Clone(s.descriptors)
}

const findStatePoolSize = 4

var (
	findStatePoolMu sync.Mutex
	findStatePool   [findStatePoolSize]*findState
)

func prepareFindState() *findState {
	findStatePoolMu.Lock()
	defer findStatePoolMu.Unlock()
	for i, s := range findStatePool {
		if s != nil {
			findStatePool[i] = nil
			return s
		}
	}
	return newFindState()
}

func releaseFindState(s *findState) {
	s.recycle()
	findStatePoolMu.Lock()
	defer findStatePoolMu.Unlock()
	for i := range findStatePool {
		if findStatePool[i] == nil {
			findStatePool[i] = s
			return
		}
	}
}

// platformRoots are standard library path roots never walked as embedded levels.
var platformRoots = map[string]struct{}{
	"archive": {}, "bufio": {}, "bytes": {}, "cmp": {}, "compress": {}, "container": {},
	"context": {}, "crypto": {}, "database": {}, "debug": {}, "embed": {}, "encoding": {},
	"errors": {}, "expvar": {}, "flag": {}, "fmt": {}, "go": {}, "hash": {}, "html": {},
	"image": {}, "internal": {}, "io": {}, "iter": {}, "log": {}, "maps": {}, "math": {},
	"mime": {}, "net": {}, "os": {}, "path": {}, "plugin": {}, "reflect": {}, "regexp": {},
	"runtime": {}, "slices": {}, "sort": {}, "strconv": {}, "strings": {}, "sync": {},
	"syscall": {}, "testing": {}, "text": {}, "time": {}, "unicode": {}, "unique": {},
	"unsafe": {}, "weak": {},
}

// IsPlatformType reports whether t (or the type it points to) is unnamed or
// belongs to the standard library. Such types are never walked as embedded levels.
func IsPlatformType(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	pkg := t.PkgPath()
	if pkg == "" {
		return true
	}
	root, _, _ := strings.Cut(pkg, "/")
	_, ok := platformRoots[root]
	return ok
}

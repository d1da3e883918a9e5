package discovery

import (
	"reflect"
	"runtime"
)

// isAbstract reports whether method name of t is promoted from an embedded
// interface field. Such a method has no body of its own; calling it on a
// subscriber whose interface field is nil panics.
func isAbstract(t reflect.Type, name string) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	_, abstract, ok := resolveMethod(t, name, map[reflect.Type]struct{}{})
	return ok && abstract
}

// resolveMethod finds the embedding depth at which struct type st obtains
// method name, following Go's shallowest-depth promotion rule, and whether
// that method comes from an interface.
func resolveMethod(st reflect.Type, name string, visited map[reflect.Type]struct{}) (depth int, abstract, ok bool) {
	if declaresMethod(st, name) {
		return 0, false, true
	}
	visited[st] = struct{}{}
	defer delete(visited, st)

	depth = -1
	for i := range st.NumField() {
		f := st.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		switch ft.Kind() {
		case reflect.Interface:
			if _, has := ft.MethodByName(name); has && (depth < 0 || depth > 1) {
				depth, abstract = 1, true
			}
		case reflect.Struct:
			if _, seen := visited[ft]; seen {
				continue
			}
			if d, abs, found := resolveMethod(ft, name, visited); found && (depth < 0 || depth > d+1) {
				depth, abstract = d+1, abs
			}
		}
	}
	return depth, abstract, depth >= 0
}

// declaresMethod reports whether st or *st declares name itself rather than
// through a compiler-generated promotion wrapper.
func declaresMethod(st reflect.Type, name string) bool {
	for _, t := range []reflect.Type{st, reflect.PointerTo(st)} {
		m, ok := t.MethodByName(name)
		if !ok {
			continue
		}
		fn := runtime.FuncForPC(m.Func.Pointer())
		if fn == nil {
			continue
		}
		if file, _ := fn.FileLine(fn.Entry()); file != "<autogenerated>" {
			return true
		}
	}
	return false
}

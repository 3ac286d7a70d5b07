// Package merge overlays one record onto another field by field.
package merge

import "reflect"

// Fields returns existing with every present field of incoming copied over
// it. A field is absent when it is an empty string or a nil pointer, slice,
// map or interface; every other value, including zero numbers and false,
// counts as present. Fields named in keep always retain the existing value.
//
// T must be a struct type.
func Fields[T any](existing, incoming T, keep ...string) T {
	out := existing
	dst := reflect.ValueOf(&out).Elem()
	src := reflect.ValueOf(incoming)
	typ := dst.Type()

	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() || contains(keep, f.Name) {
			continue
		}
		v := src.Field(i)
		if absent(v) {
			continue
		}
		dst.Field(i).Set(v)
	}
	return out
}

func absent(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.Len() == 0
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

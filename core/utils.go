package core

import (
	"reflect"
	"strings"

	"github.com/kat-co/vala"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// IsNotNil is a vala.Checker failing on nil, including a nil pointer wrapped in an interface.
// Unlike vala.IsNotNil it accepts values of any kind.
func IsNotNil(obj interface{}, name string) vala.Checker {
	return func() (bool, string) {
		return !isNil(obj), "parameter was nil: " + name
	}
}

func isNil(obj interface{}) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

package core

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownAttribute is returned by Attr for names an object does not expose.
var ErrUnknownAttribute = errors.New("unknown attribute")

// Object is a live simulator object. Encode returns the object's
// construction-level attributes; Attr evaluates a derived attribute on demand.
//
// Values are float64, int, bool, string, time.Time, []float64 tuples,
// [][]float64 matrices, *Function, nested Object, []Object or []map[string]any.
type Object interface {
	Kind() string
	Encode() map[string]any
	Attr(name string) (any, error)
}

// attrTable maps attribute names to lazy getters.
type attrTable map[string]func() (any, error)

func (t attrTable) get(kind, name string) (v any, err error) {
	fn, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, kind, name)
	}
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("%s.%s: %v", kind, name, r)
		}
	}()
	return fn()
}

func (t attrTable) names() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func value(v any) func() (any, error) {
	return func() (any, error) { return v, nil }
}

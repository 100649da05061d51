package expressions

import (
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

var ErrNotImplemented = errors.New("expressions: not implemented")

// MultiMap exposes a string-to-string-list map, such as HTTP headers or
// URL query parameters, to CEL programs as a map of joined strings.
type MultiMap struct {
	values map[string][]string
	canon  func(string) string
}

// Headers wraps request headers for CEL. Lookups go through the usual
// canonical header key form.
func Headers(h http.Header) MultiMap {
	return MultiMap{values: h, canon: http.CanonicalHeaderKey}
}

// Query wraps URL query parameters for CEL. Keys are case sensitive.
func Query(v url.Values) MultiMap {
	return MultiMap{values: v}
}

func (m MultiMap) ConvertToNative(typeDesc reflect.Type) (any, error) {
	return nil, ErrNotImplemented
}

func (m MultiMap) ConvertToType(typeVal ref.Type) ref.Val {
	switch typeVal {
	case types.MapType:
		return m
	case types.TypeType:
		return types.MapType
	}

	return types.NewErr("can't convert from %q to %q", types.MapType, typeVal)
}

func (m MultiMap) Equal(other ref.Val) ref.Val {
	return types.Bool(false) // whole-map comparison is never meaningful here
}

func (m MultiMap) Type() ref.Type {
	return types.MapType
}

func (m MultiMap) Value() any { return m }

func (m MultiMap) Find(key ref.Val) (ref.Val, bool) {
	k, ok := key.(types.String)
	if !ok {
		return nil, false
	}

	name := string(k)
	if m.canon != nil {
		name = m.canon(name)
	}

	vals, ok := m.values[name]
	if !ok {
		return nil, false
	}

	return types.String(strings.Join(vals, ",")), true
}

func (m MultiMap) Contains(key ref.Val) ref.Val {
	_, ok := m.Find(key)
	return types.Bool(ok)
}

func (m MultiMap) Get(key ref.Val) ref.Val {
	result, ok := m.Find(key)
	if !ok {
		return types.ValOrErr(result, "no such key: %v", key)
	}
	return result
}

func (m MultiMap) Iterator() traits.Iterator { panic("expressions: map iteration is not supported") }

func (m MultiMap) IsZeroValue() bool {
	return len(m.values) == 0
}

func (m MultiMap) Size() ref.Val { return types.Int(len(m.values)) }

// Package tree models JSON-shaped documents as a tagged variant with stable key order.
//
// Encoders that hash or substitute strings inside a document need a single canonical
// traversal. Go maps do not provide one, so objects keep their keys in insertion
// (document) order and every consumer walks them the same way.
package tree

import "errors"

var (
	// ErrSyntax indicates input that is not a single well-formed JSON value.
	ErrSyntax = errors.New("tree: malformed JSON")
	// ErrNonFinite indicates a NaN or infinite number, which has no JSON form.
	ErrNonFinite = errors.New("tree: non-finite number")
	// ErrUnsupported indicates a Go value with no tree representation.
	ErrUnsupported = errors.New("tree: unsupported value")
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "unknown"
}

// Value is one node of a document.
type Value interface {
	Kind() Kind
}

type (
	Null   struct{}
	Bool   bool
	Number float64
	String string
	Array  []Value
)

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }

// Object is a mapping that remembers the order in which keys were first set.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

func (*Object) Kind() Kind { return KindObject }

// Set stores v under key. A key that already exists keeps its original position.
func (o *Object) Set(key string, v Value) *Object {
	if v == nil {
		v = Null{}
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
	return o
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in order. The slice must not be modified.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return o.keys
}

// Len reports the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// GetString returns the string stored under key, if any.
func (o *Object) GetString(key string) (string, bool) {
	v, ok := o.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(String)
	return string(s), ok
}

// GetObject returns the object stored under key, if any.
func (o *Object) GetObject(key string) (*Object, bool) {
	v, ok := o.Get(key)
	if !ok {
		return nil, false
	}
	obj, ok := v.(*Object)
	return obj, ok
}

// Equal reports whether a and b hold the same document, including key order.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Null:
		return true
	case Bool:
		return av == b.(Bool)
	case Number:
		return av == b.(Number)
	case String:
		return av == b.(String)
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Object:
		bv := b.(*Object)
		if av.Len() != bv.Len() {
			return false
		}
		for i, k := range av.Keys() {
			if bv.keys[i] != k {
				return false
			}
			if !Equal(av.values[k], bv.values[k]) {
				return false
			}
		}
		return true
	}
	return false
}

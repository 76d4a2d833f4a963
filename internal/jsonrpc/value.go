package jsonrpc

// Kind identifies the JSON type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is one node of a JSON-RPC message tree. The relay never
// interprets message semantics; it only walks trees and rewrites
// string leaves. Object members keep their arrival order and numbers
// keep their source lexeme so that a decoded message re-encodes byte
// for byte.
type Value struct {
	kind Kind
	b    bool
	lit  string
	str  string
	arr  []Value
	obj  []Member
}

// Member is a single object entry.
type Member struct {
	Key   string
	Value Value
}

// Null returns the JSON null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a JSON boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a JSON number from its source lexeme (e.g. "1", "2.5e3").
func Number(lit string) Value { return Value{kind: KindNumber, lit: lit} }

// String returns a JSON string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array returns a JSON array of the given elements.
func Array(elems ...Value) Value { return Value{kind: KindArray, arr: elems} }

// Object returns a JSON object with members in the given order.
func Object(members ...Member) Value { return Value{kind: KindObject, obj: members} }

// Kind reports the JSON type of v.
func (v Value) Kind() Kind { return v.kind }

// BoolValue returns the boolean payload. Valid only for KindBool.
func (v Value) BoolValue() bool { return v.b }

// NumberLit returns the number lexeme. Valid only for KindNumber.
func (v Value) NumberLit() string { return v.lit }

// StringValue returns the string payload. Valid only for KindString.
func (v Value) StringValue() string { return v.str }

// Elems returns the array elements. Valid only for KindArray.
func (v Value) Elems() []Value { return v.arr }

// Members returns the object members in arrival order. Valid only for
// KindObject.
func (v Value) Members() []Member { return v.obj }

// Field looks up an object member by key. The second return is false
// when v is not an object or the key is absent.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.obj {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Equal reports deep equality, including object member order.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == w.b
	case KindNumber:
		return v.lit == w.lit
	case KindString:
		return v.str == w.str
	case KindArray:
		if len(v.arr) != len(w.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(w.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(w.obj) {
			return false
		}
		for i := range v.obj {
			if v.obj[i].Key != w.obj[i].Key || !v.obj[i].Value.Equal(w.obj[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// Package manifest analyzes GameMaker resource manifests. Manifests are JSON
// in shape but hand-edited in practice, so parsing tolerates trailing commas
// and a byte-order mark before handing the result to encoding/json.
package manifest

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Kind discriminates the structural Value variant.
type Kind uint8

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
	default:
		return "null"
	}
}

// Value is a closed structural view of one manifest node. Accessors return
// (zero, false) on kind mismatch instead of panicking, which keeps analyzer
// code linear even over malformed manifests.
type Value struct {
	kind    Kind
	boolVal bool
	numVal  float64
	strVal  string
	arrVal  []Value
	objVal  map[string]Value
}

// Kind reports the node's kind.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) {
	return v.boolVal, v.kind == KindBool
}

// Number returns the numeric payload.
func (v Value) Number() (float64, bool) {
	return v.numVal, v.kind == KindNumber
}

// Str returns the string payload.
func (v Value) Str() (string, bool) {
	return v.strVal, v.kind == KindString
}

// Items returns the array elements, nil for non-arrays.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arrVal
}

// Field looks up an object member.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	child, ok := v.objVal[name]
	return child, ok
}

// Keys returns the object's member names in sorted order so structural walks
// are deterministic.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.objVal))
	for k := range v.objVal {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FieldStr is the common "string member or empty" lookup.
func (v Value) FieldStr(name string) string {
	child, ok := v.Field(name)
	if !ok {
		return ""
	}
	s, _ := child.Str()
	return s
}

// FieldInt returns an integer member, or -1 when absent or non-numeric.
func (v Value) FieldInt(name string) int {
	child, ok := v.Field(name)
	if !ok {
		return -1
	}
	n, ok := child.Number()
	if !ok {
		return -1
	}
	return int(n)
}

// Parse decodes manifest bytes into a structural Value. Trailing commas and
// a leading BOM are normalized away first; anything else malformed is an
// error for the caller to treat as a skipped manifest.
func Parse(data []byte) (Value, error) {
	var raw any
	if err := json.Unmarshal(normalize(data), &raw); err != nil {
		return Value{}, err
	}
	return fromAny(raw), nil
}

func fromAny(raw any) Value {
	switch x := raw.(type) {
	case bool:
		return Value{kind: KindBool, boolVal: x}
	case float64:
		return Value{kind: KindNumber, numVal: x}
	case string:
		return Value{kind: KindString, strVal: x}
	case []any:
		arr := make([]Value, len(x))
		for i, item := range x {
			arr[i] = fromAny(item)
		}
		return Value{kind: KindArray, arrVal: arr}
	case map[string]any:
		obj := make(map[string]Value, len(x))
		for k, item := range x {
			obj[k] = fromAny(item)
		}
		return Value{kind: KindObject, objVal: obj}
	default:
		return Value{kind: KindNull}
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// normalize strips a UTF-8 BOM and removes commas that directly precede a
// closing bracket, which GameMaker writes freely. String contents are left
// untouched.
func normalize(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)

	out := make([]byte, 0, len(data))
	inString := false
	escaped := false

	for i := 0; i < len(data); i++ {
		c := data[i]

		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
			out = append(out, c)
		case ',':
			// Drop the comma when the next significant byte closes a scope.
			j := i + 1
			for j < len(data) && isJSONSpace(data[j]) {
				j++
			}
			if j < len(data) && (data[j] == '}' || data[j] == ']') {
				continue
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

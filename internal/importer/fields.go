package importer

import (
	"bytes"
	"encoding/json"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Backend exports are not strictly typed: numbers show up where strings are
// expected, ids come as Mongo extended JSON, and lists are sometimes a
// single string. The types below accept those shapes.

// decodeAny decodes b keeping numbers as json.Number.
func decodeAny(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// scalarString converts a JSON scalar to NFC-normalized text.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return norm.NFC.String(x), true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

// flexString is a string that also accepts numbers and booleans. Null,
// objects and arrays decode to "".
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	v, err := decodeAny(b)
	if err != nil {
		return err
	}
	str, _ := scalarString(v)
	*s = flexString(str)
	return nil
}

// flexID is a question id given as a string, a number or {"$oid": "..."}.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	v, err := decodeAny(b)
	if err != nil {
		return err
	}
	if m, ok := v.(map[string]any); ok {
		v = m["$oid"]
	}
	str, _ := scalarString(v)
	*id = flexID(str)
	return nil
}

// stringList is a list of lines. A single string is a one-line list;
// non-scalar elements are dropped.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	v, err := decodeAny(b)
	if err != nil {
		return err
	}
	*l = nil
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			if str, ok := scalarString(item); ok {
				*l = append(*l, str)
			}
		}
	default:
		if str, ok := scalarString(x); ok {
			*l = stringList{str}
		}
	}
	return nil
}

// flexBool accepts booleans, numbers (non-zero is true) and strings. A
// string that is not a boolean literal is true when non-empty.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	v, err := decodeAny(b)
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*f = flexBool(x)
	case string:
		parsed, perr := strconv.ParseBool(x)
		*f = flexBool(parsed || (perr != nil && x != ""))
	case json.Number:
		n, _ := x.Float64()
		*f = n != 0
	case nil:
		*f = false
	default:
		*f = true
	}
	return nil
}

// list decodes a JSON array. Any other value decodes to an empty list.
type list[T any] []T

func (l *list[T]) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || t[0] != '[' {
		*l = nil
		return nil
	}
	var items []T
	if err := json.Unmarshal(t, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// object decodes a JSON object into T. Any other value leaves it unset.
type object[T any] struct {
	Value *T
}

func (o *object[T]) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || t[0] != '{' {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(t, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

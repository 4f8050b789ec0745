package model

import (
	"bytes"
	"encoding/json"
)

// unwrapString returns the contents of data when it is a JSON string holding
// an encoded document, so that sub-objects sent as strings decode like
// inline ones.
func unwrapString(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return data, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return bytes.TrimSpace([]byte(s)), nil
}

// decodeObject decodes data into v, accepting a string-encoded object.
func decodeObject(data []byte, v any) error {
	data, err := unwrapString(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// List is a sequence field that also accepts a single object, which is
// promoted to a one-element list.
type List[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (l *List[T]) UnmarshalJSON(data []byte) error {
	data, err := unwrapString(data)
	if err != nil {
		return err
	}
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*l = List[T]{item}
	return nil
}

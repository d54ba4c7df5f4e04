package normalizer

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/bean-lens/beanlens/internal/dictionary"
)

// FieldValue is the raw content of one record field: a single string or a
// list of strings.
type FieldValue struct {
	multi  bool
	values []string
}

// Single wraps one raw string
func Single(raw string) FieldValue {
	return FieldValue{values: []string{raw}}
}

// Multi wraps a list of raw strings
func Multi(raws ...string) FieldValue {
	return FieldValue{multi: true, values: slices.Clone(raws)}
}

// IsMulti reports whether the value was given as a list
func (v FieldValue) IsMulti() bool {
	return v.multi
}

// Values returns the raw strings
func (v FieldValue) Values() []string {
	return slices.Clone(v.values)
}

// MarshalJSON writes a string for Single and an array for Multi
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.multi {
		if v.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.values)
	}
	if len(v.values) == 0 {
		return json.Marshal("")
	}
	return json.Marshal(v.values[0])
}

// UnmarshalJSON accepts a string, an array or anything else. Non-string
// content becomes an empty raw string, which normalizes to unknown.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		raws := make([]string, 0, len(items))
		for _, item := range items {
			raws = append(raws, asString(item))
		}
		*v = FieldValue{multi: true, values: raws}
		return nil
	}
	*v = Single(asString(data))
	return nil
}

func asString(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ""
	}
	return s
}

// Record maps each domain to its raw field value
type Record map[dictionary.Domain]FieldValue

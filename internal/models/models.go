package models

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Origin is where the beans were grown
type Origin struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	Farm    string `json:"farm,omitempty"`
}

// BeanInfo is the structured record the extraction step reads off a coffee package
type BeanInfo struct {
	Roastery    string   `json:"roastery,omitempty"`
	Name        string   `json:"name,omitempty"`
	Origin      *Origin  `json:"origin,omitempty"`
	Variety     []string `json:"variety,omitempty"`
	Process     string   `json:"process,omitempty"`
	RoastLevel  string   `json:"roast_level,omitempty"` // "light", "medium", "dark", ...
	FlavorNotes []string `json:"flavor_notes,omitempty"`
	RoastDate   string   `json:"roast_date,omitempty"`
	Altitude    string   `json:"altitude,omitempty"`
}

// Country returns the origin country or an empty string
func (b BeanInfo) Country() string {
	if b.Origin == nil {
		return ""
	}
	return b.Origin.Country
}

// DecodeBeans reads bean records from r. The input is either a JSON array or
// a stream of JSON objects, one per line or concatenated.
func DecodeBeans(r io.Reader) ([]BeanInfo, error) {
	return DecodeStream[BeanInfo](r)
}

// DecodeStream decodes a JSON array of T or a stream of T values
func DecodeStream[T any](r io.Reader) ([]T, error) {
	reader := bufio.NewReader(r)
	first, err := peekNonSpace(reader)
	if err == io.EOF {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	decoder := json.NewDecoder(reader)
	if first == '[' {
		var values []T
		if err := decoder.Decode(&values); err != nil {
			return nil, fmt.Errorf("failed to decode record array: %w", err)
		}
		if values == nil {
			values = []T{}
		}
		return values, nil
	}

	values := []T{}
	for {
		var v T
		err := decoder.Decode(&v)
		if err == io.EOF {
			return values, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", len(values)+1, err)
		}
		values = append(values, v)
	}
}

func peekNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, r.UnreadByte()
	}
}

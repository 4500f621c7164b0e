package jsonutil

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrNotStringMap is returned when a payload is not a flat object of strings.
var ErrNotStringMap = errors.New("not a flat JSON object of strings")

// EncodeStringMap serializes m as a JSON object with sorted keys.
// A nil map encodes as "{}".
func EncodeStringMap(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode map: %w", err)
	}
	return string(b), nil
}

// DecodeStringMap parses raw as a flat JSON object whose values are all strings.
// Nested objects, arrays, numbers, booleans and null are rejected.
func DecodeStringMap(raw string) (map[string]string, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotStringMap, err)
	}
	if m == nil {
		return nil, ErrNotStringMap
	}
	return m, nil
}

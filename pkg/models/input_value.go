package models

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/ekaya-inc/ekaya-metastore/pkg/jsonutil"
)

// RedactedValue replaces sensitive values on display.
const RedactedValue = "********"

// InputValue is the value bound to an input: a string or a flat string map.
type InputValue struct {
	Type   InputType
	String string
	Map    map[string]string
}

// InputValues maps input ids to their values for one link or job.
type InputValues map[InputID]InputValue

func StringValue(s string) InputValue { return InputValue{Type: InputString, String: s} }

func MapValue(m map[string]string) InputValue { return InputValue{Type: InputMap, Map: m} }

// Serialize renders the value as stored in the value tables.
func (v InputValue) Serialize() (string, error) {
	switch v.Type {
	case InputString:
		return v.String, nil
	case InputMap:
		return jsonutil.EncodeStringMap(v.Map)
	}
	return "", fmt.Errorf("unknown input type %q", v.Type)
}

// ParseInputValue decodes a stored value according to the input type.
func ParseInputValue(t InputType, raw string) (InputValue, error) {
	switch t {
	case InputString:
		return StringValue(raw), nil
	case InputMap:
		m, err := jsonutil.DecodeStringMap(raw)
		if err != nil {
			return InputValue{}, err
		}
		return MapValue(m), nil
	}
	return InputValue{}, fmt.Errorf("unknown input type %q", t)
}

// Redacted returns a copy with the payload masked. Map keys are kept.
func (v InputValue) Redacted() InputValue {
	switch v.Type {
	case InputMap:
		m := make(map[string]string, len(v.Map))
		for k := range v.Map {
			m[k] = RedactedValue
		}
		return MapValue(m)
	default:
		return InputValue{Type: v.Type, String: RedactedValue}
	}
}

// MarshalJSON renders STRING values as JSON strings and MAP values as objects.
func (v InputValue) MarshalJSON() ([]byte, error) {
	if v.Type == InputMap {
		if v.Map == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Map)
	}
	return json.Marshal(v.String)
}

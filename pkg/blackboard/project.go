package blackboard

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProjectTo converts a stored payload to T. Payloads already of type T are returned
// unchanged; anything else goes through a JSON round trip. Object fields T does not
// declare fail the projection, as do trailing values. Conversion failures return
// ErrProjectionUnsupported, never a zero value.
func ProjectTo[T any](payload any) (T, error) {
	var zero T
	if payload == nil {
		return zero, fmt.Errorf("%w: record has no payload", ErrProjectionUnsupported)
	}
	if v, ok := payload.(T); ok {
		return v, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("%w: cannot encode %s: %v", ErrProjectionUnsupported, TypeDescriptorOf(payload), err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var out T
	if err := dec.Decode(&out); err != nil {
		return zero, fmt.Errorf("%w: %s to %T: %v", ErrProjectionUnsupported, TypeDescriptorOf(payload), zero, err)
	}
	if dec.More() {
		return zero, fmt.Errorf("%w: %s to %T: trailing data", ErrProjectionUnsupported, TypeDescriptorOf(payload), zero)
	}
	return out, nil
}

// PayloadKind returns the JSON kind of a payload: string, number, bool, object, array or null.
func PayloadKind(payload any) string {
	if payload == nil {
		return "null"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "unknown"
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "null"
	}
	switch data[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

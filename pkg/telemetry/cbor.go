// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// DecodeCBOR parses a snapshot carried in a binary frame. The schema and
// field names are the same as the JSON form.
func DecodeCBOR(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty CBOR payload", ErrMalformedSnapshot)
	}

	var raw interface{}
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode CBOR: %v", ErrMalformedSnapshot, err)
	}

	obj, ok := normalizeCBOR(raw).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected map, got %T", ErrMalformedSnapshot, raw)
	}

	return fromObject(obj)
}

// EncodeCBOR encodes an object tree (typically a map[string]interface{}
// shaped like the JSON snapshot) as CBOR
func EncodeCBOR(v interface{}) ([]byte, error) {
	data, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return data, nil
}

// normalizeCBOR converts map[interface{}]interface{} trees produced by the
// CBOR decoder into map[string]interface{} trees. Entries with non-string
// keys are dropped.
func normalizeCBOR(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for key, item := range val {
			k, ok := key.(string)
			if !ok {
				continue
			}
			out[k] = normalizeCBOR(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeCBOR(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeCBOR(item)
		}
		return out
	default:
		return v
	}
}

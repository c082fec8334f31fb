package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is fixed-width so encoded timestamps sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

const timeKey = "$time"

// EncodeFields serializes data to JSON, wrapping timestamps as
// {"$time": "..."} so they decode back to time.Time.
func EncodeFields(data Fields) ([]byte, error) {
	out := make(map[string]any, len(data))
	for k, v := range data {
		ev, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("docstore: field %q: %w", k, err)
		}
		out[k] = ev
	}
	return json.Marshal(out)
}

// EncodeValue serializes a single filter value the way EncodeFields does.
func EncodeValue(v any) ([]byte, error) {
	ev, err := encodeValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ev)
}

func encodeValue(v any) (any, error) {
	switch t := v.(type) {
	case serverTimestamp:
		return nil, fmt.Errorf("unresolved server timestamp")
	case time.Time:
		return map[string]string{timeKey: t.UTC().Format(TimeLayout)}, nil
	case *string:
		if t == nil {
			return nil, nil
		}
		return *t, nil
	}
	return v, nil
}

// DecodeFields is the inverse of EncodeFields.
func DecodeFields(raw []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("docstore: decoding document: %w", err)
	}

	out := make(Fields, len(data))
	for k, v := range data {
		out[k] = decodeValue(v)
	}
	return out, nil
}

func decodeValue(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	s, ok := m[timeKey].(string)
	if !ok {
		return v
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return v
	}
	return t
}

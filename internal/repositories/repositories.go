package repositories

import (
	"encoding/json"
	"fmt"
)

// marshalMeta serializes a metadata map to its JSON column form. A nil map
// persists as an empty object so round-trips stay lossless.
func marshalMeta(meta map[string]string) (string, error) {
	if meta == nil {
		meta = map[string]string{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(data), nil
}

// unmarshalMeta parses a JSON metadata column.
func unmarshalMeta(data string) (map[string]string, error) {
	meta := map[string]string{}
	if data == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return meta, nil
}

package ports

import (
	"encoding/json"
	"fmt"
)

// EncodeRecord converts a domain entity into its canonical stored shape via
// one JSON round trip. This is the single schema adapter at the store
// boundary: business logic never reads alternate document layouts.
func EncodeRecord(v any) (Record, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return record, nil
}

// DecodeRecord converts a stored record back into a domain entity.
func DecodeRecord(record Record, v any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

package storage

import (
	"encoding/json"
	"fmt"

	"github.com/ruteri/ccns/interfaces"
)

// encodeRecord serializes a record for backends that store opaque bytes.
func encodeRecord(rec interfaces.NameRecord) ([]byte, error) {
	return json.Marshal(rec)
}

// decodeRecord parses bytes written by encodeRecord and checks they belong to name.
func decodeRecord(name string, data []byte) (interfaces.NameRecord, error) {
	var rec interfaces.NameRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return interfaces.NameRecord{}, fmt.Errorf("failed to decode record: %w", err)
	}
	if rec.Name != name {
		// keccak256 collision or a tampered object
		return interfaces.NameRecord{}, fmt.Errorf("record key mismatch: stored %q, requested %q", rec.Name, name)
	}
	return rec, nil
}

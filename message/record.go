package message

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/c360/embargo/errors"
	"github.com/c360/embargo/pkg/timestamp"
)

// Record is the envelope carried on every embargo subject. The key is an
// opaque identifier stable across updates to the same logical record; the
// value is the record body, or null for a tombstone.
//
// A Record is immutable after creation. The body is held as raw JSON so
// fields the pipeline does not recognize pass through byte-for-byte.
type Record struct {
	ID        string          `json:"id"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Source    string          `json:"source,omitempty"`
	CreatedAt int64           `json:"created_at"`
}

// NewRecord creates a record envelope for the given key and body.
func NewRecord(key string, value json.RawMessage, source string) *Record {
	return &Record{
		ID:        uuid.New().String(),
		Key:       key,
		Value:     value,
		Source:    source,
		CreatedAt: timestamp.Now(),
	}
}

// Tombstone creates a null-valued record signaling deletion or suppression
// of the key.
func Tombstone(key, source string) *Record {
	return NewRecord(key, nil, source)
}

// jsonNull matches the literal null body of a tombstone value.
var jsonNull = []byte("null")

// IsTombstone reports whether the record carries no body.
func (r *Record) IsTombstone() bool {
	return len(r.Value) == 0 || bytes.Equal(bytes.TrimSpace(r.Value), jsonNull)
}

// WithValue returns a copy of the record carrying a different body. The
// copy keeps the key but gets a fresh ID and timestamp; it represents a
// new observation of the same logical record.
func (r *Record) WithValue(value json.RawMessage, source string) *Record {
	return NewRecord(r.Key, value, source)
}

// Encode serializes the record envelope to JSON.
func (r *Record) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Record", "Encode", "marshal envelope")
	}
	return data, nil
}

// ParseRecord deserializes and validates a record envelope.
func ParseRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.WrapInvalid(err, "Record", "ParseRecord", "unmarshal envelope")
	}
	if r.Key == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidRecord, "Record", "ParseRecord", "missing key")
	}
	return &r, nil
}

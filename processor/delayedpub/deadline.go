package delayedpub

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Deadline keys in the time index are zero-padded decimal epoch-millis so
// the store's lexicographic byte order equals numeric order. 20 digits
// cover the full int64 range.
const deadlineKeyWidth = 20

// encodeDeadline renders a deadline as a time-index key.
func encodeDeadline(t int64) string {
	return fmt.Sprintf("%0*d", deadlineKeyWidth, t)
}

// decodeDeadline parses a time-index key back into epoch-millis.
func decodeDeadline(key string) (int64, error) {
	t, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("delayedpub: bad deadline key %q: %w", key, err)
	}
	return t, nil
}

// encodeBucket serializes a time-index bucket: the record keys sharing a
// deadline, in registration order. Order matters; a set would lose it.
func encodeBucket(keys []string) ([]byte, error) {
	return json.Marshal(keys)
}

// decodeBucket deserializes a time-index bucket.
func decodeBucket(data []byte) ([]string, error) {
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("delayedpub: bad bucket payload: %w", err)
	}
	return keys, nil
}

// encodeKeyDeadline renders a deadline as a key-index value.
func encodeKeyDeadline(t int64) []byte {
	return []byte(strconv.FormatInt(t, 10))
}

// decodeKeyDeadline parses a key-index value.
func decodeKeyDeadline(data []byte) (int64, error) {
	t, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("delayedpub: bad key-index value %q: %w", data, err)
	}
	return t, nil
}

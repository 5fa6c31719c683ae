package message

import (
	"encoding/json"
)

// Normalize canonicalizes a record body so every structured document
// downstream carries a publishing object with a boolean private field.
//
// Rules:
//   - A null or unstructured body passes through unchanged; downstream
//     components treat it as "no publishing policy".
//   - An absent publishing object is inserted as {"private": false}.
//   - A publishing object lacking a boolean private field gets
//     "private": false inserted.
//   - Every other field, including publishing.until and unknown
//     siblings, is preserved verbatim.
//
// Bodies that are already canonical are returned with their original
// bytes untouched.
func Normalize(value json.RawMessage) json.RawMessage {
	if len(value) == 0 {
		return value
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(value, &doc); err != nil || doc == nil {
		// Not a structured document; pass through
		return value
	}

	pubRaw, hasPublishing := doc["publishing"]
	if hasPublishing {
		var pub map[string]json.RawMessage
		if err := json.Unmarshal(pubRaw, &pub); err != nil || pub == nil {
			// publishing exists but is not an object; treat as opaque
			return value
		}

		if privRaw, ok := pub["private"]; ok {
			var b *bool
			if err := json.Unmarshal(privRaw, &b); err == nil && b != nil {
				// Already canonical
				return value
			}
		}

		pub["private"] = json.RawMessage("false")
		merged, err := json.Marshal(pub)
		if err != nil {
			return value
		}
		doc["publishing"] = merged
	} else {
		doc["publishing"] = json.RawMessage(`{"private":false}`)
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return value
	}
	return normalized
}

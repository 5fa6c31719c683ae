// Package message defines the record envelope flowing through the embargo
// pipeline and the publishing policy read out of record bodies.
//
// Every subject carries the same JSON envelope:
//
//	{"id": "<uuid>", "key": "<opaque>", "value": {...} | null, "created_at": <ms>}
//
// A null value is the tombstone marker. Record bodies are opaque JSON
// except for the recognized publishing object:
//
//	{"publishing": {"private": true, "until": "2026-01-01T00:00:00Z"}, ...}
//
// Normalize guarantees the publishing object exists with a boolean
// private field on every structured body; PolicyOf reads the policy back
// out without ever failing.
package message

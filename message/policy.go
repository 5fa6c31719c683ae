package message

import (
	"encoding/json"

	"github.com/c360/embargo/pkg/timestamp"
)

// Policy is the publishing policy read out of a record body. The zero
// value (public, no deadline) is what unstructured or policy-free
// bodies yield.
type Policy struct {
	Private bool   // publishing.private
	Until   string // publishing.until, verbatim; empty when absent
}

// publishingView mirrors the recognized fields of the publishing object.
// Unknown siblings are ignored here and preserved by the envelope.
type publishingView struct {
	Private bool   `json:"private"`
	Until   string `json:"until"`
}

type bodyView struct {
	Publishing json.RawMessage `json:"publishing"`
}

// PolicyOf extracts the publishing policy from a record body. It never
// fails: a null, unstructured, or malformed body reads as "not private,
// no deadline".
func PolicyOf(value json.RawMessage) Policy {
	if len(value) == 0 {
		return Policy{}
	}

	var body bodyView
	if err := json.Unmarshal(value, &body); err != nil {
		return Policy{}
	}
	if len(body.Publishing) == 0 {
		return Policy{}
	}

	var pub publishingView
	if err := json.Unmarshal(body.Publishing, &pub); err != nil {
		return Policy{}
	}

	return Policy{Private: pub.Private, Until: pub.Until}
}

// Deadline parses the until instant into Unix milliseconds. A missing or
// malformed instant returns 0: no deadline.
func (p Policy) Deadline() int64 {
	if p.Until == "" {
		return 0
	}
	ts, err := timestamp.ParseInstant(p.Until)
	if err != nil {
		return 0
	}
	return ts
}

// Suppressed reports whether the policy hides the record at instant now
// (Unix milliseconds). A private record is suppressed until its deadline
// passes; with no parseable deadline it stays suppressed until a policy
// change. Privacy lapses the moment now reaches the deadline.
func (p Policy) Suppressed(now int64) bool {
	if !p.Private {
		return false
	}
	deadline := p.Deadline()
	return deadline == 0 || deadline > now
}

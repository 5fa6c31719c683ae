package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "missing publishing object inserted",
			input: `{"title":"hello"}`,
			want:  `{"title":"hello","publishing":{"private":false}}`,
		},
		{
			name:  "publishing without private gets default",
			input: `{"publishing":{"until":"2030-01-01T00:00:00Z"}}`,
			want:  `{"publishing":{"private":false,"until":"2030-01-01T00:00:00Z"}}`,
		},
		{
			name:  "empty document",
			input: `{}`,
			want:  `{"publishing":{"private":false}}`,
		},
		{
			name:  "already canonical private true",
			input: `{"publishing":{"private":true}}`,
			want:  `{"publishing":{"private":true}}`,
		},
		{
			name:  "already canonical private false with siblings",
			input: `{"publishing":{"private":false},"a":1,"b":[1,2]}`,
			want:  `{"publishing":{"private":false},"a":1,"b":[1,2]}`,
		},
		{
			name:  "unknown publishing siblings preserved",
			input: `{"publishing":{"until":"2030-01-01T00:00:00Z","channel":"web"}}`,
			want:  `{"publishing":{"private":false,"until":"2030-01-01T00:00:00Z","channel":"web"}}`,
		},
		{
			name:  "non-boolean private replaced",
			input: `{"publishing":{"private":"yes"}}`,
			want:  `{"publishing":{"private":false}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(json.RawMessage(tt.input))
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestNormalize_PassThroughUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "null body", input: "null"},
		{name: "array body", input: `[1,2,3]`},
		{name: "string body", input: `"scalar"`},
		{name: "number body", input: `42`},
		{name: "malformed body", input: `{"unterminated`},
		{name: "publishing is not an object", input: `{"publishing":"tomorrow"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(json.RawMessage(tt.input))
			assert.Equal(t, tt.input, string(got), "bytes must pass through untouched")
		})
	}
}

func TestNormalize_EmptyValue(t *testing.T) {
	assert.Empty(t, Normalize(nil))
}

func TestNormalize_CanonicalBodyKeepsExactBytes(t *testing.T) {
	// Field order and whitespace of an already-canonical body must survive
	input := `{"z": 1, "publishing": {"private": true, "until": "2030-01-01T00:00:00Z"}, "a": 2}`
	got := Normalize(json.RawMessage(input))
	assert.Equal(t, input, string(got))
}

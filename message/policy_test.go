package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyOf(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Policy
	}{
		{
			name: "private with until",
			body: `{"publishing":{"private":true,"until":"2030-01-01T00:00:00Z"}}`,
			want: Policy{Private: true, Until: "2030-01-01T00:00:00Z"},
		},
		{
			name: "private without until",
			body: `{"publishing":{"private":true}}`,
			want: Policy{Private: true},
		},
		{
			name: "public",
			body: `{"publishing":{"private":false}}`,
			want: Policy{},
		},
		{
			name: "no publishing object",
			body: `{"title":"x"}`,
			want: Policy{},
		},
		{
			name: "null body",
			body: `null`,
			want: Policy{},
		},
		{
			name: "unstructured body",
			body: `[1,2]`,
			want: Policy{},
		},
		{
			name: "malformed body",
			body: `{"bad`,
			want: Policy{},
		},
		{
			name: "publishing not an object",
			body: `{"publishing":7}`,
			want: Policy{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PolicyOf(json.RawMessage(tt.body)))
		})
	}
}

func TestPolicyOf_EmptyValue(t *testing.T) {
	assert.Equal(t, Policy{}, PolicyOf(nil))
}

func TestPolicySuppressed(t *testing.T) {
	now := int64(1673785845000) // 2023-01-15T12:30:45Z

	tests := []struct {
		name string
		p    Policy
		want bool
	}{
		{name: "public never suppressed", p: Policy{}, want: false},
		{name: "private without deadline", p: Policy{Private: true}, want: true},
		{
			name: "private with future deadline",
			p:    Policy{Private: true, Until: "2030-01-01T00:00:00Z"},
			want: true,
		},
		{
			name: "private with elapsed deadline",
			p:    Policy{Private: true, Until: "2020-01-01T00:00:00Z"},
			want: false,
		},
		{
			name: "private with deadline exactly now",
			p:    Policy{Private: true, Until: "2023-01-15T12:30:45Z"},
			want: false,
		},
		{
			name: "private with malformed deadline",
			p:    Policy{Private: true, Until: "whenever"},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Suppressed(now))
		})
	}
}

func TestPolicyDeadline(t *testing.T) {
	p := Policy{Private: true, Until: "2023-01-15T12:30:45Z"}
	assert.Equal(t, int64(1673785845000), p.Deadline())

	assert.Equal(t, int64(0), Policy{}.Deadline())
	assert.Equal(t, int64(0), Policy{Until: "not-a-time"}.Deadline())
}

package emitter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/embargo/component"
	"github.com/c360/embargo/message"
)

func TestMask(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli()

	tests := []struct {
		name          string
		body          string
		wantTombstone bool
	}{
		{
			name:          "private record is masked",
			body:          `{"publishing":{"private":true},"secret":42}`,
			wantTombstone: true,
		},
		{
			name:          "private with future until is masked",
			body:          `{"publishing":{"private":true,"until":"2030-01-01T00:00:00Z"}}`,
			wantTombstone: true,
		},
		{
			name:          "private with elapsed until is exposed",
			body:          `{"publishing":{"private":true,"until":"2020-01-01T00:00:00Z"}}`,
			wantTombstone: false,
		},
		{
			name:          "private with malformed until stays masked",
			body:          `{"publishing":{"private":true,"until":"someday"}}`,
			wantTombstone: true,
		},
		{
			name:          "public record passes through",
			body:          `{"publishing":{"private":false},"x":1}`,
			wantTombstone: false,
		},
		{
			name:          "body without policy passes through",
			body:          `{"x":1}`,
			wantTombstone: false,
		},
		{
			name:          "unstructured body passes through",
			body:          `[1,2,3]`,
			wantTombstone: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := message.NewRecord("A", json.RawMessage(tt.body), "test")
			out := Mask(rec, now)

			assert.Equal(t, "A", out.Key, "key must survive masking")
			if tt.wantTombstone {
				assert.True(t, out.IsTombstone())
			} else {
				assert.Equal(t, tt.body, string(out.Value), "value must pass through unchanged")
			}
		})
	}
}

func TestMask_TombstonePassthrough(t *testing.T) {
	rec := message.Tombstone("A", "test")
	out := Mask(rec, time.Now().UnixMilli())

	assert.True(t, out.IsTombstone())
	assert.Equal(t, rec, out)
}

func TestMask_DoesNotMutateInput(t *testing.T) {
	body := json.RawMessage(`{"publishing":{"private":true}}`)
	rec := message.NewRecord("A", body, "test")

	_ = Mask(rec, time.Now().UnixMilli())

	assert.JSONEq(t, string(body), string(rec.Value), "input record must stay intact")
}

func newTestProcessor(t *testing.T) (*Processor, *[][]byte) {
	t.Helper()

	proc, err := NewProcessor(nil, component.Dependencies{})
	require.NoError(t, err)
	p := proc.(*Processor)

	published := &[][]byte{}
	p.publish = func(_ context.Context, subject string, data []byte) error {
		assert.Equal(t, "embargo.records.out", subject)
		*published = append(*published, data)
		return nil
	}
	return p, published
}

func emit(t *testing.T, p *Processor, key, body string) {
	t.Helper()
	var value json.RawMessage
	if body != "" {
		value = json.RawMessage(body)
	}
	data, err := message.NewRecord(key, value, "test").Encode()
	require.NoError(t, err)
	p.handleMessage(context.Background(), data)
}

func TestHandleMessage_PublicRecordEmitted(t *testing.T) {
	p, published := newTestProcessor(t)

	emit(t, p, "A", `{"publishing":{"private":false},"v":1}`)

	require.Len(t, *published, 1)
	out, err := message.ParseRecord((*published)[0])
	require.NoError(t, err)
	assert.Equal(t, "A", out.Key)
	assert.JSONEq(t, `{"publishing":{"private":false},"v":1}`, string(out.Value))
}

func TestHandleMessage_PrivateRecordSuppressed(t *testing.T) {
	p, published := newTestProcessor(t)

	emit(t, p, "A", `{"publishing":{"private":true},"v":1}`)

	require.Len(t, *published, 1)
	out, err := message.ParseRecord((*published)[0])
	require.NoError(t, err)
	assert.Equal(t, "A", out.Key)
	assert.True(t, out.IsTombstone(), "private value must never reach the output")
}

func TestHandleMessage_TombstoneForwarded(t *testing.T) {
	p, published := newTestProcessor(t)

	emit(t, p, "A", "")

	require.Len(t, *published, 1)
	out, err := message.ParseRecord((*published)[0])
	require.NoError(t, err)
	assert.True(t, out.IsTombstone())
}

func TestHandleMessage_DropsUnparseable(t *testing.T) {
	p, published := newTestProcessor(t)

	p.handleMessage(context.Background(), []byte("junk"))

	assert.Empty(t, *published)
	assert.Equal(t, 1, p.Health().ErrorCount)
}

func TestNewProcessor_Defaults(t *testing.T) {
	proc, err := NewProcessor(nil, component.Dependencies{})
	require.NoError(t, err)

	assert.Equal(t, "publishing-emitter", proc.Meta().Name)
	assert.Equal(t, "embargo.records.changes", proc.InputPorts()[0].Subject)
	assert.Equal(t, "embargo.records.out", proc.OutputPorts()[0].Subject)
}

func TestStop_BeforeStartIsNoop(t *testing.T) {
	proc, err := NewProcessor(nil, component.Dependencies{})
	require.NoError(t, err)

	lc, ok := component.AsLifecycleComponent(proc)
	require.True(t, ok)
	assert.NoError(t, lc.Stop(time.Second))
}

func TestRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	_, ok := registry.Lookup("publishing_emitter")
	assert.True(t, ok)
}

package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/embargo/component"
)

func TestNewOutput_Defaults(t *testing.T) {
	out, err := NewOutput(nil, component.Dependencies{})
	require.NoError(t, err)

	meta := out.Meta()
	assert.Equal(t, "websocket-output", meta.Name)
	assert.Equal(t, "output", meta.Type)

	w := out.(*Output)
	assert.Equal(t, ":8099", w.addr)
	assert.Equal(t, "/ws", w.path)
	assert.Equal(t, "embargo.records.out", out.InputPorts()[0].Subject)
	assert.Empty(t, out.OutputPorts())
}

func TestNewOutput_CustomConfig(t *testing.T) {
	raw, err := json.Marshal(Config{Addr: ":9100", Path: "/feed"})
	require.NoError(t, err)

	out, err := NewOutput(raw, component.Dependencies{})
	require.NoError(t, err)

	w := out.(*Output)
	assert.Equal(t, ":9100", w.addr)
	assert.Equal(t, "/feed", w.path)
}

func TestNewOutput_InvalidConfig(t *testing.T) {
	_, err := NewOutput(json.RawMessage(`{"addr": 80}`), component.Dependencies{})
	assert.Error(t, err)
}

func TestStart_RequiresNATSClient(t *testing.T) {
	out, err := NewOutput(nil, component.Dependencies{})
	require.NoError(t, err)

	lc, ok := component.AsLifecycleComponent(out)
	require.True(t, ok)

	require.NoError(t, lc.Initialize())
	assert.Error(t, lc.Start(context.Background()))
}

func TestStop_BeforeStartIsNoop(t *testing.T) {
	out, err := NewOutput(nil, component.Dependencies{})
	require.NoError(t, err)

	lc, _ := component.AsLifecycleComponent(out)
	assert.NoError(t, lc.Stop(time.Second))
}

func TestHandleMessage_NoClientsIsNoop(t *testing.T) {
	out, err := NewOutput(nil, component.Dependencies{})
	require.NoError(t, err)

	w := out.(*Output)
	w.handleMessage(context.Background(), []byte(`{"key":"A","value":null}`))
	assert.Zero(t, w.ClientCount())
}

func TestRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	_, ok := registry.Lookup("websocket_output")
	assert.True(t, ok)
}

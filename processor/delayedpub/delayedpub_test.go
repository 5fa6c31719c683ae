package delayedpub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/embargo/component"
)

func TestNewProcessor_Defaults(t *testing.T) {
	proc, err := NewProcessor(nil, component.Dependencies{})
	require.NoError(t, err)

	p := proc.(*Processor)
	assert.Equal(t, "delayed-publisher", p.Meta().Name)
	assert.Equal(t, DefaultScanInterval, p.scanInterval)
	assert.Equal(t, "embargo-key-index", p.config.KeyStoreName)
	assert.Equal(t, "embargo-time-index", p.config.TimeStoreName)
	assert.Equal(t, "embargo-lookup", p.config.LookupStoreName)

	assert.Equal(t, "embargo.records.changes", p.InputPorts()[0].Subject)
	assert.Equal(t, "embargo.records.in", p.OutputPorts()[0].Subject)
}

func TestNewProcessor_CustomConfig(t *testing.T) {
	raw := json.RawMessage(`{
		"keyStoreName": "custom-keys",
		"timeStoreName": "custom-times",
		"lookupStoreName": "custom-lookup",
		"scanIntervalMs": 100
	}`)

	proc, err := NewProcessor(raw, component.Dependencies{})
	require.NoError(t, err)

	p := proc.(*Processor)
	assert.Equal(t, "custom-keys", p.config.KeyStoreName)
	assert.Equal(t, "custom-times", p.config.TimeStoreName)
	assert.Equal(t, "custom-lookup", p.config.LookupStoreName)
	assert.Equal(t, 100*time.Millisecond, p.scanInterval)
}

func TestNewProcessor_InvalidConfig(t *testing.T) {
	_, err := NewProcessor(json.RawMessage(`{"scanIntervalMs": "fast"}`), component.Dependencies{})
	assert.Error(t, err)
}

func TestInitialize_InMemoryWithoutDataDir(t *testing.T) {
	proc, err := NewProcessor(nil, component.Dependencies{})
	require.NoError(t, err)

	p := proc.(*Processor)
	require.NoError(t, p.Initialize())
	assert.NotNil(t, p.keyStore)
	assert.NotNil(t, p.timeStore)
}

func TestInitialize_PebbleWithDataDir(t *testing.T) {
	raw, err := json.Marshal(Config{DataDir: t.TempDir()})
	require.NoError(t, err)

	proc, err := NewProcessor(raw, component.Dependencies{})
	require.NoError(t, err)

	p := proc.(*Processor)
	require.NoError(t, p.Initialize())
	require.NoError(t, p.keyStore.Close())
	require.NoError(t, p.timeStore.Close())
}

func TestStart_RequiresInitialize(t *testing.T) {
	proc, err := NewProcessor(nil, component.Dependencies{})
	require.NoError(t, err)

	lc, ok := component.AsLifecycleComponent(proc)
	require.True(t, ok)

	err = lc.Start(context.Background())
	assert.Error(t, err)
}

func TestStop_BeforeStartIsNoop(t *testing.T) {
	proc, err := NewProcessor(nil, component.Dependencies{})
	require.NoError(t, err)

	lc, _ := component.AsLifecycleComponent(proc)
	assert.NoError(t, lc.Stop(time.Second))
}

func TestRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	_, ok := registry.Lookup("delayed_publisher")
	assert.True(t, ok)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/embargo/component"
	"github.com/c360/embargo/config"
)

func TestNew_BuildsPipeline(t *testing.T) {
	svc, err := New(config.Default(), component.Dependencies{})
	require.NoError(t, err)

	comps := svc.Components()
	require.Len(t, comps, 4, "websocket disabled by default")

	// Downstream-first start order
	names := make([]string, len(comps))
	for i, c := range comps {
		names[i] = c.Meta().Name
	}
	assert.Equal(t, []string{
		"publishing-emitter",
		"delayed-publisher",
		"lookup-table",
		"normalizer",
	}, names)
}

func TestNew_WithWebsocketEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Websocket.Enabled = true

	svc, err := New(cfg, component.Dependencies{})
	require.NoError(t, err)

	comps := svc.Components()
	require.Len(t, comps, 5)
	assert.Equal(t, "websocket-output", comps[0].Meta().Name)
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil, component.Dependencies{})
	assert.Error(t, err)
}

func TestNew_CustomSubjectsPropagate(t *testing.T) {
	cfg := config.Default()
	cfg.Subjects.Input = "custom.in"
	cfg.Subjects.Output = "custom.out"

	svc, err := New(cfg, component.Dependencies{})
	require.NoError(t, err)

	comps := svc.Components()

	// The normalizer (last in start order) reads the custom input subject
	norm := comps[len(comps)-1]
	assert.Equal(t, "custom.in", norm.InputPorts()[0].Subject)

	// The emitter (first) writes the custom output subject
	assert.Equal(t, "custom.out", comps[0].OutputPorts()[0].Subject)

	// The delayed publisher loops back into the custom input subject
	assert.Equal(t, "custom.in", comps[1].OutputPorts()[0].Subject)
}

func TestStart_RequiresNATSClient(t *testing.T) {
	svc, err := New(config.Default(), component.Dependencies{})
	require.NoError(t, err)

	assert.Error(t, svc.Start(context.Background()))
}

func TestStop_WithoutStartIsClean(t *testing.T) {
	svc, err := New(config.Default(), component.Dependencies{})
	require.NoError(t, err)

	assert.NoError(t, svc.Stop(time.Second))
}

func TestHealthy_FalseWhenNotStarted(t *testing.T) {
	svc, err := New(config.Default(), component.Dependencies{})
	require.NoError(t, err)

	assert.False(t, svc.Healthy())
}

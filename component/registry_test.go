package component

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubComponent is a minimal Discoverable for registry tests
type stubComponent struct {
	name string
}

func (s *stubComponent) Meta() Metadata {
	return Metadata{Name: s.name, Type: "processor"}
}

func (s *stubComponent) InputPorts() []Port  { return nil }
func (s *stubComponent) OutputPorts() []Port { return nil }

func (s *stubComponent) Health() HealthStatus {
	return HealthStatus{Healthy: true, LastCheck: time.Now()}
}

func stubFactory(_ json.RawMessage, _ Dependencies) (Discoverable, error) {
	return &stubComponent{name: "stub"}, nil
}

func TestRegistry_RegisterAndCreate(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Registration{
		Name:    "stub",
		Factory: stubFactory,
		Type:    "processor",
	})
	require.NoError(t, err)

	comp, err := r.Create("stub", nil, Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, "stub", comp.Meta().Name)
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Registration{Name: "stub", Factory: stubFactory}))

	err := r.Register(Registration{Name: "stub", Factory: stubFactory})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_MissingNameOrFactory(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(Registration{Factory: stubFactory}))
	assert.Error(t, r.Register(Registration{Name: "no-factory"}))
}

func TestRegistry_CreateUnknownType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create("missing", nil, Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown component type")
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Registration{Name: "zeta", Factory: stubFactory}))
	require.NoError(t, r.Register(Registration{Name: "alpha", Factory: stubFactory}))

	assert.Equal(t, []string{"alpha", "zeta"}, r.List())
}

func TestPortConfig_Subjects(t *testing.T) {
	pc := &PortConfig{
		Inputs: []PortDefinition{
			{Name: "in", Type: "nats", Subject: "embargo.records.in"},
			{Name: "store", Type: "kv", Bucket: "embargo-lookup"},
		},
		Outputs: []PortDefinition{
			{Name: "out", Type: "nats", Subject: "embargo.records.out"},
			{Name: "blank", Type: "nats"},
		},
	}

	assert.Equal(t, []string{"embargo.records.in"}, pc.InputSubjects())
	assert.Equal(t, []string{"embargo.records.out"}, pc.OutputSubjects())

	var nilPC *PortConfig
	assert.Nil(t, nilPC.InputSubjects())
}

func TestAsLifecycleComponent(t *testing.T) {
	_, ok := AsLifecycleComponent(&stubComponent{})
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "initialized", StateInitialized.String())
	assert.Equal(t, "started", StateStarted.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}

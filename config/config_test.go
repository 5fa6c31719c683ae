package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "embargo.records.in", cfg.Subjects.Input)
	assert.Equal(t, "embargo-lookup", cfg.Stores.LookupStoreName)
	assert.Equal(t, 500*time.Millisecond, cfg.ScanInterval())
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Subjects, cfg.Subjects)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"nats": {"url": "nats://prod:4222"},
		"subjects": {
			"input": "records.in",
			"normalized": "records.normalized",
			"changes": "records.changes",
			"output": "records.out"
		},
		"stores": {
			"lookupStoreName": "lookup",
			"keyStoreName": "keys",
			"timeStoreName": "times",
			"dataDir": "/tmp/embargo"
		},
		"scanIntervalMs": 250
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nats://prod:4222", cfg.NATS.URL)
	assert.Equal(t, "records.in", cfg.Subjects.Input)
	assert.Equal(t, "/tmp/embargo", cfg.Stores.DataDir)
	assert.Equal(t, 250*time.Millisecond, cfg.ScanInterval())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.json")
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EMBARGO_NATS_URL", "nats://env:4222")
	t.Setenv("EMBARGO_DATA_DIR", "/data/embargo")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.Equal(t, "/data/embargo", cfg.Stores.DataDir)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing nats url", mutate: func(c *Config) { c.NATS.URL = "" }},
		{name: "missing input subject", mutate: func(c *Config) { c.Subjects.Input = "" }},
		{name: "missing output subject", mutate: func(c *Config) { c.Subjects.Output = "" }},
		{
			name:   "duplicate subjects",
			mutate: func(c *Config) { c.Subjects.Output = c.Subjects.Input },
		},
		{name: "missing lookup store", mutate: func(c *Config) { c.Stores.LookupStoreName = "" }},
		{name: "missing key store", mutate: func(c *Config) { c.Stores.KeyStoreName = "" }},
		{name: "missing time store", mutate: func(c *Config) { c.Stores.TimeStoreName = "" }},
		{name: "negative scan interval", mutate: func(c *Config) { c.ScanIntervalMs = -1 }},
		{
			name: "websocket enabled without addr",
			mutate: func(c *Config) {
				c.Websocket.Enabled = true
				c.Websocket.Addr = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestScanInterval_ZeroFallsBack(t *testing.T) {
	cfg := Default()
	cfg.ScanIntervalMs = 0
	assert.Equal(t, 500*time.Millisecond, cfg.ScanInterval())
}

func TestClone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()

	clone.NATS.URL = "nats://other:4222"
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)

	var nilCfg *Config
	assert.NotNil(t, nilCfg.Clone())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// clearEnv blanks every variable credtool reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TEMPUNIT_CREDENTIALS", "MQTT_BROKER", "MQTT_SERVER_NAME", "DEBUG",
		"CONNECT_TIMEOUT", "PROBE_ATTEMPTS", "INITIAL_RECONNECT_DELAY", "MAX_RECONNECT_DELAY",
	} {
		t.Setenv(key, "")
	}
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	p := writeEnvFile(t, `# comment
MQTT_BROKER="broker.local:8883"
export MQTT_SERVER_NAME='broker'
not a pair
CONNECT_TIMEOUT = 7
`)

	loader := NewConfigLoader()
	require.NoError(t, loader.LoadEnvFile(p))

	assert.Equal(t, "broker.local:8883", loader.GetString("MQTT_BROKER", ""))
	assert.Equal(t, "broker", loader.GetString("MQTT_SERVER_NAME", ""))
	n, err := loader.GetInt("CONNECT_TIMEOUT", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "fallback", loader.GetString("UNSET_KEY", "fallback"))

	t.Setenv("MQTT_BROKER", "env.local:1883")
	assert.Equal(t, "env.local:1883", loader.GetString("MQTT_BROKER", ""), "environment wins over file")

	assert.NoError(t, NewConfigLoader().LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoaderGetters(t *testing.T) {
	clearEnv(t)
	loader := NewConfigLoader()

	t.Setenv("CONNECT_TIMEOUT", "abc")
	_, err := loader.GetInt("CONNECT_TIMEOUT", 1)
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "CONNECT_TIMEOUT", verr.Field)

	t.Setenv("CONNECT_TIMEOUT", "500")
	_, err = loader.GetIntInRange("CONNECT_TIMEOUT", 1, 1, 300)
	assert.ErrorContains(t, err, "must be between 1 and 300")

	for value, want := range map[string]bool{"yes": true, "off": false, "1": true, "false": false} {
		t.Setenv("DEBUG", value)
		got, err := loader.GetBool("DEBUG", !want)
		require.NoError(t, err, value)
		assert.Equal(t, want, got, value)
	}
	t.Setenv("DEBUG", "maybe")
	_, err = loader.GetBool("DEBUG", false)
	assert.Error(t, err)

	t.Setenv("PROBE_WAIT", "90")
	d, err := loader.GetDuration("PROBE_WAIT", 0)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
	t.Setenv("PROBE_WAIT", "250ms")
	d, err = loader.GetDuration("PROBE_WAIT", 0)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
	t.Setenv("PROBE_WAIT", "soon")
	_, err = loader.GetDuration("PROBE_WAIT", 0)
	assert.Error(t, err)
}

func TestValidateNetworkAddress(t *testing.T) {
	loader := NewConfigLoader()
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"localhost:8883", false},
		{"[::1]:8883", false},
		{"", true},
		{"localhost", true},
		{":8883", true},
		{"localhost:0", true},
		{"localhost:70000", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := loader.ValidateNetworkAddress("MQTT_BROKER", tt.addr)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestLoadCredtoolConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		cfg, err := LoadCredtoolConfig(filepath.Join(t.TempDir(), ".env"), zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, DefaultCredtoolConfig(), cfg)
		assert.Equal(t, "localhost", cfg.ResolvedServerName())
		assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
		initial, max := cfg.ReconnectDelays()
		assert.Equal(t, time.Second, initial)
		assert.Equal(t, 30*time.Second, max)
	})

	t.Run("env file and environment", func(t *testing.T) {
		clearEnv(t)
		creds := filepath.Join(t.TempDir(), "credentials.yaml")
		require.NoError(t, os.WriteFile(creds, []byte("fingerprint: \"\"\n"), 0o600))

		p := writeEnvFile(t, "MQTT_BROKER=broker.local:8883\nPROBE_ATTEMPTS=5\nCONNECT_TIMEOUT=1500ms\nTEMPUNIT_CREDENTIALS="+creds+"\n")
		t.Setenv("MQTT_SERVER_NAME", "mqtt.example.com")
		t.Setenv("DEBUG", "true")

		cfg, err := LoadCredtoolConfig(p, nil)
		require.NoError(t, err)
		assert.Equal(t, "broker.local:8883", cfg.BrokerAddr)
		assert.Equal(t, "mqtt.example.com", cfg.ResolvedServerName())
		assert.Equal(t, 5, cfg.ProbeAttempts)
		assert.Equal(t, 1500*time.Millisecond, cfg.ConnectTimeout)
		assert.Equal(t, creds, cfg.CredentialsFile)
		assert.True(t, cfg.Debug)
	})

	t.Run("all problems reported", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PROBE_ATTEMPTS", "0")
		t.Setenv("CONNECT_TIMEOUT", "10m")
		t.Setenv("INITIAL_RECONNECT_DELAY", "60")
		t.Setenv("MAX_RECONNECT_DELAY", "10")

		_, err := LoadCredtoolConfig(filepath.Join(t.TempDir(), ".env"), zap.NewNop())
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "PROBE_ATTEMPTS")
		assert.Contains(t, msg, "CONNECT_TIMEOUT=10m0s")
		assert.Contains(t, msg, "initial reconnect delay cannot be greater")
	})

	t.Run("overridable values are not checked at load", func(t *testing.T) {
		clearEnv(t)
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		t.Setenv("MQTT_BROKER", "no-port")
		t.Setenv("TEMPUNIT_CREDENTIALS", missing)

		cfg, err := LoadCredtoolConfig(filepath.Join(t.TempDir(), ".env"), zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "no-port", cfg.BrokerAddr)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker=no-port")
		assert.Contains(t, err.Error(), "credentials="+missing)

		cfg.BrokerAddr = "broker.local:8883"
		cfg.CredentialsFile = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("loader messages reach the logger", func(t *testing.T) {
		clearEnv(t)
		core, logs := observer.New(zap.DebugLevel)

		_, err := LoadCredtoolConfig(filepath.Join(t.TempDir(), ".env"), zap.New(core))
		require.NoError(t, err)
		assert.Equal(t, 1, logs.FilterMessage("Environment file not found").Len())
	})
}

func TestCredtoolConfigValidate(t *testing.T) {
	cfg := DefaultCredtoolConfig()
	assert.NoError(t, cfg.Validate())

	cfg.ConnectTimeout = 250 * time.Millisecond
	assert.NoError(t, cfg.Validate(), "sub-second timeouts are kept")

	cfg.BrokerAddr = "broker"
	cfg.ConnectTimeout = 0
	cfg.ProbeAttempts = 100
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker")
	assert.Contains(t, err.Error(), "timeout")
	assert.Contains(t, err.Error(), "attempts")

	cfg = DefaultCredtoolConfig()
	cfg.BrokerAddr = ""
	assert.ErrorContains(t, cfg.Validate(), "broker=: is required")
}

func TestValidateRequired(t *testing.T) {
	loader := NewConfigLoader()
	assert.NoError(t, loader.ValidateRequired("out", "credentials.yaml"))

	err := loader.ValidateRequired("out", "")
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "out", verr.Field)
	assert.Equal(t, "is required and cannot be empty", verr.Message)
}

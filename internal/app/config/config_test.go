package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
serial:
  device: /dev/ttyACM0
sink:
  conn_string: postgres://edge@db/soil
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"moisture_value_a0", "moisture_value_a1"}, cfg.Channels)
	assert.Equal(t, 2, cfg.Serial.Channels)
	assert.Equal(t, "./data/readings.csv", cfg.Journal.Path)
	assert.Equal(t, "./data/unsent.csv", cfg.Spool.Path)
	assert.Equal(t, "readings", cfg.Sink.Table)
	assert.Equal(t, time.Second, cfg.Sink.AppendPause)
	assert.Equal(t, "8.8.8.8:53", cfg.Monitor.ProbeAddr)
	assert.Equal(t, time.Minute, cfg.Monitor.CheckInterval)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
channels: [soil_a, soil_b, soil_c]
serial:
  device: /dev/ttyUSB1
  reopen_attempts: 10
journal:
  path: /var/lib/soilwire/readings.csv
spool:
  path: /var/lib/soilwire/unsent.csv
sink:
  conn_string: postgres://edge@db/soil
  table: field_readings
  append_pause: 250ms
monitor:
  probe_addr: 1.1.1.1:53
  check_interval: 30s
  tick: 2s
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"soil_a", "soil_b", "soil_c"}, cfg.Channels)
	assert.Equal(t, 3, cfg.Serial.Channels)
	assert.Equal(t, uint64(10), cfg.Serial.ReopenAttempts)
	assert.Equal(t, "field_readings", cfg.Sink.Table)
	assert.Equal(t, 250*time.Millisecond, cfg.Sink.AppendPause)
	assert.Equal(t, "1.1.1.1:53", cfg.Monitor.ProbeAddr)
	assert.Equal(t, 2*time.Second, cfg.Monitor.Tick)
}

func TestLoadRequiresDevice(t *testing.T) {
	_, err := Load(writeConfig(t, `
sink:
  conn_string: postgres://edge@db/soil
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serial config")
}

func TestLoadRequiresConnString(t *testing.T) {
	_, err := Load(writeConfig(t, `
serial:
  device: /dev/ttyACM0
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conn_string")
}

func TestLoadRejectsSharedJournalAndSpoolPath(t *testing.T) {
	_, err := Load(writeConfig(t, `
serial:
  device: /dev/ttyACM0
sink:
  conn_string: postgres://edge@db/soil
journal:
  path: ./data/log.csv
spool:
  path: ./data/log.csv
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoadRejectsTickAboveCheckInterval(t *testing.T) {
	_, err := Load(writeConfig(t, `
serial:
  device: /dev/ttyACM0
sink:
  conn_string: postgres://edge@db/soil
monitor:
  check_interval: 10s
  tick: 30s
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitor config")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

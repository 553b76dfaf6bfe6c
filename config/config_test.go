package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplyequipped/js8call-interface/logger"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "js8call.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Empty(t, cfg.Options())

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, logger.InfoLevel, level)
}

func TestLoad_FullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
host = "10.0.0.5"
port = 2443
log_level = "debug"

[timeouts]
connect = "2s"
watch = "5s"
idle = "10m"

[station]
grid = "em19"
info = "QRP 5W DIPOLE"

[spots]
capacity = 500
journal = "/tmp/spots.db"
profile = "Field Day"

[heartbeat]
interval = "15m"

[messages]
clean_directed_text = false
autodetect_commands = true
`))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Host)
	assert.Equal(t, 2443, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Connect.Duration)
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.Idle.Duration)
	assert.Equal(t, "em19", cfg.Station.Grid)
	assert.Equal(t, 500, cfg.Spots.Capacity)
	assert.Equal(t, 15*time.Minute, cfg.Heartbeat.Interval.Duration)

	require.NotNil(t, cfg.Messages.CleanDirectedText)
	assert.False(t, *cfg.Messages.CleanDirectedText)
	require.NotNil(t, cfg.Messages.AutodetectCommands)
	assert.True(t, *cfg.Messages.AutodetectCommands)
	assert.Nil(t, cfg.Messages.MonitorOutgoing)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, logger.DebugLevel, level)

	// One option per configured key above, absent keys contribute none.
	assert.Len(t, cfg.Options(), 11)
}

func TestLoad_ConnectionConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[station]
grid = "em19"

[timeouts]
watch = "2s"
`))
	require.NoError(t, err)

	connCfg, err := cfg.ConnectionConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, connCfg.Host())
	assert.Equal(t, DefaultPort, connCfg.Port())
	assert.Equal(t, "EM19", connCfg.StationGrid())
	assert.Equal(t, 2*time.Second, connCfg.WatchTimeout())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", `banana = 1`},
		{"bad port", `port = 70000`},
		{"bad level", `log_level = "verbose"`},
		{"bad duration", "[timeouts]\nconnect = \"fast\""},
		{"empty host", `host = ""`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

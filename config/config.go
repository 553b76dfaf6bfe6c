// Package config loads JS8Call session configuration from a TOML file and
// converts it into session options.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/simplyequipped/js8call-interface/js8call"
	"github.com/simplyequipped/js8call-interface/logger"
)

// Defaults applied when the corresponding key is absent from the file.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 2442
)

// duration accepts TOML duration strings like "3s" or "5m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed

	return nil
}

// Config is the TOML representation of a JS8Call session configuration.
type Config struct {
	// Host is the host the JS8Call application listens on.
	Host string `toml:"host"`
	// Port is the TCP port of the JS8Call API.
	Port int `toml:"port"`

	// LogLevel selects logging verbosity: "debug", "info", "warn" or
	// "error".
	LogLevel string `toml:"log_level"`

	Timeouts  TimeoutsConfig  `toml:"timeouts"`
	Station   StationConfig   `toml:"station"`
	Spots     SpotsConfig     `toml:"spots"`
	Heartbeat HeartbeatConfig `toml:"heartbeat"`
	Messages  MessagesConfig  `toml:"messages"`
}

// TimeoutsConfig holds the session timing knobs. Values are TOML strings in
// Go duration syntax, like "3s" or "5m". Zero values keep the session
// defaults.
type TimeoutsConfig struct {
	Connect duration `toml:"connect"`
	Write   duration `toml:"write"`
	Close   duration `toml:"close"`
	Watch   duration `toml:"watch"`
	Idle    duration `toml:"idle"`
}

// StationConfig holds station settings applied to the modem once the session
// validates.
type StationConfig struct {
	// Grid is the station maidenhead grid square.
	Grid string `toml:"grid"`
	// Info is the station info text.
	Info string `toml:"info"`
}

// SpotsConfig holds reception report settings.
type SpotsConfig struct {
	// Capacity is the maximum number of spots retained in memory. Zero
	// keeps the default.
	Capacity int `toml:"capacity"`
	// Journal is the path of the sqlite spot journal. Journaling is
	// disabled when empty.
	Journal string `toml:"journal"`
	// Profile is the configuration profile label recorded on spots.
	Profile string `toml:"profile"`
}

// HeartbeatConfig holds automatic network heartbeat settings.
type HeartbeatConfig struct {
	// Interval between heartbeats. Zero disables heartbeating.
	Interval duration `toml:"interval"`
}

// MessagesConfig holds message handling settings. Pointers distinguish an
// absent key from an explicit false; absent keys keep the session defaults.
type MessagesConfig struct {
	// CleanDirectedText controls cleaning of received directed message
	// text.
	CleanDirectedText *bool `toml:"clean_directed_text"`
	// MonitorOutgoing controls tracking of directed sends through the
	// QUEUED/SENDING/SENT/FAILED lifecycle.
	MonitorOutgoing *bool `toml:"monitor_outgoing"`
	// AutodetectCommands controls analysis of outgoing directed message
	// text for a leading directed command.
	AutodetectCommands *bool `toml:"autodetect_commands"`
}

// Load reads and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Host: DefaultHost,
		Port: DefaultPort,
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key: %s", undecoded[0].String())
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Host == "" {
		return errors.New("host is empty")
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port %d is out of range [1, 65535]", cfg.Port)
	}

	if _, err := cfg.Level(); err != nil {
		return err
	}

	for _, timeout := range []duration{
		cfg.Timeouts.Connect, cfg.Timeouts.Write, cfg.Timeouts.Close,
		cfg.Timeouts.Watch, cfg.Timeouts.Idle, cfg.Heartbeat.Interval,
	} {
		if timeout.Duration < 0 {
			return errors.New("timeout is negative")
		}
	}

	return nil
}

// Level returns the configured logging level. An empty level defaults to
// InfoLevel.
func (cfg *Config) Level() (logger.Level, error) {
	switch cfg.LogLevel {
	case "", "info":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "warn":
		return logger.WarnLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	default:
		return logger.InfoLevel, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
}

// Options converts the configuration into session options. Host and port are
// passed to NewConnectionConfig separately.
func (cfg *Config) Options() []js8call.ConnOption {
	var opts []js8call.ConnOption

	if cfg.Timeouts.Connect.Duration > 0 {
		opts = append(opts, js8call.WithConnectTimeout(cfg.Timeouts.Connect.Duration))
	}
	if cfg.Timeouts.Write.Duration > 0 {
		opts = append(opts, js8call.WithWriteTimeout(cfg.Timeouts.Write.Duration))
	}
	if cfg.Timeouts.Close.Duration > 0 {
		opts = append(opts, js8call.WithCloseConnTimeout(cfg.Timeouts.Close.Duration))
	}
	if cfg.Timeouts.Watch.Duration > 0 {
		opts = append(opts, js8call.WithWatchTimeout(cfg.Timeouts.Watch.Duration))
	}
	if cfg.Timeouts.Idle.Duration > 0 {
		opts = append(opts, js8call.WithIdleTimeout(cfg.Timeouts.Idle.Duration))
	}

	if cfg.Station.Grid != "" {
		opts = append(opts, js8call.WithStationGrid(cfg.Station.Grid))
	}
	if cfg.Station.Info != "" {
		opts = append(opts, js8call.WithStationInfo(cfg.Station.Info))
	}

	if cfg.Spots.Capacity > 0 {
		opts = append(opts, js8call.WithSpotCapacity(cfg.Spots.Capacity))
	}
	if cfg.Spots.Journal != "" {
		opts = append(opts, js8call.WithSpotJournal(cfg.Spots.Journal))
	}
	if cfg.Spots.Profile != "" {
		opts = append(opts, js8call.WithProfile(cfg.Spots.Profile))
	}

	if cfg.Heartbeat.Interval.Duration > 0 {
		opts = append(opts, js8call.WithHeartbeatInterval(cfg.Heartbeat.Interval.Duration))
	}

	if cfg.Messages.CleanDirectedText != nil {
		opts = append(opts, js8call.WithCleanDirectedText(*cfg.Messages.CleanDirectedText))
	}
	if cfg.Messages.MonitorOutgoing != nil {
		opts = append(opts, js8call.WithMonitorOutgoing(*cfg.Messages.MonitorOutgoing))
	}
	if cfg.Messages.AutodetectCommands != nil {
		opts = append(opts, js8call.WithAutodetectCommands(*cfg.Messages.AutodetectCommands))
	}

	return opts
}

// ConnectionConfig builds a session configuration from the loaded file.
func (cfg *Config) ConnectionConfig(extra ...js8call.ConnOption) (*js8call.ConnectionConfig, error) {
	opts := cfg.Options()
	opts = append(opts, extra...)

	return js8call.NewConnectionConfig(cfg.Host, cfg.Port, opts...)
}

package js8call

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/simplyequipped/js8call-interface/logger"
)

// ConnectionConfig represents the configuration parameters for a JS8Call session.
type ConnectionConfig struct {
	mu sync.RWMutex

	// host specifies the host the JS8Call application listens on.
	host string

	// port specifies the TCP port number of the JS8Call API.
	port int

	// connectTimeout defines the timeout for establishing the TCP connection.
	// Defaults to 3 seconds.
	connectTimeout time.Duration

	// writeTimeout defines the write deadline for a single outgoing frame.
	// Defaults to 5 seconds.
	writeTimeout time.Duration

	// closeConnTimeout defines the timeout for closing the whole session.
	// Defaults to 3 seconds.
	closeConnTimeout time.Duration

	// watchTimeout defines how long a state watch waits for the modem to
	// report a value before rolling back.
	// Defaults to 3 seconds.
	watchTimeout time.Duration

	// idleTimeout defines how long the session may go without receiving
	// traffic before it is considered disconnected and a liveness probe is
	// sent.
	// Defaults to 5 minutes.
	idleTimeout time.Duration

	// spotCapacity defines the maximum number of spots retained in memory.
	// When full, the oldest spots are dropped.
	// Defaults to 1000.
	spotCapacity int

	// spotJournalPath is the path of the sqlite spot journal. Journaling is
	// disabled when empty.
	// Defaults to disabled.
	spotJournalPath string

	// profile is the configuration profile label recorded on accepted
	// spots.
	// Defaults to "Default".
	profile string

	// heartbeatInterval defines the interval between automatic network
	// heartbeats. Heartbeating is disabled when zero.
	// Defaults to disabled.
	heartbeatInterval time.Duration

	// cleanDirectedText indicates whether the text of received directed
	// messages is cleaned (origin, relay path, destination and end-of-message
	// symbol removed) before delivery.
	// Defaults to true.
	cleanDirectedText bool

	// monitorOutgoing indicates whether directed sends are tracked through
	// the QUEUED/SENDING/SENT/FAILED lifecycle.
	// Defaults to true.
	monitorOutgoing bool

	// autodetectCommands indicates whether outgoing directed message text
	// is analyzed for a leading directed command.
	// Defaults to true.
	autodetectCommands bool

	// stationGrid is the station grid square applied to the modem once the
	// session validates. Not applied when empty.
	stationGrid string

	// stationInfo is the station info text applied to the modem once the
	// session validates. Not applied when empty.
	stationInfo string

	// logger provides a logger instance for logging session events and errors.
	logger logger.Logger
}

// NewConnectionConfig creates a new JS8Call session configuration with the given host, port number,
// and optional functional options.
//
// It initializes a ConnectionConfig struct with default values and then applies the provided options
// to customize the configuration.
//
// The host parameter specifies the host the JS8Call application listens on.
// The port parameter specifies the TCP port number of the JS8Call API.
//
// The opts parameter is a variadic argument that accepts a list of ConnOption functions to customize
// the configuration. See the documentation for ConnOption and the various WithXXX functions for
// available configuration options.
//
// Returns a pointer to the initialized ConnectionConfig and an error if any occurred during the
// configuration process.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		connectTimeout:     3 * time.Second,
		writeTimeout:       5 * time.Second,
		closeConnTimeout:   3 * time.Second,
		watchTimeout:       3 * time.Second,
		idleTimeout:        5 * time.Minute,
		spotCapacity:       1000,
		profile:            "Default",
		cleanDirectedText:  true,
		monitorOutgoing:    true,
		autodetectCommands: true,
		logger:             logger.GetLogger(),
	}

	if err := withRemoteHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Host returns the configured JS8Call host.
func (cfg *ConnectionConfig) Host() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.host
}

// Port returns the configured JS8Call API port.
func (cfg *ConnectionConfig) Port() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.port
}

// ConnectTimeout returns the timeout for establishing the TCP connection.
func (cfg *ConnectionConfig) ConnectTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.connectTimeout
}

// WriteTimeout returns the write deadline for a single outgoing frame.
func (cfg *ConnectionConfig) WriteTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.writeTimeout
}

// CloseConnTimeout returns the timeout for closing the whole session.
func (cfg *ConnectionConfig) CloseConnTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.closeConnTimeout
}

// IdleTimeout returns how long the session may go without receiving traffic
// before it is considered disconnected.
func (cfg *ConnectionConfig) IdleTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.idleTimeout
}

// SpotCapacity returns the maximum number of spots retained in memory.
func (cfg *ConnectionConfig) SpotCapacity() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.spotCapacity
}

// SpotJournalPath returns the path of the sqlite spot journal, or an empty
// string when journaling is disabled.
func (cfg *ConnectionConfig) SpotJournalPath() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.spotJournalPath
}

// CleanDirectedText returns whether received directed message text is
// cleaned before delivery.
func (cfg *ConnectionConfig) CleanDirectedText() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.cleanDirectedText
}

// MonitorOutgoing returns whether directed sends are tracked through the
// QUEUED/SENDING/SENT/FAILED lifecycle.
func (cfg *ConnectionConfig) MonitorOutgoing() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.monitorOutgoing
}

// AutodetectCommands returns whether outgoing directed message text is
// analyzed for a leading directed command.
func (cfg *ConnectionConfig) AutodetectCommands() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.autodetectCommands
}

// StationGrid returns the station grid square applied to the modem once the
// session validates, or an empty string when not configured.
func (cfg *ConnectionConfig) StationGrid() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.stationGrid
}

// StationInfo returns the station info text applied to the modem once the
// session validates, or an empty string when not configured.
func (cfg *ConnectionConfig) StationInfo() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.stationInfo
}

// Logger returns the logger for the session.
func (cfg *ConnectionConfig) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

// Profile returns the configuration profile label recorded on spots.
func (cfg *ConnectionConfig) Profile() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.profile
}

// WatchTimeout returns the state watch timeout.
func (cfg *ConnectionConfig) WatchTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.watchTimeout
}

// HeartbeatInterval returns the interval between automatic network
// heartbeats, or zero when heartbeating is disabled.
func (cfg *ConnectionConfig) HeartbeatInterval() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.heartbeatInterval
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	runtime   bool
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error { return c.applyFunc(cfg) }

func newConnOptFunc(name string, runtime bool, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{
		name:      name,
		runtime:   runtime,
		applyFunc: f,
	}
}

// withRemoteHost sets the host for the JS8Call session.
// It returns a ConnOption that validates the host and updates the configuration.
// An error is returned if the configuration is nil.
func withRemoteHost(host string) ConnOption {
	return newConnOptFunc("withRemoteHost", false, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		// Check if it's a valid IP address
		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		// If not an IP, check if it's a valid domain name
		host = strings.TrimPrefix(host, ".")
		host = strings.TrimSuffix(host, ".")
		if _, err := net.LookupHost(host); err == nil {
			cfg.host = host
			return nil
		}

		return errors.New("invalid host")
	})
}

// withPort sets the TCP port number for the JS8Call session.
// It returns a ConnOption that validates the port number and updates the configuration.
// An error is returned if the port number is out of the valid range (1-65535) or if the configuration is nil.
func withPort(port int) ConnOption {
	return newConnOptFunc("withPort", false, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if port < 0 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithConnectTimeout sets the timeout for establishing the TCP connection.
// It returns a ConnOption that validates the timeout value and updates the configuration.
// An error is returned if the timeout is outside the valid range (0.1-30 seconds) or if the configuration is nil.
//
// The default value is 3 seconds.
//
// This option can't be changed at runtime.
func WithConnectTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithConnectTimeout", false, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if val < 100*time.Millisecond || val > 30*time.Second {
			return errors.New("connect timeout out of range [0.1, 30]")
		}
		cfg.connectTimeout = val

		return nil
	})
}

// WithWriteTimeout sets the write deadline for a single outgoing frame.
// It returns a ConnOption that validates the timeout value and updates the configuration.
// An error is returned if the timeout is outside the valid range (1-30 seconds) or if the configuration is nil.
//
// The default value is 5 seconds.
//
// This option can be changed at runtime.
func WithWriteTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithWriteTimeout", true, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if val < 1*time.Second || val > 30*time.Second {
			return errors.New("write timeout out of range [1, 30]")
		}
		cfg.writeTimeout = val

		return nil
	})
}

// WithCloseConnTimeout sets the timeout for closing the whole session.
// It returns a ConnOption that validates the timeout value and updates the configuration.
// An error is returned if the timeout is outside the valid range (1-30 seconds) or if the configuration is nil.
//
// The default value is 3 seconds.
//
// This option can be changed at runtime.
func WithCloseConnTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithCloseConnTimeout", true, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if val < 1*time.Second || val > 30*time.Second {
			return errors.New("close connection timeout out of range [1, 30]")
		}
		cfg.closeConnTimeout = val

		return nil
	})
}

// WithWatchTimeout sets how long a state watch waits for the modem to report
// a value before rolling back to the previous value.
// It returns a ConnOption that validates the timeout value and updates the configuration.
// An error is returned if the timeout is outside the valid range (0.1-60 seconds) or if the configuration is nil.
//
// The default value is 3 seconds.
//
// This option can be changed at runtime.
func WithWatchTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithWatchTimeout", true, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if val < 100*time.Millisecond || val > 60*time.Second {
			return errors.New("watch timeout out of range [0.1, 60]")
		}
		cfg.watchTimeout = val

		return nil
	})
}

// WithIdleTimeout sets how long the session may go without receiving traffic
// before it is considered disconnected and a liveness probe is sent.
//
// An error is returned if the timeout is outside the valid range (10 seconds
// to 1 hour) or if the configuration is nil.
//
// The default value is 5 minutes.
//
// This option can be changed at runtime.
func WithIdleTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithIdleTimeout", true, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if val < 10*time.Second || val > 1*time.Hour {
			return errors.New("idle timeout out of range [10s, 1h]")
		}
		cfg.idleTimeout = val

		return nil
	})
}

// WithSpotCapacity sets the maximum number of spots retained in memory.
// When the store is full the oldest spots are dropped first.
//
// The capacity must be within the range of 10 to 1000000.
// An error is returned if the capacity is invalid or if the provided ConnectionConfig is nil.
//
// The default value is 1000.
//
// This option can't be changed at runtime.
func WithSpotCapacity(capacity int) ConnOption {
	return newConnOptFunc("WithSpotCapacity", false, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}
		if capacity < 10 || capacity > 1000000 {
			return errors.New("spot capacity out of range [10, 1000000]")
		}

		cfg.spotCapacity = capacity

		return nil
	})
}

// WithSpotJournal enables the persistent spot journal at the given sqlite
// database path. Accepted spots are written to the journal asynchronously.
//
// An error is returned if the path is empty or if the configuration is nil.
//
// Journaling is disabled by default.
//
// This option can't be changed at runtime.
func WithSpotJournal(path string) ConnOption {
	return newConnOptFunc("WithSpotJournal", false, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}
		if path == "" {
			return errors.New("spot journal path is empty")
		}

		cfg.spotJournalPath = path

		return nil
	})
}

// WithProfile sets the configuration profile label recorded on accepted
// spots, allowing spots collected under different station setups to be
// filtered apart.
//
// An error is returned if the configuration is nil.
//
// The default value is "Default".
//
// This option can be changed at runtime.
func WithProfile(profile string) ConnOption {
	return newConnOptFunc("WithProfile", true, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.profile = profile

		return nil
	})
}

// WithHeartbeatInterval sets the interval between automatic network
// heartbeats sent to the @HB group. A zero interval disables heartbeating.
//
// An error is returned if the interval is negative, non-zero and below one
// minute, or if the configuration is nil.
//
// Heartbeating is disabled by default.
//
// This option can be changed at runtime.
func WithHeartbeatInterval(interval time.Duration) ConnOption {
	return newConnOptFunc("WithHeartbeatInterval", true, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		if interval != 0 && (interval < time.Minute || interval > 24*time.Hour) {
			return errors.New("heartbeat interval out of range [1m, 24h]")
		}

		cfg.heartbeatInterval = interval

		return nil
	})
}

// WithCleanDirectedText enables or disables cleaning of received directed
// message text.
//
// When enabled (val = true), the origin callsign, relay path, destination
// and end-of-message symbol are removed from directed message text before
// the message is delivered, leaving only the payload.
//
// When disabled (val = false), directed message text is delivered exactly
// as reported by the modem.
//
// An error is returned if the provided ConnectionConfig is nil.
//
// The default value is true.
//
// This option can be changed at runtime.
func WithCleanDirectedText(val bool) ConnOption {
	return newConnOptFunc("WithCleanDirectedText", true, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.cleanDirectedText = val

		return nil
	})
}

// WithMonitorOutgoing enables or disables tracking of directed sends through
// the QUEUED/SENDING/SENT/FAILED lifecycle.
//
// An error is returned if the provided ConnectionConfig is nil.
//
// The default value is true.
//
// This option can be changed at runtime.
func WithMonitorOutgoing(val bool) ConnOption {
	return newConnOptFunc("WithMonitorOutgoing", true, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.monitorOutgoing = val

		return nil
	})
}

// WithAutodetectCommands enables or disables analysis of outgoing directed
// message text for a leading directed command.
//
// An error is returned if the provided ConnectionConfig is nil.
//
// The default value is true.
//
// This option can be changed at runtime.
func WithAutodetectCommands(val bool) ConnOption {
	return newConnOptFunc("WithAutodetectCommands", true, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.autodetectCommands = val

		return nil
	})
}

// WithStationGrid sets the station grid square applied to the modem once the
// session validates.
//
// An error is returned if the configuration is nil.
//
// This option can't be changed at runtime.
func WithStationGrid(grid string) ConnOption {
	return newConnOptFunc("WithStationGrid", false, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.stationGrid = strings.ToUpper(strings.TrimSpace(grid))

		return nil
	})
}

// WithStationInfo sets the station info text applied to the modem once the
// session validates.
//
// An error is returned if the configuration is nil.
//
// This option can't be changed at runtime.
func WithStationInfo(info string) ConnOption {
	return newConnOptFunc("WithStationInfo", false, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.stationInfo = strings.TrimSpace(info)

		return nil
	})
}

// WithLogger sets the logger for the JS8Call session.
// It returns a ConnOption that updates the configuration with the provided logger.
// An error is returned if the configuration is nil.
//
// The default logger is the global logger instance.
//
// This option can't be changed at runtime.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", false, func(cfg *ConnectionConfig) error {
		if cfg == nil {
			return ErrConnConfigNil
		}

		cfg.logger = l

		return nil
	})
}

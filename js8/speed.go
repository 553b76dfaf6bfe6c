package js8

import (
	"strings"
	"time"
)

// Speed identifies a JS8Call modem speed setting. The numeric values are
// the submode identifiers used by the MODE.SPEED API messages.
type Speed int

const (
	SpeedNormal Speed = 0
	SpeedFast   Speed = 1
	SpeedTurbo  Speed = 2
	SpeedSlow   Speed = 4
	SpeedUltra  Speed = 8
)

// DefaultWindowDuration is the transmit window duration assumed when the
// modem speed is unknown. It matches the normal speed setting.
const DefaultWindowDuration = 15 * time.Second

// ParseSpeed converts a speed name to its Speed value. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseSpeed(name string) (Speed, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "slow":
		return SpeedSlow, nil
	case "normal":
		return SpeedNormal, nil
	case "fast":
		return SpeedFast, nil
	case "turbo":
		return SpeedTurbo, nil
	case "ultra":
		return SpeedUltra, nil
	default:
		return SpeedNormal, ErrInvalidSpeed
	}
}

func (s Speed) String() string {
	switch s {
	case SpeedSlow:
		return "slow"
	case SpeedNormal:
		return "normal"
	case SpeedFast:
		return "fast"
	case SpeedTurbo:
		return "turbo"
	case SpeedUltra:
		return "ultra"
	default:
		return "unknown"
	}
}

// Valid returns true if s is a known submode identifier.
func (s Speed) Valid() bool {
	switch s {
	case SpeedSlow, SpeedNormal, SpeedFast, SpeedTurbo, SpeedUltra:
		return true
	default:
		return false
	}
}

// Bandwidth returns the transmitted signal bandwidth in Hz at this
// speed. Unknown speeds report the turbo bandwidth as a worst case.
func (s Speed) Bandwidth() int64 {
	switch s {
	case SpeedSlow:
		return 25
	case SpeedNormal:
		return 50
	case SpeedFast:
		return 80
	case SpeedTurbo:
		return 160
	case SpeedUltra:
		return 250
	default:
		return 160
	}
}

// WindowDuration returns the length of one transmit window at this speed.
// Unknown speeds return DefaultWindowDuration.
func (s Speed) WindowDuration() time.Duration {
	switch s {
	case SpeedSlow:
		return 30 * time.Second
	case SpeedNormal:
		return 15 * time.Second
	case SpeedFast:
		return 10 * time.Second
	case SpeedTurbo:
		return 6 * time.Second
	case SpeedUltra:
		return 4 * time.Second
	default:
		return DefaultWindowDuration
	}
}

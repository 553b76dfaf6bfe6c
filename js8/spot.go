package js8

import (
	"time"

	"github.com/simplyequipped/js8call-interface/internal/util"
)

// Spot records that a station or activity was heard. Spots are derived
// from qualifying received messages and deduplicated by the spot store,
// since the modem reports one over-the-air reception through several API
// message types.
type Spot struct {
	// MessageID is the ID of the message the spot was derived from.
	MessageID string
	// Origin is the heard callsign.
	Origin string
	// Destination is the callsign or group the heard message was directed
	// to, if any.
	Destination string
	// Grid is the station's reported grid square, if known.
	Grid string
	// SNR is the signal-to-noise ratio in dB.
	SNR int
	// Dial is the dial frequency in Hz.
	Dial int64
	// Freq is the dial frequency plus offset in Hz.
	Freq int64
	// Offset is the passband offset frequency in Hz.
	Offset int64
	// Cmd is the directed command carried by the heard message, if any.
	Cmd string
	// Value is the heard message text.
	Value string
	// Path is the relay path of the heard message, ordered from the
	// origin outward.
	Path []string
	// Speed is the modem speed the signal was received at.
	Speed Speed
	// Profile is the modem configuration profile active when the spot was
	// recorded.
	Profile string
	// Distance is the great circle distance to the station in the
	// configured distance units, or 0 when the grid is unknown.
	Distance int
	// Bearing is the true bearing to the station in degrees, or 0 when
	// the grid is unknown.
	Bearing int
	// Time is when the spot was recorded.
	Time time.Time
}

// NewSpot builds a spot from a received message. Profile, distance, and
// bearing are filled in by the spot store when the spot is recorded.
func NewSpot(msg *Message) *Spot {
	return &Spot{
		MessageID:   msg.ID,
		Origin:      msg.Origin,
		Destination: msg.Destination,
		Grid:        msg.Grid,
		SNR:         msg.SNR,
		Dial:        msg.Dial,
		Freq:        msg.Freq,
		Offset:      msg.Offset,
		Cmd:         msg.Cmd,
		Value:       msg.Value,
		Path:        util.CloneSlice(msg.Path, 0),
		Speed:       msg.Speed,
		Time:        msg.Time,
	}
}

// Age returns the time elapsed since the spot was recorded.
func (s *Spot) Age() time.Duration {
	return time.Since(s.Time)
}

// DuplicateOf reports whether two spots describe the same over-the-air
// event. Origin, destination, command, and value must all match; the
// caller additionally bounds how far apart in time duplicates may occur.
func (s *Spot) DuplicateOf(other *Spot) bool {
	return s.Origin == other.Origin &&
		s.Destination == other.Destination &&
		s.Cmd == other.Cmd &&
		s.Value == other.Value
}

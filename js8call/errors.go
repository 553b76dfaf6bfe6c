package js8call

import "errors"

var (
	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("connection config is nil")

	// ErrConnClosed indicates that the connection is closed.
	ErrConnClosed = errors.New("connection closed")

	// ErrNotConnected indicates that the session with the modem is not
	// established.
	ErrNotConnected = errors.New("not connected to JS8Call")

	// ErrAlreadyOpen indicates that Open was called on a connection that
	// is already open.
	ErrAlreadyOpen = errors.New("connection already open")
)

var (
	// ErrMessageNil indicates that a nil message was provided.
	ErrMessageNil = errors.New("message is nil")

	// ErrNotTransmitType indicates that an attempt was made to send a
	// message whose type is not an outgoing API type.
	ErrNotTransmitType = errors.New("message type is not a transmit type")

	// ErrMessageRejected indicates that outgoing message preprocessing
	// rejected the message before it was queued.
	ErrMessageRejected = errors.New("message rejected by outgoing processing")

	// ErrEmptyDestination indicates that a directed operation was invoked
	// without a destination callsign or group.
	ErrEmptyDestination = errors.New("destination callsign is empty")
)

var (
	// ErrWatchUnknown indicates that a watch was requested for a state
	// variable this client does not track.
	ErrWatchUnknown = errors.New("unknown state variable")

	// ErrStationGridUnset indicates that the local station grid square is
	// needed but has not been reported by the modem or configured.
	ErrStationGridUnset = errors.New("station grid square not set")

	// ErrValueUnavailable indicates that the modem did not report a state
	// value before the watch timeout elapsed.
	ErrValueUnavailable = errors.New("state value unavailable")
)

package js8

// InboxMessage is one stored message from the JS8Call inbox.
type InboxMessage struct {
	// ID is the inbox storage identifier assigned by JS8Call.
	ID int64
	// UTC is the stored timestamp as reported by JS8Call.
	UTC string
	// Origin is the callsign the message came from.
	Origin string
	// Destination is the callsign the message is directed to.
	Destination string
	// Path is the relay path the message traveled, if any.
	Path string
	// Text is the message text.
	Text string
	// Unread is true until the message has been retrieved once.
	Unread bool
}

// CallActivity is one row of the JS8Call call activity table, keyed by
// heard callsign.
type CallActivity struct {
	// Origin is the heard callsign.
	Origin string
	// Grid is the station's reported grid square, if known.
	Grid string
	// SNR is the last heard signal-to-noise ratio in dB.
	SNR int
	// UTC is when the station was last heard, in milliseconds since the
	// Unix epoch.
	UTC int64
}

// BandActivity is one row of the JS8Call band activity table, keyed by
// passband offset.
type BandActivity struct {
	// Freq is the dial frequency in Hz.
	Freq int64
	// Offset is the passband offset frequency in Hz.
	Offset int64
	// SNR is the signal-to-noise ratio in dB.
	SNR int
	// UTC is when the activity was decoded, in milliseconds since the
	// Unix epoch.
	UTC int64
	// Text is the decoded activity text.
	Text string
}

package js8

// Status represents the lifecycle state of a Message.
//
// Outgoing messages move through StatusCreated, StatusQueued,
// StatusSending, and end in StatusSent or StatusFailed. Incoming messages
// move directly from StatusCreated to StatusReceived. Transitions are
// monotonic and one-directional; once a message reaches a terminal status
// it never changes again.
type Status int32

const (
	StatusCreated Status = iota
	StatusQueued
	StatusSending
	StatusSent
	StatusFailed
	StatusReceived
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusQueued:
		return "queued"
	case StatusSending:
		return "sending"
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	case StatusReceived:
		return "received"
	default:
		return "unknown"
	}
}

// Terminal returns true when no further status transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusReceived
}

// validStatusTransition reports whether a message may move from one
// status to another.
func validStatusTransition(from, to Status) bool {
	switch from {
	case StatusCreated:
		return to == StatusQueued || to == StatusReceived || to == StatusFailed
	case StatusQueued:
		return to == StatusSending || to == StatusFailed
	case StatusSending:
		return to == StatusSent || to == StatusFailed
	default:
		// terminal statuses absorb all transition attempts
		return false
	}
}

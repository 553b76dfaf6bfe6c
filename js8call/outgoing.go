package js8call

import (
	"strings"
	"sync"
	"time"

	"github.com/simplyequipped/js8call-interface/js8"
	"github.com/simplyequipped/js8call-interface/logger"
)

const (
	// outgoingScanInterval is how often tracked sends are re-examined.
	outgoingScanInterval = 500 * time.Millisecond

	// txTextRefreshInterval limits how often a TX.GET_TEXT refresh is
	// requested while sends are being tracked. The same refresh keeps the
	// dispatcher's busy flag current.
	txTextRefreshInterval = time.Second

	// failedAgeWindows sizes the failure timeout in transmit windows. A
	// send that has not left the modem within this many windows is
	// considered failed.
	failedAgeWindows = 30
)

// OutgoingStatusHandler is called with a tracked message every time its
// lifecycle status changes. Handlers run on their own goroutines.
type OutgoingStatusHandler func(msg *js8.Message)

// trackedSend pairs a tracked message with the last status reported to
// observers, so externally driven transitions are still reported exactly
// once.
type trackedSend struct {
	msg  *js8.Message
	last js8.Status
}

// outgoingMonitor tracks directed sends through the modem's outgoing text
// field. This is the only mechanism by which a caller learns whether a
// requested transmission actually reached the air.
//
// A send is SENDING once its reconstructed text is observed in the tx_text
// field, and SENT once that text is observed to have been removed again. A
// send whose age exceeds the dynamic failure timeout is FAILED. The timeout
// is re-derived from the window duration every scan since the modem speed
// can change at runtime.
type outgoingMonitor struct {
	mu          sync.Mutex
	tracked     []*trackedSend
	lastRefresh time.Time

	store    *StateStore
	refresh  func()
	duration WindowDurationProvider
	notify   func(*js8.Message)
	logger   logger.Logger
}

func newOutgoingMonitor(store *StateStore, refresh func(), duration WindowDurationProvider, notify func(*js8.Message), l logger.Logger) *outgoingMonitor {
	return &outgoingMonitor{
		store:    store,
		refresh:  refresh,
		duration: duration,
		notify:   notify,
		logger:   l,
	}
}

// track begins tracking a queued directed send.
func (o *outgoingMonitor) track(msg *js8.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.tracked = append(o.tracked, &trackedSend{msg: msg, last: msg.Status()})
}

// trackedCount returns the number of sends currently tracked.
func (o *outgoingMonitor) trackedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.tracked)
}

// monitorTask advances the state machine of every tracked send. It runs as
// an interval task under the task manager.
func (o *outgoingMonitor) monitorTask() bool {
	o.mu.Lock()

	if len(o.tracked) == 0 {
		o.mu.Unlock()
		return true
	}

	if time.Since(o.lastRefresh) >= txTextRefreshInterval {
		o.lastRefresh = time.Now()
		if o.refresh != nil {
			o.refresh()
		}
	}

	text, known := o.store.TxText()
	processed := processTxText(text)
	maxAge := failedAgeWindows * o.duration()

	var changed []*js8.Message
	remaining := o.tracked[:0]
	for _, entry := range o.tracked {
		o.advance(entry, processed, known, maxAge)

		if status := entry.msg.Status(); status != entry.last {
			entry.last = status
			changed = append(changed, entry.msg)
		}

		if !entry.msg.Status().Terminal() {
			remaining = append(remaining, entry)
		}
	}
	o.tracked = remaining

	o.mu.Unlock()

	for _, msg := range changed {
		o.logger.Debug("outgoing status changed", "method", "monitorTask", "id", msg.ID, "status", msg.Status())
		if o.notify != nil {
			go o.notify(msg)
		}
	}

	return true
}

// advance applies one observation of the tx_text field to a tracked send.
func (o *outgoingMonitor) advance(entry *trackedSend, processed string, known bool, maxAge time.Duration) {
	msg := entry.msg

	if msg.Age() > maxAge {
		msg.SetStatus(js8.StatusFailed)
		return
	}

	if !known {
		return
	}

	switch msg.Status() {
	case js8.StatusQueued:
		if processed == msg.TransmitText() {
			msg.SetStatus(js8.StatusSending)
		}
	case js8.StatusSending:
		if processed != msg.TransmitText() {
			msg.SetStatus(js8.StatusSent)
		}
	default:
	}
}

// processTxText normalizes the modem's outgoing text field for comparison
// against a reconstructed send. The modem may prefix the field with the
// station callsign and a colon, and appends the end-of-message symbol once
// transmission begins.
func processTxText(text string) string {
	if idx := strings.Index(text, ":"); idx >= 0 {
		text = text[idx+1:]
	}

	return strings.Trim(text, " "+js8.EOM)
}

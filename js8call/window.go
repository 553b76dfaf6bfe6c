package js8call

import (
	"sync"
	"time"
)

// rxWindowLead is how long before the end of a transmit window the modem
// reports incoming directed and activity messages, by protocol convention.
const rxWindowLead = 2 * time.Second

// windowBias is subtracted from the time remaining until the next window
// transition, leaving callers headroom to act before the boundary.
const windowBias = 100 * time.Millisecond

// WindowDurationProvider returns the duration of one transmit window. The
// duration follows the modem speed setting and can change at runtime, so it
// is re-read on every prediction.
type WindowDurationProvider func() time.Duration

// WindowMonitor predicts the modem's transmit window transitions. The modem
// never announces window boundaries explicitly; they are inferred from the
// timestamps of observed messages.
//
// A TX.FRAME message marks the exact start of the current window and is
// authoritative: once one has been seen, the less accurate receive-based
// signal is ignored for the rest of the session. Before any local
// transmission, incoming directed and activity messages approximate the end
// of the window instead.
type WindowMonitor struct {
	mu          sync.Mutex
	lastTxFrame time.Time
	lastRxMsg   time.Time
	next        time.Time
	txSeen      bool

	duration WindowDurationProvider
	notify   func(next time.Time)
}

// NewWindowMonitor creates a window monitor using the given duration
// provider. The notify function, if non-nil, is called from the monitor loop
// each time the predicted boundary is crossed.
func NewWindowMonitor(duration WindowDurationProvider, notify func(next time.Time)) *WindowMonitor {
	return &WindowMonitor{
		duration: duration,
		notify:   notify,
	}
}

// ObserveTxFrame records the timestamp of a locally originated TX.FRAME
// message, which marks the start of the current window.
func (w *WindowMonitor) ObserveTxFrame(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.txSeen = true
	w.lastTxFrame = t
	w.next = t.Add(w.duration())
}

// ObserveRxMessage records the timestamp of an incoming directed or activity
// message, which arrives shortly before the end of the current window. Only
// the first such message per cycle adjusts the prediction; later ones within
// half a window duration are noise and are ignored. Once a TX.FRAME has been
// seen this signal is disabled entirely.
func (w *WindowMonitor) ObserveRxMessage(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.txSeen {
		return
	}

	if !w.lastRxMsg.IsZero() && t.Sub(w.lastRxMsg) < w.duration()/2 {
		return
	}

	w.lastRxMsg = t
	w.next = t.Add(rxWindowLead)
}

// NextTransition returns the predicted timestamp of a window transition
// count windows ahead of the next one. It returns ok == false when no
// timing signal has been observed yet.
func (w *WindowMonitor) NextTransition(count int) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.next.IsZero() {
		return time.Time{}, false
	}

	next := w.next
	if count > 0 {
		next = next.Add(time.Duration(count) * w.duration())
	}

	return next, true
}

// Until returns the time remaining until the window transition count windows
// ahead, biased slightly early so callers can act before the boundary. It
// returns ok == false when no timing signal has been observed yet.
func (w *WindowMonitor) Until(count int) (time.Duration, bool) {
	next, ok := w.NextTransition(count)
	if !ok {
		return 0, false
	}

	return time.Until(next) - windowBias, true
}

// monitorTask rolls the prediction forward by one window duration every time
// the predicted boundary is crossed, and fires the transition notification.
// The duration is re-read on each roll in case the speed setting changed.
// It runs as a short interval task under the task manager.
func (w *WindowMonitor) monitorTask() bool {
	w.mu.Lock()

	if w.next.IsZero() || time.Now().Before(w.next) {
		w.mu.Unlock()
		return true
	}

	w.next = w.next.Add(w.duration())
	next := w.next
	notify := w.notify
	w.mu.Unlock()

	if notify != nil {
		go notify(next)
	}

	return true
}

package js8call

import (
	"sync"
	"time"

	"github.com/simplyequipped/js8call-interface/internal/queue"
	"github.com/simplyequipped/js8call-interface/js8"
	"github.com/simplyequipped/js8call-interface/logger"
)

// dispatchInterval is how often the dispatcher looks for work.
const dispatchInterval = 100 * time.Millisecond

// forceHoldExpiry bounds how long the post-send hold may last. The hold
// normally clears as soon as the modem's outgoing text field reflects the
// just-sent message; if the modem silently dropped the send, the hold
// expires instead of wedging the queue.
const forceHoldExpiry = 2 * time.Second

// txDispatcher serializes outbound messages around the modem's half-duplex
// duty cycle.
//
// Messages of type TX.SEND_MESSAGE transmit over the air and are held while
// the modem is already transmitting; every other message type controls the
// modem locally and dispatches regardless of transmit state. A held send
// never blocks unrelated message types queued behind it.
//
// Whether the modem is transmitting is read passively from the tx_text
// state variable rather than requested every cycle, since an explicit
// request per tick would double the socket traffic. The flag keeps its last
// value while tx_text is unknown or under an active watch.
type txDispatcher struct {
	mu        sync.Mutex
	queue     *queue.SliceQueue[*js8.Message]
	busy      bool
	forceHold bool
	heldAt    time.Time

	store   *StateStore
	write   func(*js8.Message) error
	logger  logger.Logger
	metrics *ConnectionMetrics
}

func newTxDispatcher(store *StateStore, write func(*js8.Message) error, l logger.Logger, metrics *ConnectionMetrics) *txDispatcher {
	return &txDispatcher{
		queue:   queue.NewSliceQueue[*js8.Message](16),
		store:   store,
		write:   write,
		logger:  l,
		metrics: metrics,
	}
}

// enqueue appends a message to the transmit queue.
func (d *txDispatcher) enqueue(msg *js8.Message) error {
	if msg == nil {
		return ErrMessageNil
	}
	if !msg.Type.IsTransmit() {
		return ErrNotTransmitType
	}

	msg.SetStatus(js8.StatusQueued)

	d.mu.Lock()
	d.queue.Enqueue(msg)
	d.mu.Unlock()

	return nil
}

// pending returns the number of queued messages.
func (d *txDispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.queue.Length()
}

// dispatchTask pops and writes the earliest eligible message. It runs as an
// interval task under the task manager.
func (d *txDispatcher) dispatchTask() bool {
	d.mu.Lock()

	d.refreshBusy()

	msg, ok := d.queue.DequeueFunc(d.eligible)
	if !ok {
		if !d.queue.IsEmpty() {
			// queue holds directed sends only and the modem is busy
			d.metrics.incTxHoldCount()
		}
		d.mu.Unlock()

		return true
	}

	if msg.Type == js8.TypeTxSendMessage {
		// hold the next send until tx_text has had a chance to reflect
		// this one, otherwise the busy flag is stale by one poll interval
		d.forceHold = true
		d.heldAt = time.Now()
	}
	d.mu.Unlock()

	if err := d.write(msg); err != nil {
		d.metrics.incTxErrCount()
		d.logger.Error("failed to write outgoing message", "method", "dispatchTask", "type", msg.Type, "error", err)
		msg.SetStatus(js8.StatusFailed)

		return true
	}

	// a directed send stays QUEUED until the outgoing monitor observes it
	// in the modem's tx_text field; every other type is done once written
	if msg.Type != js8.TypeTxSendMessage {
		msg.SetStatus(js8.StatusSending)
		msg.SetStatus(js8.StatusSent)
	}

	return true
}

// refreshBusy re-reads the modem transmit state from tx_text. The flag is
// left untouched while tx_text is unknown or being watched, so a watch
// round-trip cannot flip the dispatcher's view with a transient reset.
// Callers hold d.mu.
func (d *txDispatcher) refreshBusy() {
	if !d.store.Watched(StateTxText) {
		if text, ok := d.store.TxText(); ok {
			d.busy = text != ""
		}
	}

	if d.forceHold && (d.busy || time.Since(d.heldAt) > forceHoldExpiry) {
		d.forceHold = false
	}
}

// eligible reports whether a queued message may dispatch this cycle.
// Callers hold d.mu.
func (d *txDispatcher) eligible(msg *js8.Message) bool {
	if msg.Type != js8.TypeTxSendMessage {
		return true
	}

	return !d.busy && !d.forceHold
}

package js8call

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/simplyequipped/js8call-interface/js8"
)

// inboxPollDivisor sizes the fallback poll interval as a fraction of the
// transmit window. The monitor normally polls once per window transition;
// the fallback covers the listen-only period before any timing signal has
// been observed.
const inboxPollDivisor = 3

// inboxMonitor polls the modem inbox and reports messages that appeared
// since the previous poll. It also answers directed heartbeats announcing a
// stored message id by querying the message from the announcing station.
type inboxMonitor struct {
	mu       sync.Mutex
	known    map[int64]struct{}
	primed   bool
	lastPoll time.Time

	client *Client
}

func newInboxMonitor(client *Client) *inboxMonitor {
	return &inboxMonitor{
		known:  make(map[int64]struct{}),
		client: client,
	}
}

// pollTask is the fallback poll driver. It runs as an interval task and
// requests the inbox when no window transition has triggered a poll for a
// full window duration.
func (m *inboxMonitor) pollTask() bool {
	m.mu.Lock()
	stale := time.Since(m.lastPoll) >= m.client.conn.WindowDuration()
	m.mu.Unlock()

	if stale {
		m.poll()
	}

	return true
}

// onWindow polls the inbox at every transmit window transition.
func (m *inboxMonitor) onWindow(time.Time) {
	m.poll()
}

// poll requests the inbox listing. The response arrives asynchronously and
// is diffed in onInbox.
func (m *inboxMonitor) poll() {
	if !m.client.conn.Connected() {
		return
	}

	m.mu.Lock()
	m.lastPoll = time.Now()
	m.mu.Unlock()

	if err := m.client.conn.Enqueue(js8.NewTypedMessage(js8.TypeInboxGetMessages)); err != nil {
		m.client.logger.Warn("failed to queue inbox poll", "method", "poll", "error", err)
	}
}

// onInbox diffs an inbox listing against the previous snapshot by message
// id and fires the inbox callbacks with the new messages. The first
// listing primes the snapshot without firing, so messages stored before
// this session are not reported as new.
func (m *inboxMonitor) onInbox(msg *js8.Message) {
	m.mu.Lock()

	var fresh []js8.InboxMessage
	for _, inboxMsg := range msg.Messages {
		if _, ok := m.known[inboxMsg.ID]; ok {
			continue
		}
		m.known[inboxMsg.ID] = struct{}{}
		fresh = append(fresh, inboxMsg)
	}

	primed := m.primed
	m.primed = true
	m.mu.Unlock()

	if primed && len(fresh) > 0 {
		m.client.conn.Callbacks().fireInbox(fresh)
	}
}

// onDirected answers directed messages announcing a stored inbox message,
// like "N0XYZ: K1ABC  MSG 42", by querying the message id from the
// announcing station.
func (m *inboxMonitor) onDirected(msg *js8.Message) {
	if msg.Cmd != js8.CmdMsg || msg.Origin == "" {
		return
	}

	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}

	id, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil {
		return
	}

	if _, err := m.client.QueryMessage(msg.Origin, id); err != nil {
		m.client.logger.Warn("failed to query announced message", "method", "onDirected", "id", id, "error", err)
	}
}

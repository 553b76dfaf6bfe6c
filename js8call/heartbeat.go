package js8call

import (
	"sync/atomic"
)

// heartbeatMonitor sends periodic network heartbeats to the @HB group so
// other stations can spot this one. The interval is minutes-scale and
// configured with WithHeartbeatInterval; sending can be paused and resumed
// at runtime without stopping the task.
type heartbeatMonitor struct {
	paused atomic.Bool
	client *Client
}

func newHeartbeatMonitor(client *Client) *heartbeatMonitor {
	return &heartbeatMonitor{client: client}
}

// Pause suspends heartbeat sending. The interval task keeps running.
func (m *heartbeatMonitor) Pause() {
	m.paused.Store(true)
}

// Resume re-enables heartbeat sending.
func (m *heartbeatMonitor) Resume() {
	m.paused.Store(false)
}

// Paused returns true while heartbeat sending is suspended.
func (m *heartbeatMonitor) Paused() bool {
	return m.paused.Load()
}

// sendTask sends one heartbeat. It runs as an interval task under the task
// manager.
func (m *heartbeatMonitor) sendTask() bool {
	if m.paused.Load() || !m.client.conn.Connected() {
		return true
	}

	if _, err := m.client.SendHeartbeat(); err != nil {
		m.client.logger.Warn("failed to send heartbeat", "method", "sendTask", "error", err)
	}

	return true
}

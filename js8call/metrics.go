package js8call

import (
	"sync/atomic"
)

// ConnectionMetrics contains atomic metrics for a connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// FrameSendCount indicates the number of API frames written to the modem.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of API frames decoded from the modem.
	FrameRecvCount atomic.Uint64
	// FrameErrCount indicates the number of frames that failed to decode.
	FrameErrCount atomic.Uint64
	// FrameDropCount indicates the number of frames discarded because the
	// modem flagged a decode failure in the message value.
	FrameDropCount atomic.Uint64

	// WatchTimeoutCount indicates the number of state watches that expired
	// without the modem reporting a value.
	WatchTimeoutCount atomic.Uint64

	// SpotCount indicates the number of spots accepted into the spot store.
	SpotCount atomic.Uint64
	// SpotDupCount indicates the number of spots rejected as duplicates.
	SpotDupCount atomic.Uint64

	// TxHoldCount indicates the number of dispatch cycles that held a
	// directed message back because the modem was transmitting.
	TxHoldCount atomic.Uint64
	// TxErrCount indicates the number of outgoing messages dropped due to
	// write errors.
	TxErrCount atomic.Uint64

	// ProbeCount indicates the number of liveness probes sent.
	ProbeCount atomic.Uint64

	// JournalCount indicates the number of spots written to the journal.
	JournalCount atomic.Uint64
	// JournalErrCount indicates the number of journal write errors.
	JournalErrCount atomic.Uint64
}

func (m *ConnectionMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *ConnectionMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *ConnectionMetrics) incFrameErrCount() {
	m.FrameErrCount.Add(1)
}

func (m *ConnectionMetrics) incFrameDropCount() {
	m.FrameDropCount.Add(1)
}

func (m *ConnectionMetrics) incWatchTimeoutCount() {
	m.WatchTimeoutCount.Add(1)
}

func (m *ConnectionMetrics) incSpotCount() {
	m.SpotCount.Add(1)
}

func (m *ConnectionMetrics) incSpotDupCount() {
	m.SpotDupCount.Add(1)
}

func (m *ConnectionMetrics) incTxHoldCount() {
	m.TxHoldCount.Add(1)
}

func (m *ConnectionMetrics) incTxErrCount() {
	m.TxErrCount.Add(1)
}

func (m *ConnectionMetrics) incProbeCount() {
	m.ProbeCount.Add(1)
}

func (m *ConnectionMetrics) incJournalCount() {
	m.JournalCount.Add(1)
}

func (m *ConnectionMetrics) incJournalErrCount() {
	m.JournalErrCount.Add(1)
}

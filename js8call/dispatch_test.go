package js8call

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simplyequipped/js8call-interface/js8"
	"github.com/simplyequipped/js8call-interface/logger"
)

// testWriter collects dispatched messages in order.
type testWriter struct {
	mu      sync.Mutex
	written []*js8.Message
	err     error
}

func (w *testWriter) write(msg *js8.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msg)

	return nil
}

func (w *testWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.written)
}

func (w *testWriter) last() *js8.Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.written) == 0 {
		return nil
	}

	return w.written[len(w.written)-1]
}

func newTestDispatcher(store *StateStore, writer *testWriter) (*txDispatcher, *ConnectionMetrics) {
	metrics := &ConnectionMetrics{}
	ml := logger.NewMockLogger()
	ml.On("Error", mock.Anything, mock.Anything).Return()
	d := newTxDispatcher(store, writer.write, ml, metrics)

	return d, metrics
}

func TestDispatcher_EnqueueValidation(t *testing.T) {
	d, _ := newTestDispatcher(NewStateStore(), &testWriter{})

	assert.ErrorIs(t, d.enqueue(nil), ErrMessageNil)

	rx := js8.NewTypedMessage(js8.TypeRxSpot)
	assert.ErrorIs(t, d.enqueue(rx), ErrNotTransmitType)

	msg := js8.NewTypedMessage(js8.TypeRigGetFreq)
	require.NoError(t, d.enqueue(msg))
	assert.Equal(t, js8.StatusQueued, msg.Status())
	assert.Equal(t, 1, d.pending())
}

func TestDispatcher_NonSendTypesAlwaysDispatch(t *testing.T) {
	store := NewStateStore()
	// the modem is transmitting
	store.SetTxText("K1ABC  HELLO " + js8.EOM)

	writer := &testWriter{}
	d, _ := newTestDispatcher(store, writer)

	msg := js8.NewTypedMessage(js8.TypeModeGetSpeed)
	require.NoError(t, d.enqueue(msg))

	d.dispatchTask()

	assert.Equal(t, 1, writer.count())
	assert.Equal(t, js8.StatusSent, msg.Status())
	assert.Equal(t, 0, d.pending())
}

func TestDispatcher_SendHeldWhileBusy(t *testing.T) {
	store := NewStateStore()
	store.SetTxText("K1ABC  HELLO " + js8.EOM)

	writer := &testWriter{}
	d, metrics := newTestDispatcher(store, writer)

	send := js8.NewMessage("N0XYZ", "HELLO")
	require.NoError(t, d.enqueue(send))

	d.dispatchTask()
	assert.Equal(t, 0, writer.count())
	assert.Equal(t, js8.StatusQueued, send.Status())
	assert.Equal(t, uint64(1), metrics.TxHoldCount.Load())

	// the modem finished transmitting
	store.SetTxText("")
	d.dispatchTask()

	assert.Equal(t, 1, writer.count())
	assert.Same(t, send, writer.last())

	// a directed send stays QUEUED until the outgoing monitor observes it
	assert.Equal(t, js8.StatusQueued, send.Status())
}

func TestDispatcher_HeldSendDoesNotBlockOtherTypes(t *testing.T) {
	store := NewStateStore()
	store.SetTxText("K1ABC  HELLO " + js8.EOM)

	writer := &testWriter{}
	d, _ := newTestDispatcher(store, writer)

	send := js8.NewMessage("N0XYZ", "HELLO")
	require.NoError(t, d.enqueue(send))
	speed := js8.NewTypedMessage(js8.TypeModeGetSpeed)
	require.NoError(t, d.enqueue(speed))

	d.dispatchTask()

	// the speed request bypasses the held send
	require.Equal(t, 1, writer.count())
	assert.Same(t, speed, writer.last())
	assert.Equal(t, 1, d.pending())
	assert.Equal(t, js8.StatusQueued, send.Status())
}

func TestDispatcher_ForceHoldAfterSend(t *testing.T) {
	store := NewStateStore()
	store.SetTxText("")

	writer := &testWriter{}
	d, _ := newTestDispatcher(store, writer)

	first := js8.NewMessage("N0XYZ", "FIRST")
	second := js8.NewMessage("N0XYZ", "SECOND")
	require.NoError(t, d.enqueue(first))
	require.NoError(t, d.enqueue(second))

	d.dispatchTask()
	require.Equal(t, 1, writer.count())
	assert.Same(t, first, writer.last())

	// tx_text has not reflected the first send yet; the second is held even
	// though the busy flag still reads idle
	d.dispatchTask()
	assert.Equal(t, 1, writer.count())

	// the first send shows up in tx_text and then clears; the hold lifts
	// with the busy flag
	store.SetTxText("N0XYZ  FIRST")
	d.dispatchTask()
	assert.Equal(t, 1, writer.count())

	store.SetTxText("")
	d.dispatchTask()

	require.Equal(t, 2, writer.count())
	assert.Same(t, second, writer.last())
}

func TestDispatcher_ForceHoldExpires(t *testing.T) {
	store := NewStateStore()
	store.SetTxText("")

	writer := &testWriter{}
	d, _ := newTestDispatcher(store, writer)

	first := js8.NewMessage("N0XYZ", "FIRST")
	second := js8.NewMessage("N0XYZ", "SECOND")
	require.NoError(t, d.enqueue(first))
	require.NoError(t, d.enqueue(second))

	d.dispatchTask()
	require.Equal(t, 1, writer.count())

	// the modem silently dropped the send; tx_text never changes and the
	// hold expires instead of wedging the queue
	time.Sleep(forceHoldExpiry + 100*time.Millisecond)
	d.dispatchTask()

	assert.Equal(t, 2, writer.count())
}

func TestDispatcher_BusyIgnoredDuringWatch(t *testing.T) {
	store := NewStateStore()
	store.SetTxText("")

	writer := &testWriter{}
	d, _ := newTestDispatcher(store, writer)

	// a watch resets tx_text to nil; the dispatcher keeps its last busy
	// reading instead of treating the reset as idle
	store.SetTxText("K1ABC  HELLO")
	d.dispatchTask()

	_, signal := store.beginWatch(StateTxText)
	defer store.cancelWatch(StateTxText, signal, "K1ABC  HELLO")

	send := js8.NewMessage("N0XYZ", "HELLO")
	require.NoError(t, d.enqueue(send))

	d.dispatchTask()
	assert.Equal(t, 0, writer.count())
}

func TestDispatcher_WriteError(t *testing.T) {
	store := NewStateStore()
	store.SetTxText("")

	writer := &testWriter{err: errors.New("broken pipe")}
	d, metrics := newTestDispatcher(store, writer)

	msg := js8.NewMessage("N0XYZ", "HELLO")
	require.NoError(t, d.enqueue(msg))

	d.dispatchTask()

	assert.Equal(t, js8.StatusFailed, msg.Status())
	assert.Equal(t, uint64(1), metrics.TxErrCount.Load())
	assert.Equal(t, 0, d.pending())
}

package js8call

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplyequipped/js8call-interface/js8"
)

func TestStateStore_SetGet(t *testing.T) {
	store := NewStateStore()

	// every variable starts unset
	for _, name := range stateVars {
		assert.Nil(t, store.Get(name), "variable %s should start unset", name)
	}

	store.SetDial(7078000)
	dial, ok := store.Dial()
	require.True(t, ok)
	assert.Equal(t, int64(7078000), dial)

	store.SetGrid("EM19")
	grid, ok := store.Grid()
	require.True(t, ok)
	assert.Equal(t, "EM19", grid)

	store.SetSpeed(js8.SpeedFast)
	speed, ok := store.Speed()
	require.True(t, ok)
	assert.Equal(t, js8.SpeedFast, speed)

	// unknown variables are rejected
	store.Set(StateVar("bogus"), 1)
	assert.Nil(t, store.Get(StateVar("bogus")))
	assert.False(t, store.Known(StateVar("bogus")))
	assert.True(t, store.Known(StateGrid))
}

func TestStateStore_TypedAccessorUnset(t *testing.T) {
	store := NewStateStore()

	_, ok := store.Dial()
	assert.False(t, ok)

	_, ok = store.Callsign()
	assert.False(t, ok)

	_, ok = store.Inbox()
	assert.False(t, ok)
}

func TestStateStore_WatchSignal(t *testing.T) {
	store := NewStateStore()
	store.SetGrid("EM19")

	prev, signal := store.beginWatch(StateGrid)
	assert.Equal(t, "EM19", prev)
	assert.True(t, store.Watched(StateGrid))

	// the watch resets the variable so a stale value cannot satisfy it
	assert.Nil(t, store.Get(StateGrid))

	store.SetGrid("FN31")

	select {
	case <-signal:
	case <-time.After(time.Second):
		t.Fatal("waiter was not signalled")
	}

	grid, ok := store.Grid()
	require.True(t, ok)
	assert.Equal(t, "FN31", grid)
	assert.False(t, store.Watched(StateGrid))
}

func TestStateStore_CancelWatchRollback(t *testing.T) {
	store := NewStateStore()
	store.SetGrid("EM19")

	prev, signal := store.beginWatch(StateGrid)

	result := store.cancelWatch(StateGrid, signal, prev)
	assert.Equal(t, "EM19", result)

	grid, ok := store.Grid()
	require.True(t, ok)
	assert.Equal(t, "EM19", grid)
	assert.False(t, store.Watched(StateGrid))
}

func TestStateStore_CancelWatchRace(t *testing.T) {
	store := NewStateStore()
	store.SetGrid("EM19")

	prev, signal := store.beginWatch(StateGrid)

	// a response that lands between timeout and cancellation wins over the
	// rollback
	store.SetGrid("FN31")

	result := store.cancelWatch(StateGrid, signal, prev)
	assert.Equal(t, "FN31", result)

	grid, _ := store.Grid()
	assert.Equal(t, "FN31", grid)
}

func TestStateStore_CancelWatchNilPrev(t *testing.T) {
	store := NewStateStore()

	prev, signal := store.beginWatch(StateGrid)
	assert.Nil(t, prev)

	result := store.cancelWatch(StateGrid, signal, prev)
	assert.Nil(t, result)
	assert.Nil(t, store.Get(StateGrid))
}

func TestStateStore_NilSetDoesNotSignal(t *testing.T) {
	store := NewStateStore()

	_, signal := store.beginWatch(StateGrid)

	store.Set(StateGrid, nil)

	select {
	case <-signal:
		t.Fatal("nil set must not signal waiters")
	case <-time.After(50 * time.Millisecond):
	}

	assert.True(t, store.Watched(StateGrid))
}

package js8call

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplyequipped/js8call-interface/js8"
)

func newTestSpotStore(capacity int) *SpotStore {
	return NewSpotStore(capacity, DefaultSpotDedupWindow,
		func() string { return "Default" },
		func() (string, bool) { return "EM19", true },
	)
}

func spotAt(origin string, at time.Time) *js8.Spot {
	return &js8.Spot{
		Origin:      origin,
		Destination: "@ALLCALL",
		SNR:         -10,
		Dial:        7078000,
		Freq:        7079000,
		Value:       "CQ CQ CQ",
		Time:        at,
	}
}

func TestSpotStore_AddAndDedup(t *testing.T) {
	store := newTestSpotStore(100)
	now := time.Now()

	assert.True(t, store.Add(spotAt("K1ABC", now)))

	// the modem reports one reception through several message types; a
	// matching spot within the dedup window is the same event
	dup := spotAt("K1ABC", now.Add(3*time.Second))
	assert.False(t, store.Add(dup))
	assert.Equal(t, 1, store.Len())

	// different text is a different event
	other := spotAt("K1ABC", now.Add(3*time.Second))
	other.Value = "HEARTBEAT"
	assert.True(t, store.Add(other))

	// outside the dedup window the same text is heard again
	later := spotAt("K1ABC", now.Add(DefaultSpotDedupWindow+5*time.Second))
	assert.True(t, store.Add(later))
	assert.Equal(t, 3, store.Len())

	assert.False(t, store.Add(nil))
}

func TestSpotStore_ProfileAndLocation(t *testing.T) {
	store := newTestSpotStore(100)

	spot := spotAt("K1ABC", time.Now())
	spot.Grid = "FN31"
	require.True(t, store.Add(spot))

	assert.Equal(t, "Default", spot.Profile)
	assert.Greater(t, spot.Distance, 0)
	assert.GreaterOrEqual(t, spot.Bearing, 0)

	// no grid, no location
	bare := spotAt("N0XYZ", time.Now())
	require.True(t, store.Add(bare))
	assert.Zero(t, bare.Distance)
}

func TestSpotStore_CapacityDropOldest(t *testing.T) {
	store := newTestSpotStore(10)
	now := time.Now()

	for i := 0; i < 15; i++ {
		spot := spotAt(fmt.Sprintf("K%dABC", i), now.Add(time.Duration(i)*time.Second))
		require.True(t, store.Add(spot))
	}

	assert.Equal(t, 10, store.Len())

	all := store.Query(SpotFilter{})
	require.Len(t, all, 10)
	assert.Equal(t, "K5ABC", all[0].Origin)
	assert.Equal(t, "K14ABC", all[9].Origin)
}

func TestSpotStore_QueryFilters(t *testing.T) {
	store := newTestSpotStore(100)
	now := time.Now()

	near := spotAt("K1ABC", now.Add(-time.Minute))
	near.Grid = "EM29"
	require.True(t, store.Add(near))

	far := spotAt("N0XYZ", now)
	far.Grid = "FN31AB"
	far.Cmd = js8.CmdHeartbeat
	far.Destination = "@HB"
	far.Dial = 14078000
	far.Freq = 14079000
	require.True(t, store.Add(far))

	assert.Len(t, store.Query(SpotFilter{Origin: "K1ABC"}), 1)
	assert.Len(t, store.Query(SpotFilter{Destination: "@HB"}), 1)
	assert.Len(t, store.Query(SpotFilter{Cmd: js8.CmdHeartbeat}), 1)
	assert.Len(t, store.Query(SpotFilter{Dial: 14078000}), 1)
	assert.Len(t, store.Query(SpotFilter{Band: "40m"}), 1)
	assert.Len(t, store.Query(SpotFilter{Band: "20m"}), 1)
	assert.Empty(t, store.Query(SpotFilter{Band: "80m"}))

	// grid filters match by prefix, case-insensitively
	assert.Len(t, store.Query(SpotFilter{Grid: "fn31"}), 1)
	assert.Empty(t, store.Query(SpotFilter{Grid: "FN31AB12"}))

	assert.Len(t, store.Query(SpotFilter{MaxAge: 10 * time.Second}), 1)

	// distance filtering requires a computed distance
	nearDist := store.Query(SpotFilter{Origin: "K1ABC"})[0].Distance
	require.Greater(t, nearDist, 0)
	assert.Len(t, store.Query(SpotFilter{MaxDistance: nearDist}), 1)
}

func TestSpotStore_QueryLast(t *testing.T) {
	store := newTestSpotStore(100)
	now := time.Now()

	for i := 0; i < 5; i++ {
		require.True(t, store.Add(spotAt(fmt.Sprintf("K%dABC", i), now.Add(time.Duration(i)*time.Second))))
	}

	last := store.Query(SpotFilter{Last: 2})
	require.Len(t, last, 2)
	assert.Equal(t, "K3ABC", last[0].Origin)
	assert.Equal(t, "K4ABC", last[1].Origin)

	assert.Len(t, store.LastHeard(3), 3)
	assert.Len(t, store.LastHeard(100), 5)
}

func TestSpotStore_Since(t *testing.T) {
	store := newTestSpotStore(100)
	now := time.Now()

	require.True(t, store.Add(spotAt("K1ABC", now.Add(-time.Minute))))
	require.True(t, store.Add(spotAt("N0XYZ", now)))

	since := store.Since(now.Add(-10 * time.Second))
	require.Len(t, since, 1)
	assert.Equal(t, "N0XYZ", since[0].Origin)
}

func TestSpotStore_OriginGrid(t *testing.T) {
	store := newTestSpotStore(100)
	now := time.Now()

	first := spotAt("K1ABC", now.Add(-time.Minute))
	first.Grid = "EM29"
	require.True(t, store.Add(first))

	// a later spot without a grid does not mask the earlier report
	require.True(t, store.Add(spotAt("K1ABC", now)))

	grid, ok := store.OriginGrid("K1ABC")
	require.True(t, ok)
	assert.Equal(t, "EM29", grid)

	_, ok = store.OriginGrid("W9NONE")
	assert.False(t, ok)
}

func TestSpotStore_JournalForwarding(t *testing.T) {
	store := newTestSpotStore(100)

	journal := make(chan *js8.Spot, 1)
	store.setJournal(journal)

	spot := spotAt("K1ABC", time.Now())
	require.True(t, store.Add(spot))

	select {
	case forwarded := <-journal:
		assert.Same(t, spot, forwarded)
	default:
		t.Fatal("accepted spot was not forwarded to the journal")
	}

	// a full journal channel drops the entry, never the spot
	require.True(t, store.Add(spotAt("N0XYZ", time.Now())))
	other := spotAt("W1AW", time.Now())
	require.True(t, store.Add(other))
	assert.Equal(t, 3, store.Len())
}

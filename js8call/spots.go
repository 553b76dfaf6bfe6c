package js8call

import (
	"strings"
	"sync"
	"time"

	"github.com/simplyequipped/js8call-interface/js8"
	"github.com/simplyequipped/js8call-interface/maidenhead"
)

// DefaultSpotDedupWindow is how far apart in time two matching spots may be
// observed and still describe the same over-the-air event. The modem reports
// one reception through several API message types within a few seconds.
const DefaultSpotDedupWindow = 10 * time.Second

// SpotFilter selects spots from the store. Zero-valued fields match
// everything.
type SpotFilter struct {
	// Origin matches spots heard from this callsign.
	Origin string
	// Destination matches spots directed to this callsign or group.
	Destination string
	// Grid matches spots reporting this grid square, compared by prefix so
	// a 4-character filter matches 6-character grids.
	Grid string
	// MaxDistance matches spots within this distance of the local station.
	// Spots with no known distance never match.
	MaxDistance int
	// MaxAge matches spots recorded within this duration.
	MaxAge time.Duration
	// Profile matches spots recorded under this configuration profile.
	Profile string
	// Dial matches spots heard on this dial frequency in Hz.
	Dial int64
	// Band matches spots heard on this band designator, like "40m".
	Band string
	// Cmd matches spots carrying this directed command.
	Cmd string
	// Last truncates the result to the N most recent matches.
	Last int
}

// SpotStore holds deduplicated heard-station records in arrival order,
// oldest first. The store is bounded: once capacity is exceeded the oldest
// spot is dropped.
type SpotStore struct {
	mu          sync.Mutex
	spots       []*js8.Spot
	capacity    int
	dedupWindow time.Duration

	profile     func() string
	stationGrid func() (string, bool)
	journal     chan *js8.Spot
}

// NewSpotStore creates a spot store with the given capacity. The profile
// function labels accepted spots with the active configuration profile; the
// stationGrid function supplies the local grid square used to compute spot
// distance and bearing. Either may be nil.
func NewSpotStore(capacity int, dedupWindow time.Duration, profile func() string, stationGrid func() (string, bool)) *SpotStore {
	if capacity <= 0 {
		capacity = 1000
	}
	if dedupWindow <= 0 {
		dedupWindow = DefaultSpotDedupWindow
	}

	return &SpotStore{
		spots:       make([]*js8.Spot, 0, capacity),
		capacity:    capacity,
		dedupWindow: dedupWindow,
		profile:     profile,
		stationGrid: stationGrid,
	}
}

// setJournal attaches a channel accepted spots are forwarded to. Forwarding
// never blocks; a full channel drops the journal entry, not the spot.
func (s *SpotStore) setJournal(ch chan *js8.Spot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal = ch
}

// Add records a spot unless a duplicate was observed within the dedup
// window. It returns false when the spot was rejected as a duplicate.
func (s *SpotStore) Add(spot *js8.Spot) bool {
	if spot == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// only recent spots can be duplicates, scan newest first
	for i := len(s.spots) - 1; i >= 0; i-- {
		prev := s.spots[i]
		if spot.Time.Sub(prev.Time) > s.dedupWindow {
			break
		}
		if spot.DuplicateOf(prev) {
			return false
		}
	}

	if s.profile != nil {
		spot.Profile = s.profile()
	}
	s.locate(spot)

	s.spots = append(s.spots, spot)
	if len(s.spots) > s.capacity {
		overflow := len(s.spots) - s.capacity
		s.spots = append(s.spots[:0], s.spots[overflow:]...)
	}

	if s.journal != nil {
		select {
		case s.journal <- spot:
		default:
		}
	}

	return true
}

// locate fills in the distance and bearing from the local station when both
// grid squares are known.
func (s *SpotStore) locate(spot *js8.Spot) {
	if spot.Grid == "" || s.stationGrid == nil {
		return
	}

	grid, ok := s.stationGrid()
	if !ok || grid == "" {
		return
	}

	distance, err := maidenhead.Distance(grid, spot.Grid)
	if err != nil {
		return
	}
	bearing, err := maidenhead.Bearing(grid, spot.Grid)
	if err != nil {
		return
	}

	spot.Distance = distance
	spot.Bearing = bearing
}

// Len returns the number of stored spots.
func (s *SpotStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.spots)
}

// Query returns the spots matching the filter, oldest first. The result is
// a copy; stored spots are shared and must not be modified.
func (s *SpotStore) Query(filter SpotFilter) []*js8.Spot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	matched := make([]*js8.Spot, 0, len(s.spots))
	for _, spot := range s.spots {
		if filter.matches(spot, now) {
			matched = append(matched, spot)
		}
	}

	if filter.Last > 0 && len(matched) > filter.Last {
		matched = matched[len(matched)-filter.Last:]
	}

	return matched
}

// LastHeard returns the count most recently recorded spots, oldest first.
func (s *SpotStore) LastHeard(count int) []*js8.Spot {
	return s.Query(SpotFilter{Last: count})
}

// Since returns all spots recorded after t, oldest first.
func (s *SpotStore) Since(t time.Time) []*js8.Spot {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*js8.Spot, 0)
	for _, spot := range s.spots {
		if spot.Time.After(t) {
			matched = append(matched, spot)
		}
	}

	return matched
}

// OriginGrid returns the most recently reported grid square for the given
// callsign. It returns ok == false when the station has never reported one.
func (s *SpotStore) OriginGrid(origin string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.spots) - 1; i >= 0; i-- {
		spot := s.spots[i]
		if spot.Origin == origin && spot.Grid != "" {
			return spot.Grid, true
		}
	}

	return "", false
}

// matches reports whether the spot satisfies every set filter field.
func (f SpotFilter) matches(spot *js8.Spot, now time.Time) bool {
	if f.Origin != "" && spot.Origin != f.Origin {
		return false
	}
	if f.Destination != "" && spot.Destination != f.Destination {
		return false
	}
	if f.Grid != "" && !hasGridPrefix(spot.Grid, f.Grid) {
		return false
	}
	if f.MaxDistance > 0 && (spot.Distance == 0 || spot.Distance > f.MaxDistance) {
		return false
	}
	if f.MaxAge > 0 && now.Sub(spot.Time) > f.MaxAge {
		return false
	}
	if f.Profile != "" && spot.Profile != f.Profile {
		return false
	}
	if f.Dial != 0 && spot.Dial != f.Dial {
		return false
	}
	if f.Band != "" && FreqToBand(spotFreq(spot)) != f.Band {
		return false
	}
	if f.Cmd != "" && spot.Cmd != f.Cmd {
		return false
	}

	return true
}

// spotFreq returns the best known frequency of a spot for band matching.
func spotFreq(spot *js8.Spot) int64 {
	if spot.Freq != 0 {
		return spot.Freq
	}

	return spot.Dial
}

// hasGridPrefix compares grid squares case-insensitively by prefix, so a
// 4-character filter matches the containing 6-character sub-squares.
func hasGridPrefix(grid, prefix string) bool {
	if len(grid) < len(prefix) {
		return false
	}

	return strings.EqualFold(grid[:len(prefix)], prefix)
}

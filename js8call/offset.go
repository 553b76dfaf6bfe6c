package js8call

import (
	"sort"
	"time"

	"github.com/simplyequipped/js8call-interface/js8"
)

const (
	// minUsableOffset and maxUsableOffset bound the passband section
	// considered when searching for a clear offset.
	minUsableOffset = 1000
	maxUsableOffset = 2500

	// offsetSafetyFactor widens the required clear section beyond the
	// transmitted bandwidth so adjacent signals keep a guard gap.
	offsetSafetyFactor = 1.25

	// offsetActivityAge is how recently an offset must have produced a
	// decode to count as an occupied signal.
	offsetActivityAge = 100 * time.Second
)

// signalSpan is one occupied slice of the passband in Hz.
type signalSpan struct {
	low  int64
	high int64
}

// FindClearOffset proposes a passband offset clear of recently heard
// signals. Only decoded signals are visible through the API, so other QRM
// cannot be avoided. Heard signals are assumed to occupy the turbo
// bandwidth since RX.ACTIVITY decodes do not report the sender's speed.
//
// It returns the current offset and false when no heard signal overlaps
// it, or when no clear section wide enough for the given speed exists.
func (a *ActivityMonitor) FindClearOffset(current int64, speed js8.Speed) (int64, bool) {
	cutoff := time.Now().Add(-offsetActivityAge)

	var signals []signalSpan
	for _, act := range a.Snapshot() {
		if act.Last.Before(cutoff) {
			continue
		}
		signals = append(signals, signalSpan{
			low:  act.Offset,
			high: act.Offset + js8.SpeedTurbo.Bandwidth(),
		})
	}

	return findClearOffset(signals, current, speed.Bandwidth())
}

// findClearOffset searches the gaps between occupied signal spans for the
// clear section nearest the current offset.
func findClearOffset(signals []signalSpan, current, bandwidth int64) (int64, bool) {
	own := signalSpan{low: current, high: current + bandwidth}

	overlapped := false
	for _, s := range signals {
		if s.low < own.high && s.high > own.low {
			overlapped = true
			break
		}
	}
	if !overlapped {
		return current, false
	}

	safe := int64(float64(bandwidth) * offsetSafetyFactor)

	inRange := make([]signalSpan, 0, len(signals))
	for _, s := range signals {
		if s.high < minUsableOffset || s.low > maxUsableOffset {
			continue
		}
		inRange = append(inRange, s)
	}
	sort.Slice(inRange, func(i, j int) bool { return inRange[i].low < inRange[j].low })

	// walk the gaps between occupied spans, keeping those wide enough for
	// a guarded transmission
	var sections []signalSpan
	prev := int64(minUsableOffset)
	for _, s := range inRange {
		if s.low-prev >= safe {
			sections = append(sections, signalSpan{low: prev, high: s.low})
		}
		if s.high > prev {
			prev = s.high
		}
	}
	if maxUsableOffset-prev >= safe {
		sections = append(sections, signalSpan{low: prev, high: maxUsableOffset})
	}

	// nearest section strictly above or below the current offset
	var best signalSpan
	bestDist := int64(-1)
	for _, sec := range sections {
		var dist int64
		switch {
		case sec.high < current:
			dist = current - sec.high
		case sec.low > current:
			dist = sec.low - current
		default:
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = sec, dist
		}
	}
	if bestDist < 0 {
		return current, false
	}

	// moving up lands just inside the section with the guard gap below;
	// moving down leaves the guard gap above
	if best.low > current {
		return best.low + (safe - bandwidth), true
	}

	return best.high - safe, true
}

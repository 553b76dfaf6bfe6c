package js8call

import (
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/simplyequipped/js8call-interface/js8"
)

const (
	// activityTextLimit caps the accumulated text per passband offset. When
	// exceeded, the oldest text is discarded and the tail kept.
	activityTextLimit = 1024

	// activityIdleLimit is how long an offset may go without fresh decodes
	// before its accumulated text is discarded.
	activityIdleLimit = 5 * time.Minute

	// activityCullInterval is how often idle offsets are culled.
	activityCullInterval = 30 * time.Second
)

// OffsetActivity is the accumulated decode activity at one passband offset.
type OffsetActivity struct {
	// Offset is the passband offset frequency in Hz.
	Offset int64
	// Freq is the last reported dial-plus-offset frequency in Hz.
	Freq int64
	// SNR is the last reported signal-to-noise ratio in dB.
	SNR int
	// Text is the accumulated decoded text, most recent at the end.
	Text string
	// Last is when the offset last produced a decode.
	Last time.Time
}

// offsetActivity is the mutable accumulation state per offset.
type offsetActivity struct {
	mu   sync.Mutex
	freq int64
	snr  int
	text string
	last time.Time
}

// ActivityMonitor accumulates RX.ACTIVITY decodes per passband offset.
// JS8Call reports raw decode fragments as they arrive; grouping them by
// offset reconstructs the ongoing text at each audio frequency, which is
// how an operator reads a busy waterfall.
type ActivityMonitor struct {
	offsets *xsync.MapOf[int64, *offsetActivity]
	changed func(activity OffsetActivity)
}

// NewActivityMonitor creates an activity monitor. The changed function, if
// non-nil, is called on its own goroutine with the updated accumulation of
// every offset that received fresh text.
func NewActivityMonitor(changed func(activity OffsetActivity)) *ActivityMonitor {
	return &ActivityMonitor{
		offsets: xsync.NewMapOf[int64, *offsetActivity](),
		changed: changed,
	}
}

// Observe folds an RX.ACTIVITY message into the per-offset accumulation.
// Messages without text or offset are ignored.
func (a *ActivityMonitor) Observe(msg *js8.Message) {
	if msg == nil || msg.Offset == 0 || msg.Value == "" {
		return
	}

	entry, _ := a.offsets.LoadOrCompute(msg.Offset, func() *offsetActivity {
		return &offsetActivity{}
	})

	entry.mu.Lock()
	entry.text += msg.Value
	if len(entry.text) > activityTextLimit {
		entry.text = entry.text[len(entry.text)-activityTextLimit:]
	}
	entry.freq = msg.Freq
	entry.snr = msg.SNR
	entry.last = msg.Time
	snapshot := entry.snapshot(msg.Offset)
	entry.mu.Unlock()

	if a.changed != nil {
		go a.changed(snapshot)
	}
}

// Snapshot returns the current accumulation of every active offset,
// ordered by offset.
func (a *ActivityMonitor) Snapshot() []OffsetActivity {
	var activity []OffsetActivity
	a.offsets.Range(func(offset int64, entry *offsetActivity) bool {
		entry.mu.Lock()
		activity = append(activity, entry.snapshot(offset))
		entry.mu.Unlock()

		return true
	})

	sort.Slice(activity, func(i, j int) bool { return activity[i].Offset < activity[j].Offset })

	return activity
}

// cullTask discards offsets that have been idle too long. It runs as an
// interval task under the task manager.
func (a *ActivityMonitor) cullTask() bool {
	cutoff := time.Now().Add(-activityIdleLimit)
	a.offsets.Range(func(offset int64, entry *offsetActivity) bool {
		entry.mu.Lock()
		idle := entry.last.Before(cutoff)
		entry.mu.Unlock()

		if idle {
			a.offsets.Delete(offset)
		}

		return true
	})

	return true
}

// snapshot copies the accumulation state. Callers hold entry.mu.
func (o *offsetActivity) snapshot(offset int64) OffsetActivity {
	return OffsetActivity{
		Offset: offset,
		Freq:   o.freq,
		SNR:    o.snr,
		Text:   o.text,
		Last:   o.last,
	}
}

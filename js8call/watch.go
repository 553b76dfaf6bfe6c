package js8call

import (
	"context"
	"sync"
	"time"

	"github.com/simplyequipped/js8call-interface/internal/pool"
)

// watcher performs watch round-trips against the state store: it resets a
// variable, waits for the receive path to report a fresh value, and rolls
// back to the previous value on timeout.
//
// Watches are serialized. The modem answers state requests one at a time,
// and overlapping resets of different variables would make rollback
// ambiguous, so a second watch blocks until the first completes.
type watcher struct {
	mu        sync.Mutex
	store     *StateStore
	timeout   func() time.Duration
	onTimeout func()
}

func newWatcher(store *StateStore, timeout func() time.Duration, onTimeout func()) *watcher {
	return &watcher{
		store:     store,
		timeout:   timeout,
		onTimeout: onTimeout,
	}
}

// watch blocks until the variable receives a fresh value from the modem or
// the watch timeout elapses. On timeout the previous value is restored and
// returned, so a caller always observes the variable's effective value.
//
// Unknown variables return nil immediately. A canceled context behaves like
// a timeout.
func (w *watcher) watch(ctx context.Context, name StateVar) any {
	return w.watchRequest(ctx, name, nil)
}

// watchRequest behaves like watch but issues the given request after the
// variable has been reset, so a response that raced the reset cannot satisfy
// the watch with a stale value.
func (w *watcher) watchRequest(ctx context.Context, name StateVar, request func()) any {
	if !w.store.Known(name) {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	prev, signal := w.store.beginWatch(name)

	if request != nil {
		request()
	}

	timer := pool.GetTimer(w.timeout())
	defer pool.PutTimer(timer)

	select {
	case <-signal:
		return w.store.Get(name)

	case <-ctx.Done():
		return w.store.cancelWatch(name, signal, prev)

	case <-timer.C:
		if w.onTimeout != nil {
			w.onTimeout()
		}

		return w.store.cancelWatch(name, signal, prev)
	}
}

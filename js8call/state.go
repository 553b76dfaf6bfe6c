package js8call

import (
	"sync"

	"github.com/simplyequipped/js8call-interface/internal/util"
	"github.com/simplyequipped/js8call-interface/js8"
)

// StateVar identifies a modem state variable mirrored by the local state
// store.
type StateVar string

// State variables reported by the modem. Every variable starts out unset
// and becomes known once the modem reports it.
const (
	StateDial         StateVar = "dial"
	StateFreq         StateVar = "freq"
	StateOffset       StateVar = "offset"
	StateCallsign     StateVar = "callsign"
	StateSpeed        StateVar = "speed"
	StateGrid         StateVar = "grid"
	StateInfo         StateVar = "info"
	StateRxText       StateVar = "rx_text"
	StateTxText       StateVar = "tx_text"
	StateInbox        StateVar = "inbox"
	StateCallActivity StateVar = "call_activity"
	StateBandActivity StateVar = "band_activity"
	StateSelectedCall StateVar = "selected_call"
	StatePTT          StateVar = "ptt"
)

// stateVars lists every known state variable.
var stateVars = []StateVar{
	StateDial, StateFreq, StateOffset,
	StateCallsign, StateSpeed, StateGrid, StateInfo,
	StateRxText, StateTxText,
	StateInbox, StateCallActivity, StateBandActivity,
	StateSelectedCall, StatePTT,
}

// StateStore mirrors the modem state reported over the API. Each variable
// holds either nil (never reported, or reset by an in-flight watch) or a
// typed value written by the receive path.
//
// The store signals watch waiters whenever a variable receives a non-nil
// value, which lets a watch block instead of polling.
type StateStore struct {
	mu      sync.Mutex
	vars    map[StateVar]any
	waiters map[StateVar][]chan struct{}
}

// NewStateStore creates a state store with every variable unset.
func NewStateStore() *StateStore {
	store := &StateStore{
		vars:    make(map[StateVar]any, len(stateVars)),
		waiters: make(map[StateVar][]chan struct{}),
	}
	for _, name := range stateVars {
		store.vars[name] = nil
	}

	return store
}

// Known returns true if name is a tracked state variable.
func (s *StateStore) Known(name StateVar) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.vars[name]

	return ok
}

// Get returns the current value of the variable, or nil when the variable
// is unset or unknown.
func (s *StateStore) Get(name StateVar) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.vars[name]
}

// Set stores a value for the variable and, when the value is non-nil,
// signals all watch waiters registered for it.
func (s *StateStore) Set(name StateVar, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vars[name]; !ok {
		return
	}

	s.vars[name] = value

	if value == nil {
		return
	}

	for _, ch := range s.waiters[name] {
		close(ch)
	}
	delete(s.waiters, name)
}

// Watched returns true if a watch is currently waiting on the variable.
func (s *StateStore) Watched(name StateVar) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.waiters[name]) > 0
}

// beginWatch atomically records the current value, resets the variable to
// nil and registers a waiter channel. The channel is closed by the next
// non-nil Set on the variable.
func (s *StateStore) beginWatch(name StateVar) (prev any, signal chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev = s.vars[name]
	s.vars[name] = nil

	signal = make(chan struct{})
	s.waiters[name] = append(s.waiters[name], signal)

	return prev, signal
}

// cancelWatch removes the waiter channel and, when the variable is still
// nil, restores the previous value. It returns the value the variable holds
// afterwards, so a response that raced the cancellation wins over the
// rollback.
func (s *StateStore) cancelWatch(name StateVar, signal chan struct{}, prev any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	waiters := s.waiters[name]
	for i, ch := range waiters {
		if ch == signal {
			s.waiters[name] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(s.waiters[name]) == 0 {
		delete(s.waiters, name)
	}

	if s.vars[name] == nil {
		s.vars[name] = prev
	}

	return s.vars[name]
}

// Typed accessors. The bool result reports whether the variable currently
// holds a value of the expected type; it is false while the variable is
// unset.

func (s *StateStore) Dial() (int64, bool)   { return stateValue[int64](s, StateDial) }
func (s *StateStore) Freq() (int64, bool)   { return stateValue[int64](s, StateFreq) }
func (s *StateStore) Offset() (int64, bool) { return stateValue[int64](s, StateOffset) }

func (s *StateStore) Callsign() (string, bool)     { return stateValue[string](s, StateCallsign) }
func (s *StateStore) Grid() (string, bool)         { return stateValue[string](s, StateGrid) }
func (s *StateStore) Info() (string, bool)         { return stateValue[string](s, StateInfo) }
func (s *StateStore) RxText() (string, bool)       { return stateValue[string](s, StateRxText) }
func (s *StateStore) TxText() (string, bool)       { return stateValue[string](s, StateTxText) }
func (s *StateStore) SelectedCall() (string, bool) { return stateValue[string](s, StateSelectedCall) }

func (s *StateStore) Speed() (js8.Speed, bool) { return stateValue[js8.Speed](s, StateSpeed) }
func (s *StateStore) PTT() (bool, bool)        { return stateValue[bool](s, StatePTT) }

func (s *StateStore) Inbox() ([]js8.InboxMessage, bool) {
	messages, ok := stateValue[[]js8.InboxMessage](s, StateInbox)
	return util.CloneSlice(messages, len(messages)), ok
}

func (s *StateStore) CallActivity() ([]js8.CallActivity, bool) {
	activity, ok := stateValue[[]js8.CallActivity](s, StateCallActivity)
	return util.CloneSlice(activity, len(activity)), ok
}

func (s *StateStore) BandActivity() ([]js8.BandActivity, bool) {
	activity, ok := stateValue[[]js8.BandActivity](s, StateBandActivity)
	return util.CloneSlice(activity, len(activity)), ok
}

func (s *StateStore) SetDial(val int64)   { s.Set(StateDial, val) }
func (s *StateStore) SetFreq(val int64)   { s.Set(StateFreq, val) }
func (s *StateStore) SetOffset(val int64) { s.Set(StateOffset, val) }

func (s *StateStore) SetCallsign(val string)     { s.Set(StateCallsign, val) }
func (s *StateStore) SetGrid(val string)         { s.Set(StateGrid, val) }
func (s *StateStore) SetInfo(val string)         { s.Set(StateInfo, val) }
func (s *StateStore) SetRxText(val string)       { s.Set(StateRxText, val) }
func (s *StateStore) SetTxText(val string)       { s.Set(StateTxText, val) }
func (s *StateStore) SetSelectedCall(val string) { s.Set(StateSelectedCall, val) }

func (s *StateStore) SetSpeed(val js8.Speed) { s.Set(StateSpeed, val) }
func (s *StateStore) SetPTT(val bool)        { s.Set(StatePTT, val) }

func (s *StateStore) SetInbox(val []js8.InboxMessage)        { s.Set(StateInbox, val) }
func (s *StateStore) SetCallActivity(val []js8.CallActivity) { s.Set(StateCallActivity, val) }
func (s *StateStore) SetBandActivity(val []js8.BandActivity) { s.Set(StateBandActivity, val) }

// stateValue reads a variable and asserts it to the expected type.
func stateValue[T any](s *StateStore, name StateVar) (T, bool) {
	var zero T

	val := s.Get(name)
	if val == nil {
		return zero, false
	}

	typed, ok := val.(T)
	if !ok {
		return zero, false
	}

	return typed, true
}

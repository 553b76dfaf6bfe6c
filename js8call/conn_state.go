package js8call

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/simplyequipped/js8call-interface/logger"
)

// ConnState represents the stages of a JS8Call session.
type ConnState uint32

// Session states. The TCP connection itself can outlive a Connected state:
// the session drops to Disconnected when the modem stops responding even if
// the socket is still open.
const (
	// DisconnectedState indicates that no validated session with the
	// modem exists.
	DisconnectedState ConnState = iota
	// ConnectedState indicates that the modem has recently produced
	// traffic and the session is usable.
	ConnectedState
)

// IsDisconnected returns if the current state is disconnected.
func (cs ConnState) IsDisconnected() bool { return cs == DisconnectedState }

// IsConnected returns if the current state is connected.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

// String returns string representation of the current state.
func (cs ConnState) String() string {
	switch cs {
	case DisconnectedState:
		return "disconnected"
	case ConnectedState:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnStateChangeHandler is a function type that represents a handler for session state changes.
// It is invoked when the state of a JS8Call session changes.
//
// Note: the handler will be invoked in a blocking mode. Take care with long-running implementations.
//
// The handler function receives two arguments:
//   - prevState: The previous session state.
//   - newState: The current session state.
type ConnStateChangeHandler func(conn *Connection, prevState ConnState, newState ConnState)

// ConnStateMgr manages the session state of a JS8Call connection.
//
// It provides methods for managing state transitions and notifying listeners of state changes.
// The state transitions are thread safe in concurrent environments.
type ConnStateMgr struct {
	mu               sync.Mutex
	ctx              context.Context
	cond             *sync.Cond
	state            atomic.Uint32
	conn             *Connection
	logger           logger.Logger
	asyncStateChange chan ConnState
	handlers         []ConnStateChangeHandler
}

// NewConnStateMgr creates a new ConnStateMgr instance, initializing it to the DisconnectedState.
//
// It accepts optional ConnStateChangeHandler functions that will be invoked when the session state changes.
func NewConnStateMgr(ctx context.Context, conn *Connection, handlers ...ConnStateChangeHandler) *ConnStateMgr {
	connState := &ConnStateMgr{
		ctx:              ctx,
		conn:             conn,
		asyncStateChange: make(chan ConnState, 10),
		handlers:         make([]ConnStateChangeHandler, 0, len(handlers)),
	}

	for _, handler := range handlers {
		connState.AddHandler(handler)
	}

	if conn != nil {
		connState.logger = conn.GetLogger()
	} else {
		connState.logger = logger.GetLogger()
	}

	connState.state.Store(uint32(DisconnectedState))
	connState.cond = sync.NewCond(&connState.mu)

	go connState.asyncStateChangeTask()

	return connState
}

// State returns the current session state.
func (cs *ConnStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

// AddHandler adds one or more ConnStateChangeHandler functions to be invoked on state changes.
func (cs *ConnStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.handlers = append(cs.handlers, handlers...)
}

// WaitState waits for the session state to reach the specified state or until the context is done.
// It returns nil if the desired state is reached, or an error if the context is canceled or times out.
func (cs *ConnStateMgr) WaitState(ctx context.Context, state ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.State() == state {
		return nil
	}

	stopFunc := context.AfterFunc(ctx, func() {
		cs.cond.Broadcast()
	})
	defer stopFunc()

	for cs.State() != state {
		select {
		case <-ctx.Done():
			cs.logger.Debug("wait session state interrupted", "cur_state", cs.State(), "desired_state", state)
			return ctx.Err()
		default:
			cs.cond.Wait()
		}
	}

	return nil
}

// ToDisconnected transitions the session state to DisconnectedState.
// This transition is allowed from any state and represents a lost or reset session.
// If the state is already DisconnectedState, the function is a no-op.
func (cs *ConnStateMgr) ToDisconnected() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	curState := cs.State()

	if curState.IsDisconnected() {
		return // Already in DisconnectedState, no need to transition
	}

	// change state to disconnected BEFORE all handlers finished
	cs.setState(DisconnectedState)

	cs.invokeHandlers(curState, DisconnectedState)
}

// ToConnected transitions the session state to ConnectedState, indicating
// that the modem produced traffic and the session is validated.
// If the state is already ConnectedState, the function is a no-op.
func (cs *ConnStateMgr) ToConnected() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	curState := cs.State()

	if curState.IsConnected() {
		return // Already in ConnectedState, no need to transition
	}

	cs.invokeHandlers(curState, ConnectedState)
	// change state after all handlers finished
	cs.setState(ConnectedState)
}

// ToDisconnectedAsync transitions the session state to DisconnectedState asynchronously.
//
// It will notify a goroutine and transition state in the background.
//
// If the state is the same as the current state, the function is a no-op.
func (cs *ConnStateMgr) ToDisconnectedAsync() {
	cs.changeStateAsync(DisconnectedState)
}

// ToConnectedAsync transitions the session state to ConnectedState asynchronously.
//
// It will notify a goroutine and transition state in the background.
//
// If the state is the same as the current state, the function is a no-op.
func (cs *ConnStateMgr) ToConnectedAsync() {
	cs.changeStateAsync(ConnectedState)
}

// IsDisconnected returns if the current state is disconnected.
func (cs *ConnStateMgr) IsDisconnected() bool {
	return cs.State().IsDisconnected()
}

// IsConnected returns if the current state is connected.
func (cs *ConnStateMgr) IsConnected() bool {
	return cs.State().IsConnected()
}

// setState atomically set current state to the newState. It also broadcasts a signal to any waiting goroutines.
func (cs *ConnStateMgr) setState(newState ConnState) {
	cs.state.Store(uint32(newState))
	cs.cond.Broadcast()
}

// invokeHandlers invokes all registered ConnStateChangeHandler functions with the previous and new states.
func (cs *ConnStateMgr) invokeHandlers(prevState ConnState, newState ConnState) {
	for _, handler := range cs.handlers {
		if handler != nil {
			handler(cs.conn, prevState, newState)
		}
	}
}

// changeStateAsync transitions the desired session state asynchronously.
//
// It will notify a goroutine and transition state in the background.
//
// If the state is the same as the current state, the function is a no-op.
func (cs *ConnStateMgr) changeStateAsync(state ConnState) {
	if cs.State() == state {
		return
	}

	cs.asyncStateChange <- state
}

// asyncStateChangeTask handles state changing in the background.
func (cs *ConnStateMgr) asyncStateChangeTask() {
	defer cs.logger.Debug("asyncStateChangeTask terminated")

	for {
		select {
		case <-cs.ctx.Done():
			return

		case desiredState := <-cs.asyncStateChange:
			prevState := cs.State()
			if desiredState == prevState {
				break
			}

			switch desiredState {
			case DisconnectedState:
				cs.ToDisconnected()
			case ConnectedState:
				cs.ToConnected()
			}

			cs.logger.Debug("async session state change",
				"method", "asyncStateChangeTask",
				"prevState", prevState, "curState", cs.State(), "desiredState", desiredState,
			)
		}
	}
}

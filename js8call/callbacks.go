package js8call

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/simplyequipped/js8call-interface/js8"
)

// IncomingHandler is called with every received message of a registered
// type.
type IncomingHandler func(msg *js8.Message)

// CommandHandler is called with every received directed message carrying a
// registered command keyword.
type CommandHandler func(msg *js8.Message)

// SpotHandler is called with a single accepted spot for a watched station
// or group.
type SpotHandler func(spot *js8.Spot)

// SpotsHandler is called with the batch of spots accepted since the
// previous transmit window.
type SpotsHandler func(spots []*js8.Spot)

// WindowHandler is called at every predicted transmit window transition
// with the timestamp of the following transition.
type WindowHandler func(next time.Time)

// InboxHandler is called with inbox messages that appeared since the
// previous inbox poll.
type InboxHandler func(msgs []js8.InboxMessage)

// CallbackRegistry holds the user callbacks of a client. Registration is
// safe under concurrency and may happen while the session is online; every
// callback is invoked on its own goroutine so a slow handler cannot stall
// the engine.
type CallbackRegistry struct {
	incoming     *xsync.MapOf[js8.Type, []IncomingHandler]
	commands     *xsync.MapOf[string, []CommandHandler]
	stationWatch *xsync.MapOf[string, []SpotHandler]
	groupWatch   *xsync.MapOf[string, []SpotHandler]

	mu       sync.Mutex
	spots    []SpotsHandler
	window   []WindowHandler
	inbox    []InboxHandler
	outgoing []OutgoingStatusHandler
}

// NewCallbackRegistry creates an empty callback registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{
		incoming:     xsync.NewMapOf[js8.Type, []IncomingHandler](),
		commands:     xsync.NewMapOf[string, []CommandHandler](),
		stationWatch: xsync.NewMapOf[string, []SpotHandler](),
		groupWatch:   xsync.NewMapOf[string, []SpotHandler](),
	}
}

// OnIncoming registers a handler for received messages of the given type.
func (r *CallbackRegistry) OnIncoming(typ js8.Type, handler IncomingHandler) {
	if handler == nil {
		return
	}

	r.incoming.Compute(typ, func(old []IncomingHandler, _ bool) ([]IncomingHandler, bool) {
		return append(slices.Clone(old), handler), false
	})
}

// RemoveIncoming removes every handler registered for the given type.
func (r *CallbackRegistry) RemoveIncoming(typ js8.Type) {
	r.incoming.Delete(typ)
}

// OnCommand registers a handler for directed messages carrying the given
// command keyword. The keyword may be one of the built-in commands or a
// custom command detected in directed text.
func (r *CallbackRegistry) OnCommand(cmd string, handler CommandHandler) {
	if handler == nil {
		return
	}

	cmd = strings.ToUpper(strings.TrimSpace(cmd))
	r.commands.Compute(cmd, func(old []CommandHandler, _ bool) ([]CommandHandler, bool) {
		return append(slices.Clone(old), handler), false
	})
}

// RemoveCommand removes every handler registered for the given command.
func (r *CallbackRegistry) RemoveCommand(cmd string) {
	r.commands.Delete(strings.ToUpper(strings.TrimSpace(cmd)))
}

// CustomCommands returns the registered command keywords that are not part
// of the built-in command set.
func (r *CallbackRegistry) CustomCommands() []string {
	var cmds []string
	r.commands.Range(func(cmd string, _ []CommandHandler) bool {
		if !js8.IsCommand(cmd) {
			cmds = append(cmds, cmd)
		}

		return true
	})

	return cmds
}

// WatchStation registers a handler called whenever the given callsign is
// spotted.
func (r *CallbackRegistry) WatchStation(callsign string, handler SpotHandler) {
	if handler == nil {
		return
	}

	callsign = strings.ToUpper(strings.TrimSpace(callsign))
	r.stationWatch.Compute(callsign, func(old []SpotHandler, _ bool) ([]SpotHandler, bool) {
		return append(slices.Clone(old), handler), false
	})
}

// UnwatchStation removes every handler watching the given callsign.
func (r *CallbackRegistry) UnwatchStation(callsign string) {
	r.stationWatch.Delete(strings.ToUpper(strings.TrimSpace(callsign)))
}

// WatchGroup registers a handler called whenever a message directed to the
// given group designator (ex. @HB) is spotted.
func (r *CallbackRegistry) WatchGroup(group string, handler SpotHandler) {
	if handler == nil {
		return
	}

	group = strings.ToUpper(strings.TrimSpace(group))
	r.groupWatch.Compute(group, func(old []SpotHandler, _ bool) ([]SpotHandler, bool) {
		return append(slices.Clone(old), handler), false
	})
}

// UnwatchGroup removes every handler watching the given group.
func (r *CallbackRegistry) UnwatchGroup(group string) {
	r.groupWatch.Delete(strings.ToUpper(strings.TrimSpace(group)))
}

// OnSpots registers a handler for the batch of spots accepted during each
// transmit window.
func (r *CallbackRegistry) OnSpots(handler SpotsHandler) {
	if handler == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.spots = append(r.spots, handler)
}

// OnWindow registers a handler for transmit window transitions.
func (r *CallbackRegistry) OnWindow(handler WindowHandler) {
	if handler == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.window = append(r.window, handler)
}

// OnInbox registers a handler for new inbox messages.
func (r *CallbackRegistry) OnInbox(handler InboxHandler) {
	if handler == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbox = append(r.inbox, handler)
}

// OnOutgoingStatus registers a handler for lifecycle transitions of tracked
// directed sends.
func (r *CallbackRegistry) OnOutgoingStatus(handler OutgoingStatusHandler) {
	if handler == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.outgoing = append(r.outgoing, handler)
}

// fireIncoming invokes the handlers registered for the message's type and,
// for directed messages, the handlers registered for its command.
func (r *CallbackRegistry) fireIncoming(msg *js8.Message) {
	if handlers, ok := r.incoming.Load(msg.Type); ok {
		for _, handler := range handlers {
			go handler(msg)
		}
	}

	if msg.Cmd == "" {
		return
	}
	if handlers, ok := r.commands.Load(msg.Cmd); ok {
		for _, handler := range handlers {
			go handler(msg)
		}
	}
}

// fireSpots invokes the batch spot handlers plus any station and group
// watches matching individual spots.
func (r *CallbackRegistry) fireSpots(spots []*js8.Spot) {
	if len(spots) == 0 {
		return
	}

	r.mu.Lock()
	batch := slices.Clone(r.spots)
	r.mu.Unlock()

	for _, handler := range batch {
		go handler(spots)
	}

	for _, spot := range spots {
		if handlers, ok := r.stationWatch.Load(spot.Origin); ok {
			for _, handler := range handlers {
				go handler(spot)
			}
		}
		if handlers, ok := r.groupWatch.Load(spot.Destination); ok {
			for _, handler := range handlers {
				go handler(spot)
			}
		}
	}
}

func (r *CallbackRegistry) fireWindow(next time.Time) {
	r.mu.Lock()
	handlers := slices.Clone(r.window)
	r.mu.Unlock()

	for _, handler := range handlers {
		go handler(next)
	}
}

func (r *CallbackRegistry) fireInbox(msgs []js8.InboxMessage) {
	if len(msgs) == 0 {
		return
	}

	r.mu.Lock()
	handlers := slices.Clone(r.inbox)
	r.mu.Unlock()

	for _, handler := range handlers {
		go handler(msgs)
	}
}

func (r *CallbackRegistry) fireOutgoingStatus(msg *js8.Message) {
	r.mu.Lock()
	handlers := slices.Clone(r.outgoing)
	r.mu.Unlock()

	for _, handler := range handlers {
		go handler(msg)
	}
}

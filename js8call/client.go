package js8call

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/simplyequipped/js8call-interface/js8"
	"github.com/simplyequipped/js8call-interface/logger"
	"github.com/simplyequipped/js8call-interface/maidenhead"
)

// Group designators recognized across the JS8Call network.
const (
	// GroupHeartbeat is the network heartbeat group.
	GroupHeartbeat = "@HB"
	// GroupAPRS is the APRS gateway group.
	GroupAPRS = "@APRSIS"
	// GroupAllcall addresses every station.
	GroupAllcall = "@ALLCALL"
)

// OutgoingProcessor inspects or modifies a directed message before it is
// queued for transmission. Returning an error rejects the message.
type OutgoingProcessor func(msg *js8.Message) error

// Client is the high-level interface to a JS8Call modem session. It wraps
// a Connection with typed operations for station settings, frequencies,
// directed messages, queries, the inbox, and heartbeats.
//
// Get operations return the locally mirrored value when the modem has
// already reported one, and otherwise perform a watch round-trip: the
// request is queued and the call blocks until the modem responds or the
// watch timeout elapses.
type Client struct {
	conn   *Connection
	cfg    *ConnectionConfig
	logger logger.Logger

	inbox     *inboxMonitor
	heartbeat *heartbeatMonitor

	mu         sync.Mutex
	preprocess OutgoingProcessor
}

// NewClient creates a client for the given configuration. Call Open to
// establish the session.
func NewClient(ctx context.Context, cfg *ConnectionConfig) (*Client, error) {
	conn, err := NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := &Client{
		conn:   conn,
		cfg:    cfg,
		logger: conn.GetLogger(),
	}
	client.inbox = newInboxMonitor(client)
	client.heartbeat = newHeartbeatMonitor(client)

	callbacks := conn.Callbacks()
	callbacks.OnIncoming(js8.TypeInboxMessages, client.inbox.onInbox)
	callbacks.OnIncoming(js8.TypeMessages, client.inbox.onInbox)
	callbacks.OnIncoming(js8.TypeRxDirected, client.inbox.onDirected)
	callbacks.OnWindow(client.inbox.onWindow)

	return client, nil
}

// Connection returns the underlying connection for raw engine access.
func (c *Client) Connection() *Connection {
	return c.conn
}

// Open establishes the session and starts the client monitors. If
// waitConnected is true it blocks until the modem produces traffic.
// Configured station settings (grid, info) are applied once the session
// validates.
func (c *Client) Open(waitConnected bool) error {
	if err := c.conn.Open(waitConnected); err != nil {
		return err
	}

	taskMgr := c.conn.TaskManager()

	pollInterval := js8.DefaultWindowDuration / inboxPollDivisor
	if _, err := taskMgr.StartInterval("inboxPoll", c.inbox.pollTask, pollInterval, false); err != nil {
		c.logger.Warn("failed to start inbox monitor", "method", "Open", "error", err)
	}

	if interval := c.cfg.HeartbeatInterval(); interval > 0 {
		if _, err := taskMgr.StartInterval("heartbeat", c.heartbeat.sendTask, interval, false); err != nil {
			c.logger.Warn("failed to start heartbeat monitor", "method", "Open", "error", err)
		}
	}

	go c.applyStationSettings(taskMgr.Context())

	return nil
}

// Close shuts the session down.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Connected returns true while the modem has recently produced traffic.
func (c *Client) Connected() bool {
	return c.conn.Connected()
}

// SetOutgoingProcessor installs a hook applied to every directed message
// before it is queued for transmission.
func (c *Client) SetOutgoingProcessor(processor OutgoingProcessor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.preprocess = processor
}

// applyStationSettings pushes configured station settings to the modem
// once the session validates.
func (c *Client) applyStationSettings(ctx context.Context) {
	if c.cfg.StationGrid() == "" && c.cfg.StationInfo() == "" {
		return
	}

	if err := c.conn.WaitConnected(ctx); err != nil {
		return
	}

	if grid := c.cfg.StationGrid(); grid != "" {
		if _, err := c.SetStationGrid(grid); err != nil {
			c.logger.Warn("failed to apply station grid", "method", "applyStationSettings", "error", err)
		}
	}
	if info := c.cfg.StationInfo(); info != "" {
		if _, err := c.SetStationInfo(info); err != nil {
			c.logger.Warn("failed to apply station info", "method", "applyStationSettings", "error", err)
		}
	}
}

// --- station settings ---

// StationCallsign returns the callsign configured in JS8Call.
func (c *Client) StationCallsign() (string, error) {
	if v, ok := c.conn.State().Callsign(); ok {
		return v, nil
	}

	return asString(c.conn.Watch(StateCallsign))
}

// StationGrid returns the station grid square configured in JS8Call.
func (c *Client) StationGrid() (string, error) {
	if v, ok := c.conn.State().Grid(); ok {
		return v, nil
	}

	return asString(c.conn.Watch(StateGrid))
}

// SetStationGrid changes the station grid square and returns the value the
// modem confirms.
func (c *Client) SetStationGrid(grid string) (string, error) {
	msg := js8.NewTypedMessage(js8.TypeStationSetGrid)
	msg.Value = strings.ToUpper(strings.TrimSpace(grid))

	if err := c.conn.Enqueue(msg); err != nil {
		return "", err
	}

	return asString(c.conn.Watch(StateGrid))
}

// StationInfo returns the station info text configured in JS8Call.
func (c *Client) StationInfo() (string, error) {
	if v, ok := c.conn.State().Info(); ok {
		return v, nil
	}

	return asString(c.conn.Watch(StateInfo))
}

// SetStationInfo changes the station info text and returns the value the
// modem confirms.
func (c *Client) SetStationInfo(info string) (string, error) {
	msg := js8.NewTypedMessage(js8.TypeStationSetInfo)
	msg.Value = strings.TrimSpace(info)

	if err := c.conn.Enqueue(msg); err != nil {
		return "", err
	}

	return asString(c.conn.Watch(StateInfo))
}

// --- frequencies ---

// DialFrequency returns the radio dial frequency in Hz.
func (c *Client) DialFrequency() (int64, error) {
	if v, ok := c.conn.State().Dial(); ok {
		return v, nil
	}

	return asInt64(c.conn.Watch(StateDial))
}

// Frequency returns the actual transmit frequency (dial plus passband
// offset) in Hz.
func (c *Client) Frequency() (int64, error) {
	if v, ok := c.conn.State().Freq(); ok {
		return v, nil
	}

	return asInt64(c.conn.Watch(StateFreq))
}

// Offset returns the passband offset frequency in Hz.
func (c *Client) Offset() (int64, error) {
	if v, ok := c.conn.State().Offset(); ok {
		return v, nil
	}

	return asInt64(c.conn.Watch(StateOffset))
}

// SetDialFrequency changes the radio dial frequency and returns the value
// the modem confirms. The current passband offset is preserved.
func (c *Client) SetDialFrequency(freq int64) (int64, error) {
	msg := js8.NewTypedMessage(js8.TypeRigSetFreq)
	msg.SetParam("DIAL", freq)
	if offset, ok := c.conn.State().Offset(); ok {
		msg.SetParam("OFFSET", offset)
	}

	if err := c.conn.Enqueue(msg); err != nil {
		return 0, err
	}

	return asInt64(c.conn.Watch(StateDial))
}

// SetOffset changes the passband offset frequency and returns the value
// the modem confirms. The current dial frequency is preserved.
func (c *Client) SetOffset(offset int64) (int64, error) {
	msg := js8.NewTypedMessage(js8.TypeRigSetFreq)
	msg.SetParam("OFFSET", offset)
	if dial, ok := c.conn.State().Dial(); ok {
		msg.SetParam("DIAL", dial)
	}

	if err := c.conn.Enqueue(msg); err != nil {
		return 0, err
	}

	return asInt64(c.conn.Watch(StateOffset))
}

// AdjustOffset moves the passband offset to a clear section when a
// recently heard signal overlaps the current one. It returns the offset in
// effect afterwards and whether a move was made. Signal bandwidth follows
// the current speed setting.
func (c *Client) AdjustOffset() (int64, bool, error) {
	offset, err := c.Offset()
	if err != nil {
		return 0, false, err
	}

	speed, err := c.Speed()
	if err != nil {
		speed = js8.SpeedNormal
	}

	clear, moved := c.conn.Activity().FindClearOffset(offset, speed)
	if !moved {
		return offset, false, nil
	}

	confirmed, err := c.SetOffset(clear)
	if err != nil {
		return offset, false, err
	}

	return confirmed, true, nil
}

// Band returns the band designator of the current dial frequency, like
// "40m", or OOB when the frequency is outside every known band.
func (c *Client) Band() (string, error) {
	freq, err := c.DialFrequency()
	if err != nil {
		return OOB, err
	}

	return FreqToBand(freq), nil
}

// --- speed ---

// Speed returns the modem speed setting.
func (c *Client) Speed() (js8.Speed, error) {
	if v, ok := c.conn.State().Speed(); ok {
		return v, nil
	}

	value := c.conn.Watch(StateSpeed)
	speed, ok := value.(js8.Speed)
	if !ok {
		return js8.SpeedNormal, ErrValueUnavailable
	}

	return speed, nil
}

// SetSpeed changes the modem speed setting and returns the value the
// modem confirms.
func (c *Client) SetSpeed(speed js8.Speed) (js8.Speed, error) {
	if !speed.Valid() {
		return js8.SpeedNormal, js8.ErrInvalidSpeed
	}

	msg := js8.NewTypedMessage(js8.TypeModeSetSpeed)
	msg.SetParam("SPEED", int(speed))

	if err := c.conn.Enqueue(msg); err != nil {
		return js8.SpeedNormal, err
	}

	confirmed, ok := c.conn.Watch(StateSpeed).(js8.Speed)
	if !ok {
		return js8.SpeedNormal, ErrValueUnavailable
	}

	return confirmed, nil
}

// --- text fields and activity ---

// RxText returns the content of the JS8Call receive text box.
func (c *Client) RxText() (string, error) {
	if v, ok := c.conn.State().RxText(); ok {
		return v, nil
	}

	return asString(c.conn.Watch(StateRxText))
}

// TxText returns the content of the JS8Call outgoing text box.
func (c *Client) TxText() (string, error) {
	if v, ok := c.conn.State().TxText(); ok {
		return v, nil
	}

	return asString(c.conn.Watch(StateTxText))
}

// SetTxText replaces the content of the JS8Call outgoing text box without
// transmitting it.
func (c *Client) SetTxText(text string) error {
	msg := js8.NewTypedMessage(js8.TypeTxSetText)
	msg.Value = text

	return c.conn.Enqueue(msg)
}

// SelectedCall returns the callsign currently selected in the JS8Call call
// activity list.
func (c *Client) SelectedCall() (string, error) {
	if v, ok := c.conn.State().SelectedCall(); ok {
		return v, nil
	}

	return asString(c.conn.Watch(StateSelectedCall))
}

// CallActivity returns the JS8Call call activity table.
func (c *Client) CallActivity() ([]js8.CallActivity, error) {
	value := c.conn.Watch(StateCallActivity)
	activity, ok := value.([]js8.CallActivity)
	if !ok {
		return nil, ErrValueUnavailable
	}

	return activity, nil
}

// BandActivity returns the JS8Call band activity table.
func (c *Client) BandActivity() ([]js8.BandActivity, error) {
	value := c.conn.Watch(StateBandActivity)
	activity, ok := value.([]js8.BandActivity)
	if !ok {
		return nil, ErrValueUnavailable
	}

	return activity, nil
}

// RaiseWindow asks JS8Call to raise its application window.
func (c *Client) RaiseWindow() error {
	return c.conn.Enqueue(js8.NewTypedMessage(js8.TypeWindowRaise))
}

// --- directed messages ---

// SendMessage transmits undirected free text.
func (c *Client) SendMessage(text string) (*js8.Message, error) {
	return c.send(js8.NewMessage("", text))
}

// SendDirectedMessage transmits text directed to a station or group. When
// command autodetection is enabled, text beginning with a known directed
// command is folded into the command field. The destination may include a
// relay path ("KT1RUN>OH8STN").
func (c *Client) SendDirectedMessage(destination, text string) (*js8.Message, error) {
	if destination == "" {
		return nil, ErrEmptyDestination
	}

	if c.cfg.AutodetectCommands() {
		if cmd, remainder, ok := js8.DetectCommand(text); ok {
			return c.send(js8.NewCommandMessage(destination, cmd, remainder))
		}
	}

	return c.send(js8.NewMessage(destination, text))
}

// SendDirectedCommand transmits a directed command with optional trailing
// text, like "K1ABC SNR?".
func (c *Client) SendDirectedCommand(destination, cmd, text string) (*js8.Message, error) {
	if destination == "" {
		return nil, ErrEmptyDestination
	}

	return c.send(js8.NewCommandMessage(destination, cmd, text))
}

// send runs the outgoing processor and queues the message.
func (c *Client) send(msg *js8.Message) (*js8.Message, error) {
	c.mu.Lock()
	preprocess := c.preprocess
	c.mu.Unlock()

	if preprocess != nil {
		if err := preprocess(msg); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMessageRejected, err)
		}
	}

	if err := c.conn.Enqueue(msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// --- queries ---

// QuerySNR asks a station for the signal report it holds for us.
func (c *Client) QuerySNR(destination string) (*js8.Message, error) {
	return c.SendDirectedCommand(destination, js8.CmdSNRQuery, "")
}

// QueryGrid asks a station for its grid square.
func (c *Client) QueryGrid(destination string) (*js8.Message, error) {
	return c.SendDirectedCommand(destination, js8.CmdGridQuery, "")
}

// QueryInfo asks a station for its info text.
func (c *Client) QueryInfo(destination string) (*js8.Message, error) {
	return c.SendDirectedCommand(destination, js8.CmdInfoQuery, "")
}

// QueryStatus asks a station for its status text.
func (c *Client) QueryStatus(destination string) (*js8.Message, error) {
	return c.SendDirectedCommand(destination, js8.CmdStatusQuery, "")
}

// QueryHearing asks a station which stations it is hearing.
func (c *Client) QueryHearing(destination string) (*js8.Message, error) {
	return c.SendDirectedCommand(destination, js8.CmdHearingQuery, "")
}

// QueryCall asks a station whether it has heard the given callsign.
func (c *Client) QueryCall(destination, callsign string) (*js8.Message, error) {
	callsign = strings.ToUpper(strings.TrimSpace(callsign))
	return c.SendDirectedCommand(destination, js8.CmdQueryCall, callsign+js8.CmdQuerySuffix)
}

// QueryMessages asks a station whether it holds stored messages for us.
func (c *Client) QueryMessages(destination string) (*js8.Message, error) {
	return c.SendDirectedCommand(destination, js8.CmdQueryMsgs, "")
}

// QueryMessage retrieves a stored message by id from a station.
func (c *Client) QueryMessage(destination string, id int64) (*js8.Message, error) {
	return c.SendDirectedCommand(destination, js8.CmdQuery, "MSG "+strconv.FormatInt(id, 10))
}

// --- heartbeat and APRS ---

// SendHeartbeat transmits a network heartbeat to the @HB group, carrying
// the station grid square truncated to 4 characters when known.
func (c *Client) SendHeartbeat() (*js8.Message, error) {
	grid, _ := c.conn.stationGrid()
	if len(grid) > 4 {
		grid = grid[:4]
	}

	return c.SendDirectedCommand(GroupHeartbeat, js8.CmdHeartbeat, grid)
}

// PauseHeartbeat suspends automatic heartbeat sending.
func (c *Client) PauseHeartbeat() {
	c.heartbeat.Pause()
}

// ResumeHeartbeat re-enables automatic heartbeat sending.
func (c *Client) ResumeHeartbeat() {
	c.heartbeat.Resume()
}

// SendAPRSGrid reports the station grid square to the APRS network via the
// @APRSIS gateway group.
func (c *Client) SendAPRSGrid(grid string) (*js8.Message, error) {
	grid = strings.ToUpper(strings.TrimSpace(grid))
	if grid == "" {
		return nil, ErrStationGridUnset
	}
	if len(grid) > 4 {
		grid = grid[:4]
	}

	return c.SendDirectedCommand(GroupAPRS, js8.CmdGrid, grid)
}

// --- inbox ---

// Inbox returns the stored messages in the JS8Call inbox.
func (c *Client) Inbox() ([]js8.InboxMessage, error) {
	value := c.conn.Watch(StateInbox)
	messages, ok := value.([]js8.InboxMessage)
	if !ok {
		return nil, ErrValueUnavailable
	}

	return messages, nil
}

// StoreLocalMessage stores a message in the local JS8Call inbox, to be
// retrieved over the air by the destination station.
func (c *Client) StoreLocalMessage(destination, text string) error {
	if destination == "" {
		return ErrEmptyDestination
	}

	msg := js8.NewTypedMessage(js8.TypeInboxStoreMessage)
	msg.SetParam("TO", strings.ToUpper(destination))
	msg.SetParam("TEXT", strings.ToUpper(text))

	return c.conn.Enqueue(msg)
}

// StoreRemoteMessage asks a station to hold a message for later retrieval
// by the destination station.
func (c *Client) StoreRemoteMessage(station, destination, text string) (*js8.Message, error) {
	if station == "" || destination == "" {
		return nil, ErrEmptyDestination
	}

	value := strings.ToUpper(strings.TrimSpace(destination)) + " " + strings.TrimSpace(text)

	return c.SendDirectedCommand(station, js8.CmdMsgTo, value)
}

// --- received traffic, spots, timing ---

// NextMessage removes and returns the oldest received message, or nil when
// no message is waiting.
func (c *Client) NextMessage() *js8.Message {
	return c.conn.NextMessage()
}

// GetSpots returns the stored spots matching the filter, oldest first.
func (c *Client) GetSpots(filter SpotFilter) []*js8.Spot {
	return c.conn.Spots().Query(filter)
}

// LastHeard returns the count most recently spotted stations, oldest
// first.
func (c *Client) LastHeard(count int) []*js8.Spot {
	return c.conn.Spots().LastHeard(count)
}

// GridOf returns the most recently reported grid square for a callsign,
// consulting the spot store.
func (c *Client) GridOf(callsign string) (string, bool) {
	return c.conn.Spots().OriginGrid(strings.ToUpper(strings.TrimSpace(callsign)))
}

// DistanceTo returns the great-circle distance in kilometers and the true
// bearing in degrees from the local station to a grid square.
func (c *Client) DistanceTo(grid string) (distance int, bearing int, err error) {
	local, ok := c.conn.stationGrid()
	if !ok {
		return 0, 0, ErrStationGridUnset
	}

	distance, err = maidenhead.Distance(local, grid)
	if err != nil {
		return 0, 0, err
	}
	bearing, err = maidenhead.Bearing(local, grid)
	if err != nil {
		return 0, 0, err
	}

	return distance, bearing, nil
}

// NextWindow returns the predicted timestamp of the transmit window
// transition count windows ahead, or fallback when no timing signal has
// been observed yet.
func (c *Client) NextWindow(count int, fallback time.Time) time.Time {
	next, ok := c.conn.Window().NextTransition(count)
	if !ok {
		return fallback
	}

	return next
}

// TimeUntilWindow returns the time remaining until the transmit window
// transition count windows ahead, biased slightly early. The ok result is
// false when no timing signal has been observed yet.
func (c *Client) TimeUntilWindow(count int) (time.Duration, bool) {
	return c.conn.Window().Until(count)
}

// --- callback registration shortcuts ---

// OnIncoming registers a handler for received messages of the given type.
func (c *Client) OnIncoming(typ js8.Type, handler IncomingHandler) {
	c.conn.Callbacks().OnIncoming(typ, handler)
}

// OnCommand registers a handler for directed messages carrying the given
// command keyword, including custom commands.
func (c *Client) OnCommand(cmd string, handler CommandHandler) {
	c.conn.Callbacks().OnCommand(cmd, handler)
}

// OnSpots registers a handler for the batch of spots accepted during each
// transmit window.
func (c *Client) OnSpots(handler SpotsHandler) {
	c.conn.Callbacks().OnSpots(handler)
}

// OnWindow registers a handler for transmit window transitions.
func (c *Client) OnWindow(handler WindowHandler) {
	c.conn.Callbacks().OnWindow(handler)
}

// OnInbox registers a handler for new inbox messages.
func (c *Client) OnInbox(handler InboxHandler) {
	c.conn.Callbacks().OnInbox(handler)
}

// OnOutgoingStatus registers a handler for lifecycle transitions of
// tracked directed sends.
func (c *Client) OnOutgoingStatus(handler OutgoingStatusHandler) {
	c.conn.Callbacks().OnOutgoingStatus(handler)
}

// WatchStation registers a handler called whenever the given callsign is
// spotted.
func (c *Client) WatchStation(callsign string, handler SpotHandler) {
	c.conn.Callbacks().WatchStation(callsign, handler)
}

// WatchGroup registers a handler called whenever a message directed to the
// given group is spotted.
func (c *Client) WatchGroup(group string, handler SpotHandler) {
	c.conn.Callbacks().WatchGroup(group, handler)
}

// --- helpers ---

func asString(value any) (string, error) {
	if value == nil {
		return "", ErrValueUnavailable
	}

	s, ok := value.(string)
	if !ok {
		return "", ErrValueUnavailable
	}

	return s, nil
}

func asInt64(value any) (int64, error) {
	if value == nil {
		return 0, ErrValueUnavailable
	}

	n, ok := value.(int64)
	if !ok {
		return 0, ErrValueUnavailable
	}

	return n, nil
}

package js8call

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simplyequipped/js8call-interface/internal/queue"
	"github.com/simplyequipped/js8call-interface/js8"
	"github.com/simplyequipped/js8call-interface/logger"
	"github.com/simplyequipped/js8call-interface/spotlog"
)

const (
	// rxReadTimeout is the per-read deadline of the receive loop. Short
	// enough that the loop observes shutdown promptly.
	rxReadTimeout = 1 * time.Second

	// livenessInterval is how often the liveness probe checks for rx
	// traffic.
	livenessInterval = 1 * time.Second

	// probeHoldoff limits how often a probe request is queued while the
	// session is stale, so a dead peer is not flooded with requests.
	probeHoldoff = 10 * time.Second

	// windowMonitorInterval is the poll interval of the window transition
	// monitor.
	windowMonitorInterval = 10 * time.Millisecond

	// rxQueueLimit caps the consumer-facing receive queue. When no consumer
	// drains the queue the oldest messages are dropped.
	rxQueueLimit = 1024

	// spotJournalBuffer sizes the channel feeding the journal writer. The
	// receive path never blocks on the database; a full buffer drops the
	// journal entry.
	spotJournalBuffer = 256
)

// watchRequests maps each state variable to the API request that makes the
// modem report it. Variables without an entry (ptt) are push-only.
var watchRequests = map[StateVar]js8.Type{
	StateDial:         js8.TypeRigGetFreq,
	StateFreq:         js8.TypeRigGetFreq,
	StateOffset:       js8.TypeRigGetFreq,
	StateCallsign:     js8.TypeStationGetCallsign,
	StateSpeed:        js8.TypeModeGetSpeed,
	StateGrid:         js8.TypeStationGetGrid,
	StateInfo:         js8.TypeStationGetInfo,
	StateRxText:       js8.TypeRxGetText,
	StateTxText:       js8.TypeTxGetText,
	StateInbox:        js8.TypeInboxGetMessages,
	StateCallActivity: js8.TypeRxGetCallActivity,
	StateBandActivity: js8.TypeRxGetBandActivity,
	StateSelectedCall: js8.TypeRxGetSelectedCall,
}

// Connection manages the TCP session with a running JS8Call application.
// It owns the socket, the receive loop, the local state store, the transmit
// dispatcher, and the background monitors, and exposes the raw engine
// operations the Client facade builds on.
type Connection struct {
	pctx      context.Context
	ctx       context.Context
	ctxCancel context.CancelFunc
	cfg       *ConnectionConfig
	logger    logger.Logger

	conn      net.Conn
	connMutex sync.Mutex
	carry     []byte // partial line held between socket reads

	stateMgr *ConnStateMgr
	taskMgr  *TaskManager
	shutdown atomic.Bool
	opened   atomic.Bool

	store      *StateStore
	watcher    *watcher
	dispatcher *txDispatcher
	outgoing   *outgoingMonitor
	spots      *SpotStore
	window     *WindowMonitor
	activity   *ActivityMonitor
	callbacks  *CallbackRegistry

	rxQueue queue.Queue[*js8.Message]

	lastActivity atomic.Int64 // unix nanoseconds of the last decoded frame
	lastProbe    atomic.Int64 // unix nanoseconds of the last probe request

	journal     *spotlog.Journal
	journalChan chan *js8.Spot

	lastSpotWake time.Time
	spotWakeMu   sync.Mutex

	metrics ConnectionMetrics
}

// NewConnection creates a new JS8Call connection with the given context and
// configuration. It initializes the state store, dispatcher, monitors, and
// task manager without touching the network; call Open to connect.
func NewConnection(ctx context.Context, cfg *ConnectionConfig) (*Connection, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	c := &Connection{
		pctx:      ctx,
		cfg:       cfg,
		logger:    cfg.Logger(),
		store:     NewStateStore(),
		callbacks: NewCallbackRegistry(),
		rxQueue:   queue.NewLockFreeQueue[*js8.Message](),
		taskMgr:   NewTaskManager(ctx, cfg.Logger()),
	}

	c.createContext()

	c.watcher = newWatcher(c.store, cfg.WatchTimeout, c.metrics.incWatchTimeoutCount)
	c.dispatcher = newTxDispatcher(c.store, c.writeMessage, c.logger, &c.metrics)
	c.outgoing = newOutgoingMonitor(c.store, c.refreshTxText, c.WindowDuration, c.callbacks.fireOutgoingStatus, c.logger)
	c.window = NewWindowMonitor(c.WindowDuration, c.onWindowTransition)
	c.activity = NewActivityMonitor(nil)
	c.spots = NewSpotStore(cfg.SpotCapacity(), DefaultSpotDedupWindow, cfg.Profile, c.stationGrid)
	c.stateMgr = NewConnStateMgr(ctx, c)

	return c, nil
}

// GetLogger returns the logger associated with the connection.
func (c *Connection) GetLogger() logger.Logger {
	return c.logger
}

// GetMetrics returns the metrics associated with the connection.
func (c *Connection) GetMetrics() *ConnectionMetrics {
	return &c.metrics
}

// Config returns the connection configuration.
func (c *Connection) Config() *ConnectionConfig {
	return c.cfg
}

// State returns the local mirror of the modem state.
func (c *Connection) State() *StateStore {
	return c.store
}

// Spots returns the spot store.
func (c *Connection) Spots() *SpotStore {
	return c.spots
}

// Window returns the transmit window monitor.
func (c *Connection) Window() *WindowMonitor {
	return c.window
}

// Activity returns the band activity monitor.
func (c *Connection) Activity() *ActivityMonitor {
	return c.activity
}

// Callbacks returns the callback registry.
func (c *Connection) Callbacks() *CallbackRegistry {
	return c.callbacks
}

// TaskManager returns the task manager driving the background workers,
// allowing collaborators to run their own loops under the session
// lifecycle.
func (c *Connection) TaskManager() *TaskManager {
	return c.taskMgr
}

// Connected returns true while the modem has recently produced traffic.
func (c *Connection) Connected() bool {
	return c.stateMgr.IsConnected()
}

// WaitConnected blocks until the session validates or the context is done.
func (c *Connection) WaitConnected(ctx context.Context) error {
	return c.stateMgr.WaitState(ctx, ConnectedState)
}

// StateManager returns the session state manager, allowing callers to
// register connectivity transition handlers.
func (c *Connection) StateManager() *ConnStateMgr {
	return c.stateMgr
}

// Open establishes the TCP connection and starts the background workers.
// If waitConnected is true it blocks until the modem produces traffic and
// the session validates.
func (c *Connection) Open(waitConnected bool) error {
	if !c.opened.CompareAndSwap(false, true) {
		return ErrAlreadyOpen
	}

	c.shutdown.Store(false)
	c.createContext()

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout()}
	addr := net.JoinHostPort(c.cfg.Host(), strconv.Itoa(c.cfg.Port()))
	conn, err := dialer.DialContext(c.ctx, "tcp", addr)
	if err != nil {
		c.opened.Store(false)
		return err
	}

	c.connMutex.Lock()
	c.conn = conn
	c.carry = nil
	c.connMutex.Unlock()

	c.lastActivity.Store(time.Now().UnixNano())

	if err := c.openJournal(); err != nil {
		c.logger.Error("failed to open spot journal", "method", "Open", "error", err)
	}

	if err := c.startTasks(); err != nil {
		c.closeConn(c.cfg.CloseConnTimeout())
		c.opened.Store(false)

		return err
	}

	// a lightweight request the modem always answers, validating the link
	// and populating the callsign state variable
	if err := c.Enqueue(js8.NewTypedMessage(js8.TypeStationGetCallsign)); err != nil {
		c.logger.Warn("failed to queue initial callsign request", "method", "Open", "error", err)
	}

	if waitConnected {
		return c.stateMgr.WaitState(c.ctx, ConnectedState)
	}

	return nil
}

// startTasks launches the background workers under the task manager.
func (c *Connection) startTasks() error {
	if err := c.taskMgr.StartReceiver("receiver", c.receiverTask, c.cancelReceiverTask); err != nil {
		return err
	}
	if _, err := c.taskMgr.StartInterval("dispatch", c.dispatcher.dispatchTask, dispatchInterval, false); err != nil {
		return err
	}
	if _, err := c.taskMgr.StartInterval("outgoingMonitor", c.outgoing.monitorTask, outgoingScanInterval, false); err != nil {
		return err
	}
	if _, err := c.taskMgr.StartInterval("windowMonitor", c.window.monitorTask, windowMonitorInterval, false); err != nil {
		return err
	}
	if _, err := c.taskMgr.StartInterval("liveness", c.livenessTask, livenessInterval, false); err != nil {
		return err
	}
	if _, err := c.taskMgr.StartInterval("activityCull", c.activity.cullTask, activityCullInterval, false); err != nil {
		return err
	}

	if c.journal != nil {
		err := c.taskMgr.StartSpotWriter("spotJournal", c.journalTask, c.closeJournal, c.journalChan)
		if err != nil {
			return err
		}
	}

	return nil
}

// Close shuts down the session gracefully: it stops every background
// worker, closes the TCP connection, and waits for the goroutines to
// terminate.
func (c *Connection) Close() error {
	if !c.opened.CompareAndSwap(true, false) {
		return nil
	}

	c.shutdown.Store(true)
	c.stateMgr.ToDisconnected()
	c.closeConn(c.cfg.CloseConnTimeout())

	return nil
}

// closeConn cancels the lifecycle context, stops the task manager, closes
// the TCP connection, and waits for all goroutines to terminate, bounded by
// the given timeout.
func (c *Connection) closeConn(timeout time.Duration) {
	c.logger.Debug("start closeConn process")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if c.ctxCancel != nil {
		c.ctxCancel()
	}

	c.taskMgr.Stop()

	c.connMutex.Lock()
	if c.conn != nil {
		if tcpConn, ok := c.conn.(*net.TCPConn); ok {
			_ = tcpConn.SetLinger(0)
		}
		if err := c.conn.Close(); err != nil {
			c.logger.Error("failed to close TCP connection", "method", "closeConn", "error", err)
		}
		c.conn = nil
	}
	c.connMutex.Unlock()

	go func() {
		c.taskMgr.Wait()
		cancel()
	}()

	<-ctx.Done()

	if errors.Is(ctx.Err(), context.Canceled) {
		c.logger.Debug("close success", "method", "closeConn")
	} else {
		c.logger.Error("close timeout", "method", "closeConn", "error", ctx.Err(), "timeout", timeout)
	}
}

// createContext creates a new lifecycle context derived from the parent.
func (c *Connection) createContext() {
	c.ctx, c.ctxCancel = context.WithCancel(c.pctx)
}

// Enqueue places an outgoing message on the transmit queue. Directed sends
// are additionally tracked through the QUEUED/SENDING/SENT/FAILED lifecycle
// when outgoing monitoring is enabled.
func (c *Connection) Enqueue(msg *js8.Message) error {
	if msg == nil {
		return ErrMessageNil
	}

	if err := c.dispatcher.enqueue(msg); err != nil {
		return err
	}

	if msg.Type == js8.TypeTxSendMessage && c.cfg.MonitorOutgoing() {
		c.outgoing.track(msg)
	}

	return nil
}

// NextMessage removes and returns the oldest received message from the
// consumer queue. It returns nil when no message is waiting.
func (c *Connection) NextMessage() *js8.Message {
	msg, ok := c.rxQueue.Dequeue()
	if !ok {
		return nil
	}

	return msg
}

// Watch requests the given state variable from the modem and blocks until
// it reports a fresh value or the watch timeout elapses. On timeout the
// variable's previous value is restored and returned. Unknown variables
// return nil immediately.
func (c *Connection) Watch(name StateVar) any {
	req, ok := watchRequests[name]
	if !ok {
		return c.watcher.watch(c.ctx, name)
	}

	return c.watcher.watchRequest(c.ctx, name, func() {
		if err := c.Enqueue(js8.NewTypedMessage(req)); err != nil {
			c.logger.Warn("failed to queue watch request", "method", "Watch", "var", name, "error", err)
		}
	})
}

// WindowDuration returns the duration of one transmit window at the
// modem's current speed setting. The normal speed duration is assumed
// until the modem reports its speed.
func (c *Connection) WindowDuration() time.Duration {
	if speed, ok := c.store.Speed(); ok {
		return speed.WindowDuration()
	}

	return js8.DefaultWindowDuration
}

// writeMessage encodes and writes one message to the socket. Write errors
// surface to the caller and are never retried here.
func (c *Connection) writeMessage(msg *js8.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout())); err != nil {
		return err
	}
	if _, err := c.conn.Write(data); err != nil {
		return err
	}

	c.metrics.incFrameSendCount()

	if c.logger.Level() == logger.DebugLevel {
		c.logger.Debug("frame sent", "method", "writeMessage", "type", msg.Type, "value", msg.Value)
	}

	return nil
}

// refreshTxText queues a TX.GET_TEXT request, keeping the tx_text state
// variable fresh for the outgoing monitor and the dispatcher's busy flag.
// The request is skipped while tx_text is under an active watch so the
// watch sees exactly one response.
func (c *Connection) refreshTxText() {
	if c.store.Watched(StateTxText) {
		return
	}

	if err := c.Enqueue(js8.NewTypedMessage(js8.TypeTxGetText)); err != nil {
		c.logger.Warn("failed to queue tx text refresh", "method", "refreshTxText", "error", err)
	}
}

// stationGrid returns the local station grid square, preferring the value
// reported by the modem over the configured one.
func (c *Connection) stationGrid() (string, bool) {
	if grid, ok := c.store.Grid(); ok && grid != "" {
		return grid, true
	}
	if grid := c.cfg.StationGrid(); grid != "" {
		return grid, true
	}

	return "", false
}

// cancelReceiverTask drops the session to disconnected when the receive
// loop exits.
func (c *Connection) cancelReceiverTask() {
	c.stateMgr.ToDisconnectedAsync()
}

// receiverTask reads available bytes from the socket and decodes complete
// frames. Read timeouts are expected and keep the loop responsive to
// shutdown; undecodable bytes are discarded without backpressure since
// every state-bearing message is idempotent per line.
func (c *Connection) receiverTask(readBuf []byte) bool {
	c.connMutex.Lock()
	conn := c.conn
	c.connMutex.Unlock()

	if conn == nil {
		return false
	}

	if err := conn.SetReadDeadline(time.Now().Add(rxReadTimeout)); err != nil {
		return !c.shutdown.Load()
	}

	n, err := conn.Read(readBuf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}

		if !c.shutdown.Load() {
			c.logger.Error("failed to read from socket", "method", "receiverTask", "error", err)
		}

		return false
	}

	if n > 0 {
		c.processBytes(readBuf[:n])
	}

	return true
}

// processBytes splits the read buffer into newline-delimited frames and
// decodes each independently. A partial trailing line is carried over to
// the next read.
func (c *Connection) processBytes(data []byte) {
	buf := append(c.carry, data...)

	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}

		line := buf[:idx]
		buf = buf[idx+1:]

		c.decodeFrame(line)
	}

	c.carry = append(c.carry[:0], buf...)
}

// decodeFrame decodes one frame and routes the resulting message. Frames
// that fail to parse, and frames the modem flagged with the in-band error
// marker, are discarded here.
func (c *Connection) decodeFrame(line []byte) {
	msg, err := js8.DecodeMessage(line)
	if err != nil {
		switch {
		case errors.Is(err, js8.ErrEmptyFrame):
		case errors.Is(err, js8.ErrErrorValue):
			c.metrics.incFrameDropCount()
		default:
			c.metrics.incFrameErrCount()
			c.logger.Debug("discarding undecodable frame", "method", "decodeFrame", "error", err)
		}

		return
	}

	c.metrics.incFrameRecvCount()
	c.lastActivity.Store(time.Now().UnixNano())
	c.stateMgr.ToConnectedAsync()

	if c.logger.Level() == logger.DebugLevel {
		c.logger.Debug("frame received", "method", "decodeFrame", "type", msg.Type, "value", msg.Value)
	}

	c.route(msg)
}

// route applies one received message to the engine: state store updates,
// window timing signals, spotting, activity accumulation, then delivery to
// the consumer queue and callbacks.
func (c *Connection) route(msg *js8.Message) {
	switch msg.Type {
	case js8.TypeRigFreq:
		c.routeFreq(msg)

	case js8.TypeRigPTT:
		c.store.SetPTT(strings.EqualFold(msg.Value, "on"))

	case js8.TypeStationCallsign:
		c.store.SetCallsign(msg.Value)

	case js8.TypeStationGrid:
		c.store.SetGrid(msg.Value)

	case js8.TypeStationInfo:
		c.store.SetInfo(msg.Value)

	case js8.TypeStationStatus:
		c.routeStatus(msg)

	case js8.TypeModeSpeed:
		if msg.Speed.Valid() {
			c.store.SetSpeed(msg.Speed)
		}

	case js8.TypeTxText:
		c.store.SetTxText(msg.Value)

	case js8.TypeRxText:
		c.store.SetRxText(msg.Value)

	case js8.TypeRxSelectedCall:
		c.store.SetSelectedCall(msg.Value)

	case js8.TypeMessages, js8.TypeInboxMessages:
		c.store.SetInbox(msg.Messages)

	case js8.TypeRxCallActivity:
		c.store.SetCallActivity(msg.CallActivity)

	case js8.TypeRxBandActivity:
		c.store.SetBandActivity(msg.BandActivity)

	case js8.TypeTxFrame:
		c.window.ObserveTxFrame(msg.Time)

	case js8.TypeRxDirected:
		c.routeDirected(msg)

	case js8.TypeRxSpot:
		c.maybeSpot(msg)

	case js8.TypeRxActivity:
		c.window.ObserveRxMessage(msg.Time)
		c.activity.Observe(msg)

	case js8.TypeClose:
		c.logger.Info("modem reported close", "method", "route")
		c.stateMgr.ToDisconnectedAsync()

	default:
		c.logger.Debug("unhandled message type", "method", "route", "type", msg.Type)
	}

	c.deliver(msg)
}

// routeFreq applies a RIG.FREQ report to the frequency state variables.
func (c *Connection) routeFreq(msg *js8.Message) {
	if msg.Dial != 0 {
		c.store.SetDial(msg.Dial)
	}
	if msg.Freq != 0 {
		c.store.SetFreq(msg.Freq)
	}
	c.store.SetOffset(msg.Offset)
}

// routeStatus applies a STATION.STATUS report, which bundles frequency,
// speed, and call selection into one message.
func (c *Connection) routeStatus(msg *js8.Message) {
	c.routeFreq(msg)

	if msg.Speed.Valid() {
		c.store.SetSpeed(msg.Speed)
	}
	if selected, ok := msg.Params["SELECTED"].(string); ok {
		c.store.SetSelectedCall(strings.TrimSpace(selected))
	}
}

// routeDirected handles a received directed message: window timing,
// text cleaning, custom command detection, and spotting.
func (c *Connection) routeDirected(msg *js8.Message) {
	c.window.ObserveRxMessage(msg.Time)

	if c.cfg.CleanDirectedText() {
		msg.Text = cleanDirectedText(msg)
	}

	if msg.Cmd == "" {
		c.detectCustomCommand(msg)
	}

	c.maybeSpot(msg)
}

// detectCustomCommand matches the cleaned text of a directed message
// against the registered custom command keywords.
func (c *Connection) detectCustomCommand(msg *js8.Message) {
	text := strings.ToUpper(strings.TrimSpace(msg.Text))
	if text == "" {
		return
	}

	for _, cmd := range c.callbacks.CustomCommands() {
		if strings.HasPrefix(text, cmd) {
			msg.Cmd = cmd
			return
		}
	}
}

// maybeSpot derives a spot from a qualifying message and records it.
func (c *Connection) maybeSpot(msg *js8.Message) {
	if msg.Origin == "" {
		return
	}

	if c.spots.Add(js8.NewSpot(msg)) {
		c.metrics.incSpotCount()
	} else {
		c.metrics.incSpotDupCount()
	}
}

// deliver appends the message to the consumer queue and fires the incoming
// callbacks. The queue is bounded; with no consumer the oldest messages
// are dropped.
func (c *Connection) deliver(msg *js8.Message) {
	c.rxQueue.Enqueue(msg)
	for c.rxQueue.Length() > rxQueueLimit {
		if _, ok := c.rxQueue.Dequeue(); !ok {
			break
		}
	}

	c.callbacks.fireIncoming(msg)
}

// livenessTask checks elapsed time since the last decoded frame. A stale
// session is marked disconnected and provoked with a lightweight callsign
// request; reconnection on hard failure is a collaborator responsibility.
func (c *Connection) livenessTask() bool {
	last := time.Unix(0, c.lastActivity.Load())
	if time.Since(last) <= c.cfg.IdleTimeout() {
		return true
	}

	c.stateMgr.ToDisconnectedAsync()

	lastProbe := time.Unix(0, c.lastProbe.Load())
	if time.Since(lastProbe) < probeHoldoff {
		return true
	}

	c.lastProbe.Store(time.Now().UnixNano())
	c.metrics.incProbeCount()
	c.logger.Warn("no rx traffic, probing modem", "method", "livenessTask", "idle", time.Since(last))

	if err := c.Enqueue(js8.NewTypedMessage(js8.TypeStationGetCallsign)); err != nil {
		c.logger.Warn("failed to queue liveness probe", "method", "livenessTask", "error", err)
	}

	return true
}

// onWindowTransition runs at every predicted transmit window boundary: it
// fires the window callbacks and the batch spot callbacks for spots
// accepted since the previous transition.
func (c *Connection) onWindowTransition(next time.Time) {
	c.callbacks.fireWindow(next)

	c.spotWakeMu.Lock()
	since := c.lastSpotWake
	c.lastSpotWake = time.Now()
	c.spotWakeMu.Unlock()

	if since.IsZero() {
		return
	}

	c.callbacks.fireSpots(c.spots.Since(since))
}

// openJournal opens the persistent spot journal when configured and wires
// it to the spot store through a buffered channel.
func (c *Connection) openJournal() error {
	path := c.cfg.SpotJournalPath()
	if path == "" {
		return nil
	}

	journal, err := spotlog.Open(path)
	if err != nil {
		return err
	}

	c.journal = journal
	c.journalChan = make(chan *js8.Spot, spotJournalBuffer)
	c.spots.setJournal(c.journalChan)

	return nil
}

// journalTask writes one accepted spot to the journal.
func (c *Connection) journalTask(spot *js8.Spot) bool {
	if err := c.journal.Append(spot); err != nil {
		c.metrics.incJournalErrCount()
		c.logger.Error("failed to journal spot", "method", "journalTask", "error", err)

		return true
	}

	c.metrics.incJournalCount()

	return true
}

// closeJournal detaches and closes the spot journal when the writer task
// exits.
func (c *Connection) closeJournal() {
	c.spots.setJournal(nil)

	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			c.logger.Error("failed to close spot journal", "method", "closeJournal", "error", err)
		}
		c.journal = nil
	}
}

// cleanDirectedText strips the protocol framing from directed message
// text: the origin callsign and relay path prefix, the destination, and
// the trailing end-of-message symbol, leaving only the payload.
func cleanDirectedText(msg *js8.Message) string {
	text := msg.Value

	if idx := strings.Index(text, ":"); idx >= 0 {
		text = text[idx+1:]
	}
	text = strings.TrimSpace(text)

	if msg.Destination != "" {
		text = strings.TrimSpace(strings.TrimPrefix(text, msg.Destination))
	}

	text = strings.TrimSuffix(text, js8.EOM)

	return strings.TrimSpace(text)
}

package js8call

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplyequipped/js8call-interface/js8"
	"github.com/simplyequipped/js8call-interface/logger"
)

func TestMain(m *testing.M) {
	logLevel := os.Getenv("LOG_LEVEL")

	var level logger.Level
	switch logLevel {
	case "debug":
		level = logger.DebugLevel
	case "warn":
		level = logger.WarnLevel
	case "error":
		level = logger.ErrorLevel
	default:
		level = logger.InfoLevel
	}

	logger.SetLevel(level)

	os.Exit(m.Run())
}

// fakeModem is a scripted JS8Call stand-in: a TCP server that answers state
// requests from canned values and lets tests push arbitrary frames.
type fakeModem struct {
	t        *testing.T
	listener net.Listener
	requests chan *js8.Message

	mu     sync.Mutex
	conn   net.Conn
	txText string
}

func startFakeModem(t *testing.T) *fakeModem {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	m := &fakeModem{
		t:        t,
		listener: listener,
		requests: make(chan *js8.Message, 64),
	}

	go m.acceptLoop()
	t.Cleanup(m.stop)

	return m
}

func (m *fakeModem) port() int {
	return m.listener.Addr().(*net.TCPAddr).Port
}

func (m *fakeModem) stop() {
	_ = m.listener.Close()

	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()
}

func (m *fakeModem) acceptLoop() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}

		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()

		go m.serve(conn)
	}
}

func (m *fakeModem) serve(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		msg, err := js8.DecodeMessage(scanner.Bytes())
		if err != nil {
			continue
		}

		select {
		case m.requests <- msg:
		default:
		}

		m.autoReply(msg)
	}
}

// autoReply answers state requests the way a configured modem would.
func (m *fakeModem) autoReply(msg *js8.Message) {
	switch msg.Type {
	case js8.TypeStationGetCallsign:
		m.push(js8.TypeStationCallsign, "W1AW", nil)
	case js8.TypeStationGetGrid:
		m.push(js8.TypeStationGrid, "EM19", nil)
	case js8.TypeStationGetInfo:
		m.push(js8.TypeStationInfo, "QRP 5W DIPOLE", nil)
	case js8.TypeModeGetSpeed:
		m.push(js8.TypeModeSpeed, "", map[string]any{"SPEED": 0})
	case js8.TypeRigGetFreq:
		m.push(js8.TypeRigFreq, "", map[string]any{
			"DIAL": 7078000, "FREQ": 7079000, "OFFSET": 1000,
		})
	case js8.TypeTxGetText:
		m.mu.Lock()
		text := m.txText
		m.mu.Unlock()
		m.push(js8.TypeTxText, text, nil)
	default:
	}
}

// setTxText updates the canned outgoing text field and reports the change
// unsolicited, as the modem does.
func (m *fakeModem) setTxText(text string) {
	m.mu.Lock()
	m.txText = text
	m.mu.Unlock()

	m.push(js8.TypeTxText, text, nil)
}

// push writes one frame to the connected client.
func (m *fakeModem) push(typ js8.Type, value string, params map[string]any) {
	if params == nil {
		params = map[string]any{}
	}

	data, err := json.Marshal(map[string]any{
		"type":   string(typ),
		"value":  value,
		"params": params,
	})
	require.NoError(m.t, err)
	data = append(data, '\n')

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return
	}
	_, _ = m.conn.Write(data)
}

// awaitRequest waits for the modem to receive a request of the given type.
func (m *fakeModem) awaitRequest(t *testing.T, typ js8.Type) *js8.Message {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-m.requests:
			if msg.Type == typ {
				return msg
			}
		case <-deadline:
			t.Fatalf("modem never received %s", typ)
			return nil
		}
	}
}

func openTestConnection(t *testing.T, modem *fakeModem, opts ...ConnOption) *Connection {
	t.Helper()

	opts = append([]ConnOption{WithWatchTimeout(2 * time.Second)}, opts...)
	cfg, err := NewConnectionConfig("127.0.0.1", modem.port(), opts...)
	require.NoError(t, err)

	conn, err := NewConnection(context.Background(), cfg)
	require.NoError(t, err)

	require.NoError(t, conn.Open(true))
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestConnection_OpenValidatesSession(t *testing.T) {
	modem := startFakeModem(t)
	conn := openTestConnection(t, modem)

	assert.True(t, conn.Connected())

	// the initial callsign request validated the link and populated the
	// state mirror
	modem.awaitRequest(t, js8.TypeStationGetCallsign)

	require.Eventually(t, func() bool {
		callsign, ok := conn.State().Callsign()
		return ok && callsign == "W1AW"
	}, 2*time.Second, 10*time.Millisecond)

	assert.Greater(t, conn.GetMetrics().FrameRecvCount.Load(), uint64(0))
}

func TestConnection_OpenTwice(t *testing.T) {
	modem := startFakeModem(t)
	conn := openTestConnection(t, modem)

	assert.ErrorIs(t, conn.Open(false), ErrAlreadyOpen)
}

func TestConnection_WatchRoundTrip(t *testing.T) {
	modem := startFakeModem(t)
	conn := openTestConnection(t, modem)

	result := conn.Watch(StateGrid)
	assert.Equal(t, "EM19", result)

	grid, ok := conn.State().Grid()
	require.True(t, ok)
	assert.Equal(t, "EM19", grid)
}

func TestConnection_ReceiveDirected(t *testing.T) {
	modem := startFakeModem(t)
	conn := openTestConnection(t, modem)

	directed := make(chan *js8.Message, 4)
	conn.Callbacks().OnIncoming(js8.TypeRxDirected, func(msg *js8.Message) { directed <- msg })

	modem.push(js8.TypeRxDirected, "N0XYZ: W1AW  HELLO WORLD "+js8.EOM, map[string]any{
		"FROM": "N0XYZ", "TO": "W1AW", "SNR": -7, "GRID": "FN31",
	})

	select {
	case msg := <-directed:
		assert.Equal(t, "N0XYZ", msg.Origin)
		assert.Equal(t, "W1AW", msg.Destination)
		assert.Equal(t, -7, msg.SNR)

		// protocol framing is stripped from the text
		assert.Equal(t, "HELLO WORLD", msg.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("directed message never delivered")
	}

	// the reception was spotted
	require.Eventually(t, func() bool {
		return len(conn.Spots().Query(SpotFilter{Origin: "N0XYZ"})) == 1
	}, 2*time.Second, 10*time.Millisecond)

	spot := conn.Spots().Query(SpotFilter{Origin: "N0XYZ"})[0]
	assert.Equal(t, "FN31", spot.Grid)
	assert.Equal(t, -7, spot.SNR)
}

func TestConnection_RawTextDelivery(t *testing.T) {
	modem := startFakeModem(t)
	conn := openTestConnection(t, modem, WithCleanDirectedText(false))

	directed := make(chan *js8.Message, 4)
	conn.Callbacks().OnIncoming(js8.TypeRxDirected, func(msg *js8.Message) { directed <- msg })

	raw := "N0XYZ: W1AW  HELLO " + js8.EOM
	modem.push(js8.TypeRxDirected, raw, map[string]any{"FROM": "N0XYZ", "TO": "W1AW", "TEXT": raw})

	select {
	case msg := <-directed:
		assert.Equal(t, raw, msg.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("directed message never delivered")
	}
}

func TestClient_SendDirectedLifecycle(t *testing.T) {
	modem := startFakeModem(t)

	cfg, err := NewConnectionConfig("127.0.0.1", modem.port(), WithWatchTimeout(2*time.Second))
	require.NoError(t, err)

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)

	statuses := make(chan js8.Status, 8)
	client.OnOutgoingStatus(func(msg *js8.Message) { statuses <- msg.Status() })

	require.NoError(t, client.Open(true))
	t.Cleanup(func() { _ = client.Close() })

	msg, err := client.SendDirectedMessage("N0XYZ", "hello")
	require.NoError(t, err)
	assert.Equal(t, js8.StatusQueued, msg.Status())

	sent := modem.awaitRequest(t, js8.TypeTxSendMessage)
	assert.Equal(t, "N0XYZ HELLO", sent.Value)

	// the modem picks the message up into its outgoing text field
	modem.setTxText("W1AW: N0XYZ  HELLO " + js8.EOM)
	select {
	case status := <-statuses:
		assert.Equal(t, js8.StatusSending, status)
	case <-time.After(5 * time.Second):
		t.Fatal("no SENDING transition")
	}

	// and clears it once the transmission is over
	modem.setTxText("")
	select {
	case status := <-statuses:
		assert.Equal(t, js8.StatusSent, status)
	case <-time.After(5 * time.Second):
		t.Fatal("no SENT transition")
	}
}

func TestClient_TypedGetters(t *testing.T) {
	modem := startFakeModem(t)

	cfg, err := NewConnectionConfig("127.0.0.1", modem.port(), WithWatchTimeout(2*time.Second))
	require.NoError(t, err)

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, client.Open(true))
	t.Cleanup(func() { _ = client.Close() })

	callsign, err := client.StationCallsign()
	require.NoError(t, err)
	assert.Equal(t, "W1AW", callsign)

	grid, err := client.StationGrid()
	require.NoError(t, err)
	assert.Equal(t, "EM19", grid)

	dial, err := client.DialFrequency()
	require.NoError(t, err)
	assert.Equal(t, int64(7078000), dial)

	band, err := client.Band()
	require.NoError(t, err)
	assert.Equal(t, "40m", band)

	speed, err := client.Speed()
	require.NoError(t, err)
	assert.Equal(t, js8.SpeedNormal, speed)
}

func TestConnection_LivenessProbe(t *testing.T) {
	cfg, err := NewConnectionConfig("127.0.0.1", 2442)
	require.NoError(t, err)

	conn, err := NewConnection(context.Background(), cfg)
	require.NoError(t, err)

	conn.stateMgr.ToConnected()
	require.True(t, conn.Connected())

	// recent traffic keeps the session alive and queues nothing
	conn.lastActivity.Store(time.Now().UnixNano())
	require.True(t, conn.livenessTask())
	assert.True(t, conn.Connected())
	assert.Equal(t, 0, conn.dispatcher.pending())

	// idle past the limit drops the session and queues one probe
	conn.lastActivity.Store(time.Now().Add(-cfg.IdleTimeout() - time.Second).UnixNano())
	require.True(t, conn.livenessTask())

	require.Eventually(t, func() bool { return !conn.Connected() }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, conn.dispatcher.pending())
	assert.Equal(t, uint64(1), conn.GetMetrics().ProbeCount.Load())

	// a second tick inside the holdoff queues no repeat probe
	require.True(t, conn.livenessTask())
	assert.Equal(t, 1, conn.dispatcher.pending())
	assert.Equal(t, uint64(1), conn.GetMetrics().ProbeCount.Load())

	// once the holdoff has elapsed the probe repeats
	conn.lastProbe.Store(time.Now().Add(-probeHoldoff - time.Second).UnixNano())
	require.True(t, conn.livenessTask())
	assert.Equal(t, 2, conn.dispatcher.pending())
	assert.Equal(t, uint64(2), conn.GetMetrics().ProbeCount.Load())
}

func TestConnection_CloseIdempotent(t *testing.T) {
	modem := startFakeModem(t)
	conn := openTestConnection(t, modem)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.False(t, conn.Connected())
}

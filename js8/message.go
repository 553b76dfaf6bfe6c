package js8

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/simplyequipped/js8call-interface/internal/util"
)

// Type identifies the protocol operation carried by an API frame.
type Type string

// Outgoing message types sent to the JS8Call application.
const (
	TypeRxGetText          Type = "RX.GET_TEXT"
	TypeRxGetCallActivity  Type = "RX.GET_CALL_ACTIVITY"
	TypeRxGetBandActivity  Type = "RX.GET_BAND_ACTIVITY"
	TypeRxGetSelectedCall  Type = "RX.GET_CALL_SELECTED"
	TypeTxSendMessage      Type = "TX.SEND_MESSAGE"
	TypeTxGetText          Type = "TX.GET_TEXT"
	TypeTxSetText          Type = "TX.SET_TEXT"
	TypeModeGetSpeed       Type = "MODE.GET_SPEED"
	TypeModeSetSpeed       Type = "MODE.SET_SPEED"
	TypeStationGetInfo     Type = "STATION.GET_INFO"
	TypeStationSetInfo     Type = "STATION.SET_INFO"
	TypeStationGetGrid     Type = "STATION.GET_GRID"
	TypeStationSetGrid     Type = "STATION.SET_GRID"
	TypeStationGetCallsign Type = "STATION.GET_CALLSIGN"
	TypeInboxGetMessages   Type = "INBOX.GET_MESSAGES"
	TypeInboxStoreMessage  Type = "INBOX.STORE_MESSAGE"
	TypeRigGetFreq         Type = "RIG.GET_FREQ"
	TypeRigSetFreq         Type = "RIG.SET_FREQ"
	TypeWindowRaise        Type = "WINDOW.RAISE"
)

// Incoming message types received from the JS8Call application.
const (
	TypeMessages        Type = "MESSAGES"
	TypeInboxMessages   Type = "INBOX.MESSAGES"
	TypeRxSpot          Type = "RX.SPOT"
	TypeRxDirected      Type = "RX.DIRECTED"
	TypeRxSelectedCall  Type = "RX.CALL_SELECTED"
	TypeRxCallActivity  Type = "RX.CALL_ACTIVITY"
	TypeRxBandActivity  Type = "RX.BAND_ACTIVITY"
	TypeRxActivity      Type = "RX.ACTIVITY"
	TypeRxText          Type = "RX.TEXT"
	TypeTxText          Type = "TX.TEXT"
	TypeTxFrame         Type = "TX.FRAME"
	TypeRigFreq         Type = "RIG.FREQ"
	TypeRigPTT          Type = "RIG.PTT"
	TypeStationCallsign Type = "STATION.CALLSIGN"
	TypeStationGrid     Type = "STATION.GRID"
	TypeStationInfo     Type = "STATION.INFO"
	TypeStationStatus   Type = "STATION.STATUS"
	TypeModeSpeed       Type = "MODE.SPEED"
	TypeClose           Type = "CLOSE"
)

// Frame text constants.
const (
	// EOM is the end-of-message symbol appended to transmitted text.
	EOM = "♢"
	// ERR is the in-band error marker indicating a partial decode.
	ERR = "…"
)

var txTypes = map[Type]struct{}{
	TypeRxGetText: {}, TypeRxGetCallActivity: {}, TypeRxGetBandActivity: {},
	TypeRxGetSelectedCall: {}, TypeTxSendMessage: {}, TypeTxGetText: {},
	TypeTxSetText: {}, TypeModeGetSpeed: {}, TypeModeSetSpeed: {},
	TypeStationGetInfo: {}, TypeStationSetInfo: {}, TypeStationGetGrid: {},
	TypeStationSetGrid: {}, TypeStationGetCallsign: {}, TypeInboxGetMessages: {},
	TypeInboxStoreMessage: {}, TypeRigGetFreq: {}, TypeRigSetFreq: {},
	TypeWindowRaise: {},
}

var rxTypes = map[Type]struct{}{
	TypeMessages: {}, TypeInboxMessages: {}, TypeRxSpot: {}, TypeRxDirected: {},
	TypeRxSelectedCall: {}, TypeRxCallActivity: {}, TypeRxBandActivity: {},
	TypeRxActivity: {}, TypeRxText: {}, TypeTxText: {}, TypeTxFrame: {},
	TypeRigFreq: {}, TypeRigPTT: {}, TypeStationCallsign: {}, TypeStationGrid: {},
	TypeStationInfo: {}, TypeStationStatus: {}, TypeModeSpeed: {}, TypeClose: {},
}

// IsTransmit returns true if t is an outgoing message type.
func (t Type) IsTransmit() bool {
	_, ok := txTypes[t]
	return ok
}

// IsReceive returns true if t is an incoming message type.
func (t Type) IsReceive() bool {
	_, ok := rxTypes[t]
	return ok
}

// Message is the unit of exchange with the JS8Call API, covering both
// outgoing requests and decoded incoming frames.
//
// Only Type, Value, and Params travel on the wire. The remaining fields
// are derived from Params during decoding or set locally for
// bookkeeping. Fields not applicable to the message type hold their zero
// value.
type Message struct {
	// ID is a random URL-safe identifier used to track the message inside
	// this process.
	ID string
	// Type identifies the protocol operation.
	Type Type
	// Destination is the callsign or group the message is directed to,
	// including any relay path ("KT1RUN>OH8STN").
	Destination string
	// Value is the free-text payload; its meaning depends on Type.
	Value string
	// Params carries the structured payload of the frame.
	Params map[string]any

	// Origin is the callsign the message came from.
	Origin string
	// Call is the callsign reported by CALL params.
	Call string
	// Cmd is the directed command keyword, if any.
	Cmd string
	// Text is the message text; for cleaned directed messages it holds
	// the text with callsigns and protocol symbols removed.
	Text string
	// Path is the relay path parsed from a directed message, ordered from
	// the origin outward.
	Path []string
	// Grid is the Maidenhead grid square reported by the message.
	Grid string
	// SNR is the signal-to-noise ratio in dB.
	SNR int
	// Dial is the dial frequency in Hz.
	Dial int64
	// Freq is the dial frequency plus offset in Hz.
	Freq int64
	// Offset is the passband offset frequency in Hz.
	Offset int64
	// Speed is the modem speed the signal was received at.
	Speed Speed
	// UTC is the timestamp reported by the message in milliseconds since
	// the Unix epoch.
	UTC int64
	// Extra carries auxiliary payload text used by a few message types.
	Extra string

	// Messages holds the decoded inbox listing for inbox message types.
	Messages []InboxMessage
	// CallActivity holds the decoded call activity table.
	CallActivity []CallActivity
	// BandActivity holds the decoded band activity table.
	BandActivity []BandActivity

	// Time is when the message was created locally.
	Time time.Time
	// Raw is the frame text a received message was decoded from.
	Raw string

	status atomic.Int32
}

// NewMessage creates an outgoing message of type TX.SEND_MESSAGE directed
// to destination. Destination and value are uppercased since JS8Call
// transmits uppercase only. An empty destination produces an undirected
// message.
func NewMessage(destination, value string) *Message {
	msg := &Message{
		ID:          GenerateMessageID(),
		Type:        TypeTxSendMessage,
		Destination: strings.ToUpper(destination),
		Value:       strings.ToUpper(value),
		Params:      make(map[string]any),
		Time:        time.Now(),
	}
	msg.Text = msg.Value
	msg.status.Store(int32(StatusCreated))

	return msg
}

// NewCommandMessage creates an outgoing directed message carrying a
// command keyword, as in "K1ABC QUERY CALL N0XYZ?". The command is folded
// into Value so the message transmits as destination, command, and text
// joined by single spaces.
func NewCommandMessage(destination, cmd, value string) *Message {
	msg := NewMessage(destination, strings.TrimSpace(cmd+" "+value))
	msg.Cmd = strings.ToUpper(strings.TrimSpace(cmd))

	return msg
}

// NewTypedMessage creates an outgoing message of an arbitrary type with
// no value, for state requests like STATION.GET_CALLSIGN.
func NewTypedMessage(typ Type) *Message {
	msg := NewMessage("", "")
	msg.Type = typ

	return msg
}

// wireMessage is the JSON shape of an API frame.
type wireMessage struct {
	Type   string         `json:"type"`
	Value  string         `json:"value"`
	Params map[string]any `json:"params"`
}

// Encode serializes the message to a newline-terminated wire frame.
//
// For directed TX.SEND_MESSAGE frames the wire value is the destination
// and value joined by a single space, matching what the operator would
// type into the JS8Call message box.
func (m *Message) Encode() ([]byte, error) {
	value := m.Value
	if m.Type == TypeTxSendMessage && m.Destination != "" {
		value = strings.TrimRight(m.Destination+" "+value, " ")
	}

	params := m.Params
	if params == nil {
		params = map[string]any{}
	}

	data, err := json.Marshal(wireMessage{
		Type:   string(m.Type),
		Value:  value,
		Params: params,
	})
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}

// TransmitText returns the message text as it appears in the modem's
// outgoing text field while the message is queued for transmission. The
// modem renders the destination and message body separated by two spaces.
func (m *Message) TransmitText() string {
	value := strings.TrimSpace(m.Value)
	if m.Destination == "" {
		return value
	}

	return m.Destination + "  " + value
}

// Status returns the current lifecycle status.
func (m *Message) Status() Status {
	return Status(m.status.Load())
}

// SetStatus transitions the message to a new lifecycle status. It returns
// false without modifying the message when the transition is not allowed,
// which includes every transition out of a terminal status.
func (m *Message) SetStatus(to Status) bool {
	for {
		from := Status(m.status.Load())
		if from == to {
			return true
		}
		if !validStatusTransition(from, to) {
			return false
		}
		if m.status.CompareAndSwap(int32(from), int32(to)) {
			return true
		}
	}
}

// Age returns the time elapsed since the message was created.
func (m *Message) Age() time.Duration {
	return time.Since(m.Time)
}

// GetParam returns the named structured parameter, or nil if absent.
func (m *Message) GetParam(key string) any {
	if m.Params == nil {
		return nil
	}

	return m.Params[key]
}

// SetParam sets a structured parameter on the message.
func (m *Message) SetParam(key string, value any) {
	if m.Params == nil {
		m.Params = make(map[string]any)
	}
	m.Params[key] = value
}

// Clone returns a copy of the message with its own params map and
// lifecycle status.
func (m *Message) Clone() *Message {
	cloned := &Message{
		ID:           m.ID,
		Type:         m.Type,
		Destination:  m.Destination,
		Value:        m.Value,
		Params:       util.CloneMap(m.Params),
		Origin:       m.Origin,
		Call:         m.Call,
		Cmd:          m.Cmd,
		Text:         m.Text,
		Path:         util.CloneSlice(m.Path, 0),
		Grid:         m.Grid,
		SNR:          m.SNR,
		Dial:         m.Dial,
		Freq:         m.Freq,
		Offset:       m.Offset,
		Speed:        m.Speed,
		UTC:          m.UTC,
		Extra:        m.Extra,
		Messages:     util.CloneSlice(m.Messages, 0),
		CallActivity: util.CloneSlice(m.CallActivity, 0),
		BandActivity: util.CloneSlice(m.BandActivity, 0),
		Time:         m.Time,
		Raw:          m.Raw,
	}
	cloned.status.Store(m.status.Load())

	return cloned
}

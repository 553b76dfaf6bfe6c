package js8

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DecodeMessage decodes one newline-delimited API frame into a Message.
// Trailing carriage returns and surrounding whitespace are tolerated.
//
// Decoding is permissive about missing fields but never yields a message
// without a type: a frame that cannot be parsed, or whose type is absent,
// returns an error. A frame whose value contains the in-band error marker
// returns ErrErrorValue so the receive path can discard the whole
// message.
func DecodeMessage(line []byte) (*Message, error) {
	raw := strings.TrimSpace(string(line))
	if raw == "" {
		return nil, ErrEmptyFrame
	}

	var wire wireMessage
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	wire.Type = strings.TrimSpace(wire.Type)
	if wire.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}

	if strings.Contains(wire.Value, ERR) {
		return nil, ErrErrorValue
	}

	msg := &Message{
		ID:     GenerateMessageID(),
		Type:   Type(wire.Type),
		Value:  strings.TrimSpace(wire.Value),
		Params: wire.Params,
		Time:   time.Now(),
		Raw:    raw,
	}
	msg.status.Store(int32(StatusReceived))

	switch msg.Type {
	case TypeMessages, TypeInboxMessages:
		msg.Messages = decodeInboxMessages(wire.Params)
	case TypeRxCallActivity:
		msg.CallActivity = decodeCallActivity(wire.Params)
	case TypeRxBandActivity:
		msg.BandActivity = decodeBandActivity(wire.Params)
	default:
		msg.deriveParamFields()
	}

	return msg, nil
}

// deriveParamFields populates the typed convenience fields from the
// structured params payload.
func (m *Message) deriveParamFields() {
	if v, ok := paramString(m.Params, "CALL"); ok {
		m.Call = v
	}
	if v, ok := paramString(m.Params, "FROM"); ok {
		m.Origin = v
	} else {
		m.Origin = m.Call
	}
	// A relayed message reports a compound origin ("KT1RUN>OH8STN").
	// Origin keeps the originating callsign; the remaining hops become
	// the relay path.
	if strings.Contains(m.Origin, CmdRelay) {
		hops := strings.Split(m.Origin, CmdRelay)
		m.Origin = strings.TrimSpace(hops[0])
		for _, hop := range hops[1:] {
			if hop = strings.TrimSpace(hop); hop != "" {
				m.Path = append(m.Path, hop)
			}
		}
	}
	if v, ok := paramString(m.Params, "TO"); ok {
		m.Destination = v
	}
	if v, ok := paramString(m.Params, "CMD"); ok {
		m.Cmd = v
	}
	if v, ok := paramString(m.Params, "GRID"); ok {
		m.Grid = v
	}
	if v, ok := paramString(m.Params, "TEXT"); ok {
		m.Text = v
	}
	if v, ok := paramString(m.Params, "EXTRA"); ok {
		m.Extra = v
	}
	if v, ok := paramInt64(m.Params, "SNR"); ok {
		m.SNR = int(v)
	}
	if v, ok := paramInt64(m.Params, "DIAL"); ok {
		m.Dial = v
	}
	if v, ok := paramInt64(m.Params, "FREQ"); ok {
		m.Freq = v
	}
	if v, ok := paramInt64(m.Params, "OFFSET"); ok {
		m.Offset = v
	}
	if v, ok := paramInt64(m.Params, "SPEED"); ok {
		m.Speed = Speed(v)
	}
	if v, ok := paramInt64(m.Params, "UTC"); ok {
		m.UTC = v
	}

	// A GRID command response carries the grid square as the fourth word
	// of its text. An error marker in that word means the grid did not
	// decode and must not be reported.
	if m.Cmd == CmdGrid && m.Text != "" {
		words := strings.Fields(m.Text)
		if len(words) >= 4 {
			if strings.Contains(words[3], ERR) {
				m.Grid = ""
			} else {
				m.Grid = words[3]
			}
		}
	}
}

// decodeInboxMessages normalizes the MESSAGES payload of an inbox
// listing. Entries without a params object are skipped.
func decodeInboxMessages(params map[string]any) []InboxMessage {
	raw, ok := params["MESSAGES"].([]any)
	if !ok {
		return nil
	}

	messages := make([]InboxMessage, 0, len(raw))
	for _, entry := range raw {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		itemParams, ok := item["params"].(map[string]any)
		if !ok {
			continue
		}

		msg := InboxMessage{
			UTC:         textParam(itemParams, "UTC"),
			Origin:      stringParam(itemParams, "FROM"),
			Destination: stringParam(itemParams, "TO"),
			Path:        stringParam(itemParams, "PATH"),
			Text:        stringParam(itemParams, "TEXT"),
		}
		if id, ok := paramInt64(itemParams, "_ID"); ok {
			msg.ID = id
		}
		if typ, ok := item["type"].(string); ok {
			msg.Unread = strings.EqualFold(typ, "UNREAD")
		}

		messages = append(messages, msg)
	}

	return messages
}

// decodeCallActivity normalizes the call activity table. Keys other than
// callsigns (such as _ID) and null entries are skipped. Rows are sorted
// by callsign for deterministic ordering.
func decodeCallActivity(params map[string]any) []CallActivity {
	activity := make([]CallActivity, 0, len(params))
	for key, value := range params {
		if key == "_ID" {
			continue
		}
		row, ok := value.(map[string]any)
		if !ok {
			continue
		}

		entry := CallActivity{
			Origin: strings.TrimSpace(key),
			Grid:   stringParam(row, "GRID"),
		}
		if snr, ok := paramInt64(row, "SNR"); ok {
			entry.SNR = int(snr)
		}
		if utc, ok := paramInt64(row, "UTC"); ok {
			entry.UTC = utc
		}

		activity = append(activity, entry)
	}

	sort.Slice(activity, func(i, j int) bool { return activity[i].Origin < activity[j].Origin })

	return activity
}

// decodeBandActivity normalizes the band activity table. Only keys that
// parse as integer passband offsets are activity rows. Rows are sorted by
// offset for deterministic ordering.
func decodeBandActivity(params map[string]any) []BandActivity {
	activity := make([]BandActivity, 0, len(params))
	for key, value := range params {
		if _, err := strconv.Atoi(key); err != nil {
			continue
		}
		row, ok := value.(map[string]any)
		if !ok {
			continue
		}

		entry := BandActivity{
			Text: stringParam(row, "TEXT"),
		}
		if dial, ok := paramInt64(row, "DIAL"); ok {
			entry.Freq = dial
		}
		if offset, ok := paramInt64(row, "OFFSET"); ok {
			entry.Offset = offset
		}
		if snr, ok := paramInt64(row, "SNR"); ok {
			entry.SNR = int(snr)
		}
		if utc, ok := paramInt64(row, "UTC"); ok {
			entry.UTC = utc
		}

		activity = append(activity, entry)
	}

	sort.Slice(activity, func(i, j int) bool { return activity[i].Offset < activity[j].Offset })

	return activity
}

// paramString returns the named param as a trimmed string. Non-string
// values report false.
func paramString(params map[string]any, key string) (string, bool) {
	value, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	if !ok {
		return "", false
	}

	return strings.TrimSpace(s), true
}

// stringParam is paramString without the presence flag.
func stringParam(params map[string]any, key string) string {
	s, _ := paramString(params, key)
	return s
}

// textParam returns the named param as text regardless of whether it was
// reported as a string or a number.
func textParam(params map[string]any, key string) string {
	if s, ok := paramString(params, key); ok {
		return s
	}
	if n, ok := paramInt64(params, key); ok {
		return strconv.FormatInt(n, 10)
	}

	return ""
}

// paramInt64 returns the named param coerced to int64. JSON numbers
// arrive as float64; numeric strings are parsed as a fallback.
func paramInt64(params map[string]any, key string) (int64, bool) {
	value, ok := params[key]
	if !ok {
		return 0, false
	}

	switch v := value.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}

		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}

		return n, true
	default:
		return 0, false
	}
}

package js8

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage_Directed(t *testing.T) {
	require := require.New(t)

	frame := `{"type":"RX.DIRECTED","value":"N0XYZ: K1ABC SNR -12 ♢","params":` +
		`{"FROM":"N0XYZ","TO":"K1ABC","CMD":" SNR","SNR":-12,"DIAL":7078000,` +
		`"FREQ":7079750,"OFFSET":1750,"SPEED":1,"UTC":1673123456789,` +
		`"TEXT":"N0XYZ: K1ABC SNR -12 ♢","GRID":" EM19"}}`

	msg, err := DecodeMessage([]byte(frame))
	require.NoError(err)
	require.Equal(TypeRxDirected, msg.Type)
	require.Equal(StatusReceived, msg.Status())
	require.Equal("N0XYZ", msg.Origin)
	require.Equal("K1ABC", msg.Destination)
	require.Equal("SNR", msg.Cmd)
	require.Equal("EM19", msg.Grid)
	require.Equal(-12, msg.SNR)
	require.Equal(int64(7078000), msg.Dial)
	require.Equal(int64(7079750), msg.Freq)
	require.Equal(int64(1750), msg.Offset)
	require.Equal(SpeedFast, msg.Speed)
	require.Equal(int64(1673123456789), msg.UTC)
	require.NotEmpty(msg.ID)
	require.Equal(frame, msg.Raw)
}

func TestDecodeMessage_CallFallback(t *testing.T) {
	assert := assert.New(t)

	// CALL stands in for FROM when FROM is absent
	msg, err := DecodeMessage([]byte(`{"type":"RX.SPOT","value":"","params":{"CALL":"N0XYZ","SNR":-5}}`))
	assert.NoError(err)
	assert.Equal("N0XYZ", msg.Call)
	assert.Equal("N0XYZ", msg.Origin)

	// FROM wins when both are present
	msg, err = DecodeMessage([]byte(`{"type":"RX.SPOT","value":"","params":{"CALL":"N0XYZ","FROM":"K1ABC"}}`))
	assert.NoError(err)
	assert.Equal("K1ABC", msg.Origin)
}

func TestDecodeMessage_RelayPath(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	frame := `{"type":"RX.DIRECTED","value":"KT1RUN>OH8STN>K1ABC HELLO ♢","params":` +
		`{"FROM":"KT1RUN>OH8STN","TO":"K1ABC","SNR":-11}}`

	msg, err := DecodeMessage([]byte(frame))
	require.NoError(err)

	// the originating callsign stands alone so station watches match
	assert.Equal("KT1RUN", msg.Origin)
	assert.Equal([]string{"OH8STN"}, msg.Path)

	// the path survives into the spot record
	spot := NewSpot(msg)
	assert.Equal("KT1RUN", spot.Origin)
	assert.Equal([]string{"OH8STN"}, spot.Path)
}

func TestDecodeMessage_RelayPathMultiHop(t *testing.T) {
	assert := assert.New(t)

	msg, err := DecodeMessage([]byte(`{"type":"RX.DIRECTED","value":"","params":` +
		`{"FROM":"W1AW>KT1RUN>OH8STN","TO":"@ALLCALL"}}`))
	assert.NoError(err)
	assert.Equal("W1AW", msg.Origin)
	assert.Equal([]string{"KT1RUN", "OH8STN"}, msg.Path)

	// a plain origin carries no path
	msg, err = DecodeMessage([]byte(`{"type":"RX.DIRECTED","value":"","params":{"FROM":"W1AW"}}`))
	assert.NoError(err)
	assert.Equal("W1AW", msg.Origin)
	assert.Empty(msg.Path)
}

func TestDecodeMessage_GridCommand(t *testing.T) {
	assert := assert.New(t)

	t.Run("grid parsed from fourth word of text", func(t *testing.T) {
		frame := `{"type":"RX.DIRECTED","value":"N0XYZ: K1ABC GRID EM19 ♢","params":` +
			`{"FROM":"N0XYZ","TO":"K1ABC","CMD":"GRID","TEXT":"N0XYZ: K1ABC GRID EM19"}}`
		msg, err := DecodeMessage([]byte(frame))
		assert.NoError(err)
		assert.Equal("EM19", msg.Grid)
	})

	t.Run("error marker clears the grid", func(t *testing.T) {
		frame := `{"type":"RX.DIRECTED","value":"N0XYZ: K1ABC GRID","params":` +
			`{"FROM":"N0XYZ","CMD":"GRID","TEXT":"N0XYZ: K1ABC GRID …","GRID":"EM19"}}`
		msg, err := DecodeMessage([]byte(frame))
		assert.NoError(err)
		assert.Empty(msg.Grid)
	})

	t.Run("short text leaves grid param untouched", func(t *testing.T) {
		frame := `{"type":"RX.DIRECTED","value":"GRID","params":` +
			`{"CMD":"GRID","TEXT":"GRID","GRID":"EM19"}}`
		msg, err := DecodeMessage([]byte(frame))
		assert.NoError(err)
		assert.Equal("EM19", msg.Grid)
	})
}

func TestDecodeMessage_Malformed(t *testing.T) {
	assert := assert.New(t)

	t.Run("empty line", func(t *testing.T) {
		_, err := DecodeMessage([]byte("  \r\n"))
		assert.ErrorIs(err, ErrEmptyFrame)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := DecodeMessage([]byte(`{"type":"RX.DIRECTED"`))
		assert.ErrorIs(err, ErrMalformedFrame)
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := DecodeMessage([]byte(`["RX.DIRECTED"]`))
		assert.ErrorIs(err, ErrMalformedFrame)
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := DecodeMessage([]byte(`{"value":"HELLO","params":{}}`))
		assert.ErrorIs(err, ErrMalformedFrame)
	})

	t.Run("error marker in value discards message", func(t *testing.T) {
		_, err := DecodeMessage([]byte(`{"type":"RX.DIRECTED","value":"N0XYZ: K1ABC HEL…","params":{}}`))
		assert.ErrorIs(err, ErrErrorValue)
	})
}

func TestDecodeMessage_RoundTrip(t *testing.T) {
	require := require.New(t)

	frames := []string{
		`{"type":"TX.SEND_MESSAGE","value":"K1ABC HELLO","params":{}}`,
		`{"type":"STATION.GRID","value":"EM19es","params":{}}`,
		`{"type":"RIG.FREQ","value":"","params":{"DIAL":7078000,"FREQ":7079750,"OFFSET":1750}}`,
	}

	for _, frame := range frames {
		msg, err := DecodeMessage([]byte(frame))
		require.NoError(err)

		encoded, err := msg.Encode()
		require.NoError(err)

		var want, got map[string]any
		require.NoError(json.Unmarshal([]byte(frame), &want))
		require.NoError(json.Unmarshal(encoded, &got))
		require.Equal(want, got, "frame: %s", frame)
	}
}

func TestDecodeMessage_InboxMessages(t *testing.T) {
	require := require.New(t)

	frame := `{"type":"INBOX.MESSAGES","value":"","params":{"MESSAGES":[` +
		`{"type":"UNREAD","params":{"_ID":101,"UTC":"2023-01-07 01:02:03",` +
		`"FROM":"N0XYZ","TO":"K1ABC","PATH":"N0XYZ","TEXT":"HELLO"}},` +
		`{"type":"READ","params":{"_ID":102,"UTC":"2023-01-07 02:03:04",` +
		`"FROM":"W1AW","TO":"K1ABC","PATH":"W1AW>N0XYZ","TEXT":"73"}},` +
		`"garbage"]}}`

	msg, err := DecodeMessage([]byte(frame))
	require.NoError(err)
	require.Len(msg.Messages, 2)

	first := msg.Messages[0]
	require.Equal(int64(101), first.ID)
	require.Equal("2023-01-07 01:02:03", first.UTC)
	require.Equal("N0XYZ", first.Origin)
	require.Equal("K1ABC", first.Destination)
	require.Equal("N0XYZ", first.Path)
	require.Equal("HELLO", first.Text)
	require.True(first.Unread)

	require.Equal(int64(102), msg.Messages[1].ID)
	require.False(msg.Messages[1].Unread)
}

func TestDecodeMessage_LegacyMessages(t *testing.T) {
	assert := assert.New(t)

	// the older MESSAGES type carries the same payload shape
	frame := `{"type":"MESSAGES","value":"","params":{"MESSAGES":[` +
		`{"type":"UNREAD","params":{"_ID":7,"UTC":"2023-01-07 01:02:03",` +
		`"FROM":"N0XYZ","TO":"K1ABC","PATH":"","TEXT":"TEST"}}]}}`

	msg, err := DecodeMessage([]byte(frame))
	assert.NoError(err)
	assert.Len(msg.Messages, 1)
	assert.Equal(int64(7), msg.Messages[0].ID)
}

func TestDecodeMessage_CallActivity(t *testing.T) {
	require := require.New(t)

	frame := `{"type":"RX.CALL_ACTIVITY","value":"","params":{` +
		`"_ID":-1,` +
		`"W1AW":{"GRID":" FN31","SNR":-7,"UTC":1673123400000},` +
		`"N0XYZ":{"GRID":"","SNR":3,"UTC":1673123456000},` +
		`"K9DEF":null}}`

	msg, err := DecodeMessage([]byte(frame))
	require.NoError(err)
	require.Len(msg.CallActivity, 2)

	// rows sorted by callsign
	require.Equal("N0XYZ", msg.CallActivity[0].Origin)
	require.Equal(3, msg.CallActivity[0].SNR)
	require.Equal("W1AW", msg.CallActivity[1].Origin)
	require.Equal("FN31", msg.CallActivity[1].Grid)
	require.Equal(-7, msg.CallActivity[1].SNR)
	require.Equal(int64(1673123400000), msg.CallActivity[1].UTC)
}

func TestDecodeMessage_BandActivity(t *testing.T) {
	require := require.New(t)

	frame := `{"type":"RX.BAND_ACTIVITY","value":"","params":{` +
		`"_ID":-1,` +
		`"1750":{"DIAL":7078000,"OFFSET":1750,"SNR":-15,"UTC":1673123400000,"TEXT":"CQ CQ CQ"},` +
		`"850":{"DIAL":7078000,"OFFSET":850,"SNR":2,"UTC":1673123455000,"TEXT":"K1ABC: @HB HEARTBEAT"}}}`

	msg, err := DecodeMessage([]byte(frame))
	require.NoError(err)
	require.Len(msg.BandActivity, 2)

	// rows sorted by offset, dial frequency reported as Freq
	require.Equal(int64(850), msg.BandActivity[0].Offset)
	require.Equal(int64(7078000), msg.BandActivity[0].Freq)
	require.Equal(2, msg.BandActivity[0].SNR)
	require.Equal(int64(1750), msg.BandActivity[1].Offset)
	require.Equal("CQ CQ CQ", msg.BandActivity[1].Text)
}

func TestDecodeMessage_NumericStrings(t *testing.T) {
	assert := assert.New(t)

	// numeric params reported as strings still decode
	msg, err := DecodeMessage([]byte(`{"type":"RIG.FREQ","value":"","params":{"DIAL":"7078000","OFFSET":"1750"}}`))
	assert.NoError(err)
	assert.Equal(int64(7078000), msg.Dial)
	assert.Equal(int64(1750), msg.Offset)
}
